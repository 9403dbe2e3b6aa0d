package generator

import (
	"regexp"
	"strings"
)

const (
	liOpen  = "\x02"
	liClose = "\x03"
)

type markdownRule struct {
	re   *regexp.Regexp
	repl string
}

// markdownRules is applied in order. Headings first so the stray-marker
// rules only see leftovers.
var markdownRules = []markdownRule{
	{regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$\n?"), ""},
	{regexp.MustCompile(`(?m)^[ \t]*####[ \t]+(.+?)[ \t#]*$`), "<h4>$1</h4>"},
	{regexp.MustCompile(`(?m)^[ \t]*###[ \t]+(.+?)[ \t#]*$`), "<h3>$1</h3>"},
	{regexp.MustCompile(`(?m)^[ \t]*#{1,2}[ \t]+(.+?)[ \t#]*$`), "<h2>$1</h2>"},
	{regexp.MustCompile(`(?m)^[ \t]*>[ \t]?(.+)$`), "<blockquote>$1</blockquote>"},
	// List items are marked with control characters so that only runs
	// converted here get wrapped; existing <li> markup is left alone.
	{regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+(.+)$`), liOpen + "$1" + liClose},
	{regexp.MustCompile("((?:" + liOpen + "[^\n]*" + liClose + "\n?)+)"), "<ul>\n$1</ul>\n"},
	{regexp.MustCompile(liOpen), "<li>"},
	{regexp.MustCompile(liClose), "</li>"},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "<strong>$1</strong>"},
	{regexp.MustCompile(`__(.+?)__`), "<strong>$1</strong>"},
	{regexp.MustCompile(`(^|[^*\w])\*([^*\n]+)\*`), "$1<em>$2</em>"},
	{regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*$`), ""},
	{regexp.MustCompile(`\*\*|__|` + "`"), ""},
}

// MarkdownToHTML rewrites the Markdown markers models tend to leak into
// HTML answers. HTML without such markers passes through unchanged.
func MarkdownToHTML(s string) string {
	for _, r := range markdownRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return strings.TrimSpace(s)
}
