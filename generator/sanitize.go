package generator

import (
	"strings"

	"golang.org/x/net/html"
)

var allowedTags = map[string]string{
	"h1":         "h2", // the post title is the only h1 on the page
	"h2":         "h2",
	"h3":         "h3",
	"h4":         "h4",
	"h5":         "h4",
	"h6":         "h4",
	"p":          "p",
	"blockquote": "blockquote",
	"ul":         "ul",
	"ol":         "ol",
	"li":         "li",
	"strong":     "strong",
	"em":         "em",
	"b":          "strong",
	"i":          "em",
	"br":         "br",
	"a":          "a",
}

var droppedContent = map[string]bool{"script": true, "style": true, "iframe": true}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Sanitize keeps only the approved HTML subset. Unknown tags are unwrapped,
// script/style/iframe are dropped with their content, and attributes are
// removed except http(s) links on <a>.
func Sanitize(s string) string {
	return sanitize(s, nil)
}

// sanitize is Sanitize with an optional rewrite of every text token. text
// sees unescaped text; its result is escaped again.
func sanitize(s string, text func(string) string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				t := string(z.Text())
				if text != nil {
					t = text(t)
				}
				b.WriteString(textEscaper.Replace(t))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if droppedContent[tok.Data] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			name, ok := allowedTags[tok.Data]
			if !ok || skip > 0 {
				continue
			}
			b.WriteString("<" + name)
			if name == "a" {
				for _, attr := range tok.Attr {
					if attr.Key == "href" && (strings.HasPrefix(attr.Val, "https://") || strings.HasPrefix(attr.Val, "http://")) {
						b.WriteString(` href="` + html.EscapeString(attr.Val) + `"`)
					}
				}
			}
			b.WriteString(">")
		case html.EndTagToken:
			tok := z.Token()
			if droppedContent[tok.Data] {
				if skip > 0 {
					skip--
				}
				continue
			}
			name, ok := allowedTags[tok.Data]
			if !ok || skip > 0 || name == "br" {
				continue
			}
			b.WriteString("</" + name + ">")
		}
	}
}
