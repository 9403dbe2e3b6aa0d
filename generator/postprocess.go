package generator

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	hashtagRe     = regexp.MustCompile(`(^|\s)(?:#[\p{L}\p{N}_]+)+`)
	spaceRe       = regexp.MustCompile(`[ \t]+`)
	titlePrefixRe = regexp.MustCompile(`(?i)^(seo\s+)?title\s*:\s*`)
	blankLineRe   = regexp.MustCompile(`\n[ \t]*\n`)
	h1Re          = regexp.MustCompile(`(?is)<h1[^>]*>.*?</h1>`)
)

// ParseContent turns a raw model response into Content. It never fails:
// a full JSON object wins, then the first balanced {...} inside the text,
// and finally the raw text becomes the body under fallbackTitle.
func ParseContent(raw, fallbackTitle string) (Content, Tier) {
	text := strings.TrimSpace(raw)

	if c, ok := decodeContent(text); ok {
		if c.SEOTitle == "" {
			c.SEOTitle = fallbackTitle
		}
		return c, TierJSON
	}
	if obj := firstJSONObject(text); obj != "" {
		if c, ok := decodeContent(obj); ok {
			if c.SEOTitle == "" {
				c.SEOTitle = fallbackTitle
			}
			return c, TierEmbedded
		}
	}
	return Content{
		SEOTitle: fallbackTitle,
		HTMLBody: wrapParagraphs(MarkdownToHTML(text)),
	}, TierRaw
}

// decodeContent accepts any object carrying html_body, even an empty one;
// Generate rejects empty bodies itself.
func decodeContent(s string) (Content, bool) {
	var obj struct {
		SEOTitle string  `json:"seo_title"`
		HTMLBody *string `json:"html_body"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj.HTMLBody == nil {
		return Content{}, false
	}
	return Content{SEOTitle: obj.SEOTitle, HTMLBody: *obj.HTMLBody}, true
}

// firstJSONObject returns the first balanced top-level {...} in s, honouring
// braces inside JSON strings. It returns "" when none closes.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// StripHashtags removes #word tokens (including runs like #a#b) and tidies the remaining whitespace.
func StripHashtags(s string) string {
	s = hashtagRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// CleanTitle reduces a model's title answer to one plain line.
func CleanTitle(s string) string {
	line := ""
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = titlePrefixRe.ReplaceAllString(line, "")
	line = strings.Trim(line, "\"'“”*` ")
	line = strings.ReplaceAll(line, "**", "")
	return StripHashtags(line)
}

// RemoveTitle drops <h1> blocks and a leading heading that repeats one of titles.
func RemoveTitle(body string, titles ...string) string {
	body = h1Re.ReplaceAllString(body, "")
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		re := regexp.MustCompile(`(?is)^\s*<h[1-6][^>]*>\s*` + regexp.QuoteMeta(t) + `\s*</h[1-6]>`)
		body = re.ReplaceAllString(body, "")
	}
	return strings.TrimSpace(body)
}

var blockPrefixes = []string{"<h", "<p", "<ul", "<ol", "<li", "<blockquote"}

// wrapParagraphs puts every blank-line separated block that is not already
// a block element inside <p>.
func wrapParagraphs(s string) string {
	var out []string
	for _, block := range blankLineRe.Split(s, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		isBlock := false
		for _, p := range blockPrefixes {
			if strings.HasPrefix(block, p) {
				isBlock = true
				break
			}
		}
		if !isBlock {
			block = "<p>" + block + "</p>"
		}
		out = append(out, block)
	}
	return strings.Join(out, "\n")
}
