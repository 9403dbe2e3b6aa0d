package generator

import (
	"regexp"
	"strings"
)

// Guardrail strips terms that must never appear in a published post, such
// as the name of the channel or studio that produced the video.
type Guardrail struct {
	terms    []string
	patterns []*regexp.Regexp
}

func NewGuardrail(terms []string) *Guardrail {
	g := &Guardrail{}
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		g.terms = append(g.terms, t)
		g.patterns = append(g.patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(t)))
	}
	return g
}

// Terms returns the configured terms.
func (g *Guardrail) Terms() []string {
	if g == nil {
		return nil
	}
	return g.terms
}

// Clean removes every banned term from plain text and reports which were found.
func (g *Guardrail) Clean(s string) (string, []string) {
	if g == nil {
		return s, nil
	}
	var found []string
	for i, re := range g.patterns {
		if !re.MatchString(s) {
			continue
		}
		found = append(found, g.terms[i])
		s = re.ReplaceAllString(s, "")
	}
	if len(found) > 0 {
		s = spaceRe.ReplaceAllString(s, " ")
	}
	return s, found
}

// Apply cleans the title and the text of the body. Tags and attribute
// values such as link targets are left as they are.
func (g *Guardrail) Apply(c Content) (Content, []string) {
	if g == nil {
		return c, nil
	}
	seen := map[string]bool{}
	var found []string
	note := func(terms []string) {
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				found = append(found, t)
			}
		}
	}

	title, terms := g.Clean(c.SEOTitle)
	note(terms)
	c.SEOTitle = strings.TrimSpace(title)

	body := sanitize(c.HTMLBody, func(text string) string {
		out, terms := g.Clean(text)
		note(terms)
		return out
	})
	if len(found) > 0 {
		c.HTMLBody = body
	}
	return c, found
}
