package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrEmptyContent is returned when the model answered with nothing usable.
var ErrEmptyContent = errors.New("model returned empty body")

// Generator produces the SEO title and HTML body for one video.
type Generator struct {
	llm     LLMClient
	guard   *Guardrail
	logger  *log.Logger
	verbose bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithGuardrail strips the given terms from every generated post.
func WithGuardrail(g *Guardrail) Option {
	return func(gen *Generator) { gen.guard = g }
}

// WithLogger sets the logger; verbose enables [INFO] lines.
func WithLogger(logger *log.Logger, verbose bool) Option {
	return func(gen *Generator) {
		gen.logger = logger
		gen.verbose = verbose
	}
}

func NewGenerator(llm LLMClient, opts ...Option) (*Generator, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	g := &Generator{llm: llm, logger: log.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Generator) infof(format string, args ...interface{}) {
	if !g.verbose {
		return
	}
	g.logger.Printf("[INFO] [generator] "+format, args...)
}

// Generate runs the title call and then the body call. Only a failed model
// call (or an empty answer) is an error; malformed output degrades through
// ParseContent.
func (g *Generator) Generate(ctx context.Context, req Request) (Content, error) {
	if strings.TrimSpace(req.Title) == "" {
		return Content{}, errors.New("title is required")
	}

	rawTitle, err := g.llm.Complete(ctx, BuildTitlePrompt(req.Title, req.Context))
	if err != nil {
		return Content{}, fmt.Errorf("generate title: %w", err)
	}
	chosen := CleanTitle(rawTitle)
	if chosen == "" {
		chosen = StripHashtags(req.Title)
	}
	if chosen == "" {
		chosen = req.Title
	}
	g.infof("title candidate %q", chosen)

	raw, err := g.llm.Complete(ctx, BuildBodyPrompt(chosen, req.Context, g.guard.Terms()))
	if err != nil {
		return Content{}, fmt.Errorf("generate body: %w", err)
	}

	// Unparseable answers keep the queue title, not the model's suggestion.
	fallback := StripHashtags(req.Title)
	if fallback == "" {
		fallback = chosen
	}
	content, tier := ParseContent(raw, fallback)
	g.infof("parsed body via %s tier", tier)

	content.SEOTitle = CleanTitle(content.SEOTitle)
	if content.SEOTitle == "" {
		content.SEOTitle = chosen
	}
	content.HTMLBody = Sanitize(RemoveTitle(content.HTMLBody, content.SEOTitle, chosen, req.Title))

	content, found := g.guard.Apply(content)
	if len(found) > 0 {
		g.logger.Printf("[generator] content policy: stripped %s", strings.Join(found, ", "))
	}
	if content.SEOTitle == "" {
		content.SEOTitle, _ = g.guard.Clean(fallback)
		content.SEOTitle = strings.TrimSpace(content.SEOTitle)
	}
	if content.SEOTitle == "" {
		return Content{}, fmt.Errorf("%w: title removed by content policy", ErrEmptyContent)
	}

	if strings.TrimSpace(stripTags(content.HTMLBody)) == "" {
		return Content{}, ErrEmptyContent
	}
	return content, nil
}

func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return b.String()
}
