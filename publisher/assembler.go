package publisher

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"

	"video_blog_publisher/generator"
	"video_blog_publisher/media"
)

const (
	EmbedOEmbed = "oembed"
	EmbedIframe = "iframe"
)

// SocialLink is one outbound profile in the call-to-action block.
type SocialLink struct {
	Label string
	URL   string
}

// AssemblerConfig controls how posts are composed.
type AssemblerConfig struct {
	EmbedMode   string
	Status      string
	CTAHeading  string
	CTAMarkdown string
	SocialLinks []SocialLink
}

// Assembler composes embed, generated body and CTA into one Post.
type Assembler struct {
	embedMode string
	status    string
	cta       string
}

// NewAssembler renders the CTA block once; it is identical for every post.
func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	mode := cfg.EmbedMode
	if mode == "" {
		mode = EmbedOEmbed
	}
	if mode != EmbedOEmbed && mode != EmbedIframe {
		return nil, fmt.Errorf("embed mode %s not supported", mode)
	}
	status := cfg.Status
	if status == "" {
		status = "publish"
	}
	cta, err := renderCTA(cfg)
	if err != nil {
		return nil, err
	}
	return &Assembler{embedMode: mode, status: status, cta: cta}, nil
}

// CTA returns the rendered call-to-action HTML.
func (a *Assembler) CTA() string { return a.cta }

// Assemble builds the post for videoID. The embed goes right after the first
// paragraph, or first when the body has none.
func (a *Assembler) Assemble(videoID, title, body string, ref media.Reference) Post {
	body = generator.RemoveTitle(body, title)
	embed := a.embed(videoID, title)

	var content string
	if i := strings.Index(body, "</p>"); i >= 0 {
		cut := i + len("</p>")
		content = body[:cut] + "\n" + embed + "\n" + body[cut:]
	} else {
		content = embed + "\n" + body
	}
	if a.cta != "" {
		content += "\n" + a.cta
	}

	post := Post{
		Title:   title,
		Content: strings.TrimSpace(content),
		Status:  a.status,
	}
	switch {
	case ref.MediaID > 0:
		post.FeaturedMedia = ref.MediaID
	case ref.URL != "":
		post.FifuImageURL = ref.URL
		post.FifuImageAlt = title
	}
	return post
}

func (a *Assembler) embed(videoID, title string) string {
	id := url.PathEscape(videoID)
	if a.embedMode == EmbedIframe {
		return fmt.Sprintf(`<figure class="video-embed"><iframe width="560" height="315" src="https://www.youtube.com/embed/%s" title="%s" frameborder="0" allowfullscreen></iframe></figure>`,
			id, html.EscapeString(title))
	}
	// A bare URL on its own line is turned into a player by WordPress oEmbed.
	return "\nhttps://www.youtube.com/watch?v=" + url.QueryEscape(videoID) + "\n"
}

func renderCTA(cfg AssemblerConfig) (string, error) {
	md := strings.TrimSpace(cfg.CTAMarkdown)
	if md == "" && len(cfg.SocialLinks) > 0 {
		var sb strings.Builder
		if cfg.CTAHeading != "" {
			sb.WriteString("### " + cfg.CTAHeading + "\n\n")
		}
		for _, l := range cfg.SocialLinks {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", l.Label, l.URL))
		}
		md = sb.String()
	}
	if md == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render cta: %w", err)
	}
	return `<div class="post-cta">` + "\n" + strings.TrimSpace(buf.String()) + "\n</div>", nil
}
