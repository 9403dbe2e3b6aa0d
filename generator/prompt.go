package generator

import (
	"fmt"
	"strings"
)

// PromptKind distinguishes the two model calls of a run.
type PromptKind int

const (
	PromptTitle PromptKind = iota
	PromptBody
)

// titleContextChars bounds the context sent with the title prompt.
const titleContextChars = 1000

// Prompt is the message pair sent to the LLM.
type Prompt struct {
	Kind   PromptKind
	System string
	User   string
}

// BuildTitlePrompt asks for one short SEO title.
func BuildTitlePrompt(title, context string) Prompt {
	var sb strings.Builder
	sb.WriteString("Write one catchy, SEO-friendly blog title (max 70 characters) for this video.\n")
	sb.WriteString(fmt.Sprintf("Video Title: %s\n", title))
	sb.WriteString(fmt.Sprintf("Context: %s\n", truncateRunes(context, titleContextChars)))
	sb.WriteString("Return only the title text. No quotes, no hashtags, no explanation.")

	return Prompt{
		Kind:   PromptTitle,
		System: "You are an SEO copywriter. Reply with a single line.",
		User:   sb.String(),
	}
}

// BuildBodyPrompt asks for the JSON {seo_title, html_body} contract.
func BuildBodyPrompt(title, context string, avoid []string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an expert blogger. Write a detailed, engaging, SEO-friendly blog post about this video.\n\n")
	sb.WriteString(fmt.Sprintf("Video Title: %s\n", title))
	sb.WriteString(fmt.Sprintf("Context Information: %s\n\n", context))
	sb.WriteString("Structure the html_body exactly like this:\n")
	sb.WriteString("1. An opening <blockquote> with a striking one-sentence hook.\n")
	sb.WriteString("2. A descriptive <p> section about what happens in the video.\n")
	sb.WriteString("3. An <h3>Did you know?</h3> aside with one surprising related fact.\n")
	sb.WriteString("4. A short concluding <p>.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Use only these HTML tags: h2, h3, h4, p, blockquote, ul, ol, li, strong, em.\n")
	sb.WriteString("- Do not use Markdown (no ** or ##).\n")
	sb.WriteString("- Do not repeat the title inside html_body.\n")
	if len(avoid) > 0 {
		sb.WriteString(fmt.Sprintf("- Never mention: %s.\n", strings.Join(avoid, ", ")))
	} else {
		sb.WriteString("- Do not name the channel, studio or production company.\n")
	}
	sb.WriteString("\nRespond ONLY with a JSON object with the keys \"seo_title\" and \"html_body\".")

	return Prompt{
		Kind:   PromptBody,
		System: "You respond with valid JSON only. No markdown fences, no preamble.",
		User:   sb.String(),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
