package generator

import (
	"context"
	"encoding/json"
	"strings"
)

// MockLLM is a placeholder for local runs that never calls a model. Title
// prompts get a short title back; body prompts get the JSON contract.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	title := promptField(prompt.User, "Video Title:")
	if title == "" {
		title = "Untitled video"
	}
	if prompt.Kind == PromptTitle {
		return title, nil
	}
	out, err := json.Marshal(Content{
		SEOTitle: title,
		HTMLBody: "<blockquote>A moment worth watching.</blockquote>" +
			"<p>This post was generated locally without a language model.</p>" +
			"<h3>Did you know?</h3><p>Mock output keeps the pipeline testable offline.</p>" +
			"<p>Thanks for reading.</p>",
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func promptField(text, label string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label))
		}
	}
	return ""
}
