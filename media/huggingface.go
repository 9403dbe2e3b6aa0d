package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceProvider calls the Hugging Face text-to-image inference API.
type HuggingFaceProvider struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

func NewHuggingFaceProvider(baseURL, model, token string, timeout time.Duration) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (h *HuggingFaceProvider) Name() string { return "huggingface:" + h.model }

func (h *HuggingFaceProvider) Generate(ctx context.Context, prompt string) (Asset, error) {
	if h.token == "" {
		return Asset{}, fmt.Errorf("huggingface token missing")
	}
	body, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return Asset{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/"+h.model, bytes.NewReader(body))
	if err != nil {
		return Asset{}, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/jpeg")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("huggingface request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Asset{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Asset{}, fmt.Errorf("huggingface HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return Asset{}, fmt.Errorf("huggingface returned %q instead of an image", ct)
	}
	return Asset{Data: data, ContentType: ct, Provider: h.Name()}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
