package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TimedTextClient fetches captions from YouTube's timedtext endpoint in the
// json3 format.
type TimedTextClient struct {
	baseURL    string
	languages  []string
	httpClient *http.Client
}

func NewTimedTextClient(baseURL string, languages []string, timeout time.Duration) *TimedTextClient {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &TimedTextClient{
		baseURL:    baseURL,
		languages:  languages,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type json3Response struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Fetch tries each configured language, then auto-generated captions.
func (c *TimedTextClient) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: empty video id", ErrNoTranscript)
	}
	var lastErr error = ErrNoTranscript
	for _, lang := range c.languages {
		for _, kind := range []string{"", "asr"} {
			segments, err := c.fetchLang(ctx, videoID, lang, kind)
			if err == nil && len(segments) > 0 {
				return segments, nil
			}
			if err != nil {
				lastErr = err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (c *TimedTextClient) fetchLang(ctx context.Context, videoID, lang, kind string) ([]Segment, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)
	q.Set("fmt", "json3")
	if kind != "" {
		q.Set("kind", kind)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read timedtext: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext HTTP %d", resp.StatusCode)
	}
	// YouTube answers 200 with an empty body when captions are disabled.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrNoTranscript
	}

	var data json3Response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parse timedtext: %w", err)
	}

	var segments []Segment
	for _, ev := range data.Events {
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		text := strings.TrimSpace(html.UnescapeString(sb.String()))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Start:    float64(ev.StartMs) / 1000,
			Duration: float64(ev.DurationMs) / 1000,
		})
	}
	return segments, nil
}
