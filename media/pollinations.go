package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PollinationsProvider generates images via Pollinations.ai (free, no key needed).
type PollinationsProvider struct {
	baseURL    string
	model      string
	width      int
	height     int
	seed       func() uint32
	httpClient *http.Client
}

func NewPollinationsProvider(baseURL, model string, width, height int, timeout time.Duration) *PollinationsProvider {
	return &PollinationsProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		width:      width,
		height:     height,
		seed:       func() uint32 { return uuid.New().ID() },
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *PollinationsProvider) Name() string { return "pollinations" }

// Generate requests https://image.pollinations.ai/prompt/{prompt}?width&height&seed.
func (p *PollinationsProvider) Generate(ctx context.Context, prompt string) (Asset, error) {
	q := url.Values{}
	q.Set("width", strconv.Itoa(p.width))
	q.Set("height", strconv.Itoa(p.height))
	q.Set("seed", strconv.FormatUint(uint64(p.seed()), 10))
	q.Set("nologo", "true")
	if p.model != "" {
		q.Set("model", p.model)
	}
	imageURL := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(prompt), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Asset{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VideoBlogPublisher/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Asset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Asset{}, fmt.Errorf("HTTP %d from Pollinations", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Asset{}, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return Asset{Data: data, ContentType: ct, Provider: p.Name()}, nil
}
