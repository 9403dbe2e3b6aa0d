package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Settings holds the WordPress REST credentials.
type Settings struct {
	BaseURL     string // e.g. https://example.com/wp-json/wp/v2
	Username    string
	AppPassword string
	Timeout     time.Duration
}

// Post is the document submitted to the posts endpoint.
type Post struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	FeaturedMedia int64  `json:"featured_media,omitempty"`
	FifuImageURL  string `json:"fifu_image_url,omitempty"`
	FifuImageAlt  string `json:"fifu_image_alt,omitempty"`
}

// PostResult is the subset of the created post we report back.
type PostResult struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

// APIError is returned for any non-201 answer; Body is kept for diagnostics.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

type mediaResp struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

// Publisher talks to the WordPress REST API with basic auth.
type Publisher struct {
	cfg     Settings
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

// New creates a Publisher. client may be nil.
func New(cfg Settings, client *http.Client, verbose bool, logger *log.Logger) (*Publisher, error) {
	if cfg.Username == "" || cfg.AppPassword == "" {
		return nil, errors.New("wordpress username and application password are required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("wordpress base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		cfg:     cfg,
		client:  client,
		verbose: verbose,
		logger:  logger,
	}, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// CreatePost submits post. Only HTTP 201 counts as success.
func (p *Publisher) CreatePost(ctx context.Context, post Post) (PostResult, error) {
	body, err := json.Marshal(post)
	if err != nil {
		return PostResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return PostResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.cfg.Username, p.cfg.AppPassword)

	raw, status, err := p.do(req)
	if err != nil {
		return PostResult{}, fmt.Errorf("wordpress create post: %w", err)
	}
	if status != http.StatusCreated {
		return PostResult{}, &APIError{Op: "create post", StatusCode: status, Body: truncate(raw, 500)}
	}

	var res PostResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		// The post exists; a malformed echo must not turn it into a retry.
		p.logger.Printf("[publisher] created post but could not parse response: %v", err)
	}
	p.infof("Post created: id=%d link=%s", res.ID, res.Link)
	return res, nil
}

// UploadMedia stores data in the media library and returns its numeric id.
func (p *Publisher) UploadMedia(ctx context.Context, data []byte, filename, contentType string) (int64, error) {
	if len(data) == 0 {
		return 0, errors.New("empty media")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/media", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	req.SetBasicAuth(p.cfg.Username, p.cfg.AppPassword)

	raw, status, err := p.do(req)
	if err != nil {
		return 0, fmt.Errorf("wordpress upload media: %w", err)
	}
	if status != http.StatusCreated {
		return 0, &APIError{Op: "upload media", StatusCode: status, Body: truncate(raw, 500)}
	}
	var res mediaResp
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return 0, fmt.Errorf("parse media response: %w", err)
	}
	if res.ID == 0 {
		return 0, errors.New("wordpress media response has no id")
	}
	p.infof("Uploaded media %s -> id=%d", filename, res.ID)
	return res.ID, nil
}

func (p *Publisher) do(req *http.Request) (string, int, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(raw), resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
