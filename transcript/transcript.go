// Package transcript resolves the text context a post is written from.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrNoTranscript means the video has no transcript in any requested language.
var ErrNoTranscript = errors.New("transcript not available")

// Segment is one timed line of a transcript.
type Segment struct {
	Text     string
	Start    float64
	Duration float64
}

// Fetcher returns the ordered transcript segments of a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]Segment, error)
}

// DescriptionSource looks up a video's description when the queue has none.
type DescriptionSource interface {
	Description(ctx context.Context, videoID string) (string, error)
}

// Source tells where Context.Text came from.
type Source string

const (
	SourceTranscript  Source = "transcript"
	SourceDescription Source = "description"
)

// Context is the resolved text. Err is set when the transcript could not be
// used and explains why the description fallback was taken.
type Context struct {
	Text   string
	Source Source
	Err    error
}

// Resolver always produces usable context text.
type Resolver struct {
	fetcher      Fetcher
	descriptions DescriptionSource
	maxChars     int
	logger       *log.Logger
}

func NewResolver(fetcher Fetcher, descriptions DescriptionSource, maxChars int, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		fetcher:      fetcher,
		descriptions: descriptions,
		maxChars:     maxChars,
		logger:       logger,
	}
}

// Resolve returns the transcript of videoID, or "Visual video. Description:
// {description}" when the transcript is unavailable. It never fails.
func (r *Resolver) Resolve(ctx context.Context, videoID, description string) Context {
	text, err := r.fetch(ctx, videoID)
	if err == nil {
		r.logger.Printf("[transcript] fetched %d chars for %s", len(text), videoID)
		return Context{Text: r.truncate(text), Source: SourceTranscript}
	}
	r.logger.Printf("[transcript] unavailable for %s (%v), using description", videoID, err)

	description = strings.TrimSpace(description)
	if description == "" && r.descriptions != nil {
		d, derr := r.descriptions.Description(ctx, videoID)
		if derr != nil {
			r.logger.Printf("[transcript] description lookup failed for %s: %v", videoID, derr)
		}
		description = strings.TrimSpace(d)
	}
	return Context{
		Text:   r.truncate(FallbackText(description)),
		Source: SourceDescription,
		Err:    err,
	}
}

func (r *Resolver) fetch(ctx context.Context, videoID string) (string, error) {
	if r.fetcher == nil {
		return "", ErrNoTranscript
	}
	segments, err := r.fetcher.Fetch(ctx, videoID)
	if err != nil {
		return "", err
	}
	text := JoinSegments(segments)
	if text == "" {
		return "", fmt.Errorf("%w: empty segments", ErrNoTranscript)
	}
	return text, nil
}

// FallbackText is the context used for videos without speech.
func FallbackText(description string) string {
	return "Visual video. Description: " + description
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		t := strings.Join(strings.Fields(s.Text), " ")
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (r *Resolver) truncate(s string) string {
	runes := []rune(s)
	if r.maxChars <= 0 || len(runes) <= r.maxChars {
		return s
	}
	return string(runes[:r.maxChars])
}
