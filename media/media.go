// Package media generates post thumbnails and hosts them.
package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoImage is returned when no thumbnail could be produced or hosted.
// Callers treat it as degradation, not failure.
var ErrNoImage = errors.New("no image")

// Asset is a generated image held in memory until it is uploaded.
type Asset struct {
	Data        []byte
	ContentType string
	Provider    string
}

// Reference points at a hosted image: a public URL (external host) or a
// media library id (CMS). The zero value means "no featured image".
type Reference struct {
	URL     string
	MediaID int64
}

// Empty reports whether the reference carries nothing usable.
func (r Reference) Empty() bool {
	return r.URL == "" && r.MediaID == 0
}

// Provider renders an image from a text prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (Asset, error)
}

// Uploader hosts an asset. title is only a filename hint.
type Uploader interface {
	Upload(ctx context.Context, asset Asset, title string) (Reference, error)
}

// ThumbnailPrompt combines the post title with the fixed style descriptors.
func ThumbnailPrompt(title, style string) string {
	title = strings.TrimSpace(title)
	style = strings.TrimSpace(style)
	if style == "" {
		return title
	}
	return fmt.Sprintf("%s, %s", title, style)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a title into a URL- and filename-safe slug.
func Slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	if s == "" {
		s = "thumbnail"
	}
	return s
}

// Filename returns the upload filename for an asset titled title.
func Filename(title string, asset Asset) string {
	ext := ".jpg"
	switch asset.ContentType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}
	return Slugify(title) + ext
}
