package publisher

import (
	"context"

	"video_blog_publisher/media"
)

// MediaLibrary uploads thumbnails straight into the WordPress media library
// so posts can use the native featured_media field.
type MediaLibrary struct {
	p *Publisher
}

func NewMediaLibrary(p *Publisher) *MediaLibrary {
	return &MediaLibrary{p: p}
}

func (m *MediaLibrary) Upload(ctx context.Context, asset media.Asset, title string) (media.Reference, error) {
	id, err := m.p.UploadMedia(ctx, asset.Data, media.Filename(title, asset), asset.ContentType)
	if err != nil {
		return media.Reference{}, err
	}
	return media.Reference{MediaID: id}, nil
}
