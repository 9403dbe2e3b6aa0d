package transcript

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeDescriptions reads video descriptions through the YouTube Data API.
type YouTubeDescriptions struct {
	svc *youtube.Service
}

// NewYouTubeDescriptions builds an API-key client. endpoint overrides the API
// base URL and is empty in production.
func NewYouTubeDescriptions(ctx context.Context, apiKey, endpoint string) (*YouTubeDescriptions, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key missing")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &YouTubeDescriptions{svc: svc}, nil
}

func (y *YouTubeDescriptions) Description(ctx context.Context, videoID string) (string, error) {
	resp, err := y.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube videos.list: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", fmt.Errorf("youtube video %s not found", videoID)
	}
	return resp.Items[0].Snippet.Description, nil
}
