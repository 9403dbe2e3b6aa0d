package pipeline

import (
	"context"
	"errors"
	"fmt"

	"video_blog_publisher/generator"
	"video_blog_publisher/media"
	"video_blog_publisher/publisher"
	"video_blog_publisher/queue"
)

// Draft is what a run would publish for an item, without side effects.
type Draft struct {
	Item          queue.Item        `json:"item"`
	ContextSource string            `json:"context_source"`
	Context       string            `json:"context"`
	Content       generator.Content `json:"content"`
	ImagePrompt   string            `json:"image_prompt"`
	Post          publisher.Post    `json:"post"`
}

// Preview generates and assembles the post for item. It never touches the
// queue, the image providers or the publisher.
func (p *Pipeline) Preview(ctx context.Context, item queue.Item) (Draft, error) {
	if item.ID == "" || item.Title == "" {
		return Draft{}, errors.New("item id and title are required")
	}
	tc := p.contexts.Resolve(ctx, item.ID, item.Description)
	content, err := p.content.Generate(ctx, generator.Request{Title: item.Title, Context: tc.Text})
	if err != nil {
		return Draft{}, fmt.Errorf("generate content: %w", err)
	}
	return Draft{
		Item:          item,
		ContextSource: string(tc.Source),
		Context:       tc.Text,
		Content:       content,
		ImagePrompt:   media.ThumbnailPrompt(content.SEOTitle, p.style),
		Post:          p.assembler.Assemble(item.ID, content.SEOTitle, content.HTMLBody, media.Reference{}),
	}, nil
}

// PreviewNext previews the oldest pending item. It returns queue.ErrEmpty
// when nothing is waiting.
func (p *Pipeline) PreviewNext(ctx context.Context) (Draft, error) {
	item, err := p.store.NextPending(ctx)
	if err != nil {
		return Draft{}, err
	}
	return p.Preview(ctx, item)
}

// ResetStale moves items stuck in processing (e.g. after a crash) back to
// pending and returns how many were released.
func (p *Pipeline) ResetStale(ctx context.Context) (int, error) {
	items, err := p.store.List(ctx, queue.StatusProcessing, 0)
	if err != nil {
		return 0, fmt.Errorf("list processing: %w", err)
	}
	n := 0
	for _, it := range items {
		ok, err := p.store.Transition(ctx, it.ID, queue.StatusProcessing, queue.StatusPending)
		if err != nil {
			return n, fmt.Errorf("reset %s: %w", it.ID, err)
		}
		if ok {
			n++
			p.logger.Printf("[pipeline] reset %s to pending", it.ID)
		}
	}
	return n, nil
}
