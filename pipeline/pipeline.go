// Package pipeline turns one pending queue item into a published post.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"video_blog_publisher/generator"
	"video_blog_publisher/media"
	"video_blog_publisher/publisher"
	"video_blog_publisher/queue"
	"video_blog_publisher/transcript"
)

// Outcome is the result of a single RunOnce.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"      // nothing pending
	OutcomeSkipped   Outcome = "skipped"   // another run claimed the item first
	OutcomeFailed    Outcome = "failed"    // content generation failed, item marked error
	OutcomeRetry     Outcome = "retry"     // publish failed, item back to pending
	OutcomePublished Outcome = "published" // item marked published
)

type ContextResolver interface {
	Resolve(ctx context.Context, videoID, description string) transcript.Context
}

type ContentGenerator interface {
	Generate(ctx context.Context, req generator.Request) (generator.Content, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (media.Asset, error)
}

type PostAssembler interface {
	Assemble(videoID, title, body string, ref media.Reference) publisher.Post
}

type PostPublisher interface {
	CreatePost(ctx context.Context, post publisher.Post) (publisher.PostResult, error)
}

// Report describes what RunOnce did. Err holds the stage error text for
// failed and retry outcomes.
type Report struct {
	RunID         string          `json:"run_id"`
	Outcome       Outcome         `json:"outcome"`
	Item          queue.Item      `json:"item"`
	ContextSource string          `json:"context_source,omitempty"`
	Title         string          `json:"title,omitempty"`
	Image         media.Reference `json:"image"`
	PostID        int64           `json:"post_id,omitempty"`
	Link          string          `json:"link,omitempty"`
	Err           string          `json:"error,omitempty"`
}

// Pipeline wires the stages together. Images and Uploader may be nil, in
// which case posts go out without a thumbnail.
type Pipeline struct {
	store     queue.Store
	contexts  ContextResolver
	content   ContentGenerator
	images    ImageGenerator
	uploader  media.Uploader
	assembler PostAssembler
	publisher PostPublisher

	claim   bool
	style   string
	logger  *log.Logger
	verbose bool
}

// Stages groups the collaborators passed to New.
type Stages struct {
	Store     queue.Store
	Contexts  ContextResolver
	Content   ContentGenerator
	Images    ImageGenerator
	Uploader  media.Uploader
	Assembler PostAssembler
	Publisher PostPublisher
}

type Option func(*Pipeline)

// WithClaim toggles the pending->processing claim before work starts.
func WithClaim(on bool) Option {
	return func(p *Pipeline) { p.claim = on }
}

// WithStyle sets the suffix appended to thumbnail prompts.
func WithStyle(style string) Option {
	return func(p *Pipeline) { p.style = style }
}

func WithLogger(logger *log.Logger, verbose bool) Option {
	return func(p *Pipeline) {
		p.logger = logger
		p.verbose = verbose
	}
}

func New(st Stages, opts ...Option) (*Pipeline, error) {
	switch {
	case st.Store == nil:
		return nil, errors.New("queue store required")
	case st.Contexts == nil:
		return nil, errors.New("context resolver required")
	case st.Content == nil:
		return nil, errors.New("content generator required")
	case st.Assembler == nil:
		return nil, errors.New("post assembler required")
	case st.Publisher == nil:
		return nil, errors.New("publisher required")
	}
	p := &Pipeline{
		store:     st.Store,
		contexts:  st.Contexts,
		content:   st.Content,
		images:    st.Images,
		uploader:  st.Uploader,
		assembler: st.Assembler,
		publisher: st.Publisher,
		claim:     true,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	return p, nil
}

func (p *Pipeline) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// RunOnce processes at most one pending item. The returned error is
// reserved for queue store failures; stage failures are reported through
// Report.Outcome.
func (p *Pipeline) RunOnce(ctx context.Context) (rep Report, err error) {
	rep.RunID = uuid.NewString()

	item, err := p.store.NextPending(ctx)
	if errors.Is(err, queue.ErrEmpty) {
		p.logger.Printf("[pipeline] run %s: no pending videos", rep.RunID)
		rep.Outcome = OutcomeIdle
		return rep, nil
	}
	if err != nil {
		return rep, fmt.Errorf("fetch pending: %w", err)
	}
	rep.Item = item
	p.logger.Printf("[pipeline] run %s: processing %s (%s)", rep.RunID, item.ID, item.Title)

	// from is the status the item currently holds in the store.
	from := queue.StatusPending
	// posted is set once the CMS accepted the post. From then on the claim
	// is kept so a failed status write cannot lead to a second post.
	posted := false
	if p.claim {
		ok, terr := p.store.Transition(ctx, item.ID, queue.StatusPending, queue.StatusProcessing)
		if terr != nil {
			return rep, fmt.Errorf("claim %s: %w", item.ID, terr)
		}
		if !ok {
			p.logger.Printf("[pipeline] %s already claimed by another run", item.ID)
			rep.Outcome = OutcomeSkipped
			return rep, nil
		}
		from = queue.StatusProcessing
		defer func() {
			if err == nil {
				return
			}
			if posted {
				p.logger.Printf("[pipeline] %s was posted but not marked published; left processing for -reset-stale", item.ID)
				return
			}
			// Release on any early exit so a later run retries the item.
			if _, rerr := p.store.Transition(context.WithoutCancel(ctx), item.ID, queue.StatusProcessing, queue.StatusPending); rerr != nil {
				p.logger.Printf("[pipeline] release claim on %s failed: %v", item.ID, rerr)
			}
		}()
	}

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	tc := p.contexts.Resolve(ctx, item.ID, item.Description)
	rep.ContextSource = string(tc.Source)
	p.infof("context for %s from %s (%d chars)", item.ID, tc.Source, len(tc.Text))

	content, cerr := p.content.Generate(ctx, generator.Request{Title: item.Title, Context: tc.Text})
	if cerr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rep, fmt.Errorf("generate content: %w", ctxErr)
		}
		p.logger.Printf("[pipeline] content generation failed for %s: %v", item.ID, cerr)
		rep.Err = cerr.Error()
		if err := p.settle(ctx, item.ID, from, queue.StatusError); err != nil {
			return rep, err
		}
		rep.Outcome = OutcomeFailed
		return rep, nil
	}
	rep.Title = content.SEOTitle

	rep.Image = p.thumbnail(ctx, content.SEOTitle)

	post := p.assembler.Assemble(item.ID, content.SEOTitle, content.HTMLBody, rep.Image)
	res, perr := p.publisher.CreatePost(ctx, post)
	if perr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rep, fmt.Errorf("publish: %w", ctxErr)
		}
		p.logger.Printf("[pipeline] publish failed for %s, leaving pending: %v", item.ID, perr)
		rep.Err = perr.Error()
		if from != queue.StatusPending {
			if err := p.settle(ctx, item.ID, from, queue.StatusPending); err != nil {
				return rep, err
			}
		}
		rep.Outcome = OutcomeRetry
		return rep, nil
	}
	posted = true
	rep.PostID = res.ID
	rep.Link = res.Link

	if err := p.settle(ctx, item.ID, from, queue.StatusPublished); err != nil {
		return rep, err
	}
	rep.Outcome = OutcomePublished
	p.logger.Printf("[pipeline] published %s as post %d %s", item.ID, res.ID, res.Link)
	return rep, nil
}

// thumbnail generates and uploads the featured image. Any failure degrades
// to an empty reference.
func (p *Pipeline) thumbnail(ctx context.Context, title string) media.Reference {
	if p.images == nil {
		return media.Reference{}
	}
	asset, err := p.images.Generate(ctx, media.ThumbnailPrompt(title, p.style))
	if err != nil {
		p.logger.Printf("[pipeline] no thumbnail for %q: %v", title, err)
		return media.Reference{}
	}
	if p.uploader == nil {
		return media.Reference{}
	}
	ref, err := p.uploader.Upload(ctx, asset, title)
	if err != nil {
		p.logger.Printf("[pipeline] thumbnail upload failed: %v", err)
		return media.Reference{}
	}
	p.infof("thumbnail uploaded: url=%s media_id=%d", ref.URL, ref.MediaID)
	return ref
}

// settle writes the final status. The write is not tied to ctx so a
// cancelled run still records what already happened remotely.
func (p *Pipeline) settle(ctx context.Context, id string, from, to queue.Status) error {
	ok, err := p.store.Transition(context.WithoutCancel(ctx), id, from, to)
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", id, to, err)
	}
	if !ok {
		p.logger.Printf("[pipeline] %s was no longer %s when marking %s", id, from, to)
	}
	return nil
}
