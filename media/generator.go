package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Generator tries its providers in rotation until one returns an image above
// the size threshold or the attempt budget runs out.
type Generator struct {
	providers []Provider
	attempts  int
	delay     time.Duration
	minBytes  int
	normalize func([]byte) ([]byte, error)
	logger    *log.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithAttempts sets the total attempt budget across providers.
func WithAttempts(n int) GeneratorOption {
	return func(g *Generator) { g.attempts = n }
}

// WithRetryDelay sets the base pause; attempt n waits n*delay.
func WithRetryDelay(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.delay = d }
}

// WithMinBytes rejects images smaller than n bytes.
func WithMinBytes(n int) GeneratorOption {
	return func(g *Generator) { g.minBytes = n }
}

// WithNormalizer re-encodes accepted images, e.g. NormalizeJPEG.
func WithNormalizer(fn func([]byte) ([]byte, error)) GeneratorOption {
	return func(g *Generator) { g.normalize = fn }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l *log.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(providers []Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		providers: providers,
		attempts:  3,
		delay:     3 * time.Second,
		minBytes:  1000,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns an image for prompt. Every error wraps ErrNoImage.
func (g *Generator) Generate(ctx context.Context, prompt string) (Asset, error) {
	if len(g.providers) == 0 {
		return Asset{}, fmt.Errorf("%w: no image providers configured", ErrNoImage)
	}
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		p := g.providers[(attempt-1)%len(g.providers)]
		asset, err := g.try(ctx, p, prompt)
		if err == nil {
			g.logger.Printf("[media] image from %s (%d bytes) on attempt %d", p.Name(), len(asset.Data), attempt)
			return asset, nil
		}
		lastErr = err
		g.logger.Printf("[media] attempt %d/%d via %s failed: %v", attempt, g.attempts, p.Name(), err)

		if attempt == g.attempts {
			break
		}
		if err := sleep(ctx, time.Duration(attempt)*g.delay); err != nil {
			lastErr = err
			break
		}
	}
	return Asset{}, fmt.Errorf("%w: image generation failed after %d attempts: %v", ErrNoImage, g.attempts, lastErr)
}

func (g *Generator) try(ctx context.Context, p Provider, prompt string) (Asset, error) {
	asset, err := p.Generate(ctx, prompt)
	if err != nil {
		return Asset{}, err
	}
	if len(asset.Data) < g.minBytes {
		return Asset{}, fmt.Errorf("response too small (%d bytes), likely an error", len(asset.Data))
	}
	if asset.Provider == "" {
		asset.Provider = p.Name()
	}
	if g.normalize != nil {
		data, err := g.normalize(asset.Data)
		if err != nil {
			return Asset{}, fmt.Errorf("normalize image: %w", err)
		}
		asset.Data = data
		asset.ContentType = "image/jpeg"
	}
	return asset, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNoImage reports whether err is the degradation signal from this package.
func IsNoImage(err error) bool {
	return errors.Is(err, ErrNoImage)
}
