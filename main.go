package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"video_blog_publisher/config"
	"video_blog_publisher/generator"
	"video_blog_publisher/media"
	"video_blog_publisher/pipeline"
	"video_blog_publisher/publisher"
	"video_blog_publisher/queue"
	"video_blog_publisher/server"
	"video_blog_publisher/transcript"
)

var verbose bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	enqueueID := flag.String("enqueue", "", "add a video id to the queue and exit")
	title := flag.String("title", "", "video title for --enqueue")
	description := flag.String("description", "", "video description for --enqueue")
	resetStale := flag.Bool("reset-stale", false, "move items stuck in processing back to pending and exit")
	dryRun := flag.Bool("dry-run", false, "generate the next post and print it without publishing")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] could not read .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	if *enqueueID != "" {
		if *title == "" {
			fatal(errors.New("--title is required with --enqueue"))
		}
		item := queue.Item{ID: *enqueueID, Title: *title, Description: *description, Status: queue.StatusPending}
		if err := store.Enqueue(ctx, item); err != nil {
			fatal(err)
		}
		log.Printf("[cli] queued %s (%s)", item.ID, item.Title)
		return
	}

	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	p, err := buildPipeline(ctx, cfg, store)
	if err != nil {
		fatal(err)
	}

	switch {
	case *resetStale:
		n, err := p.ResetStale(ctx)
		if err != nil {
			fatal(err)
		}
		log.Printf("[cli] reset %d stale item(s)", n)

	case *dryRun:
		draft, err := p.PreviewNext(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			log.Printf("[cli] no pending videos")
			return
		}
		if err != nil {
			fatal(err)
		}
		printJSON(draft)

	case *serve:
		srv, err := server.New(p, store, log.Default())
		if err != nil {
			fatal(err)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if listen == "" {
			listen = ":8080"
		}
		httpSrv := &http.Server{Addr: listen, Handler: srv.Routes()}
		go func() {
			<-ctx.Done()
			_ = httpSrv.Shutdown(context.Background())
		}()
		log.Printf("Starting web server on %s", listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(err)
		}

	default:
		rep, err := p.RunOnce(ctx)
		if err != nil {
			fatal(err)
		}
		log.Printf("[cli] run %s: %s %s", rep.RunID, rep.Outcome, rep.Item.ID)
		printJSON(rep)
		if rep.Outcome == pipeline.OutcomeFailed || rep.Outcome == pipeline.OutcomeRetry {
			os.Exit(2)
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func buildStore(cfg *config.Config) (queue.Store, func(), error) {
	switch cfg.Queue.Driver {
	case "supabase":
		s, err := queue.NewSupabaseStore(cfg.Queue.URL, cfg.Queue.Key, cfg.Queue.Table, cfg.Queue.OrderBy)
		return s, func() {}, err
	case "sqlite":
		s, err := queue.OpenSQLite(cfg.Queue.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("queue driver %s not supported", cfg.Queue.Driver)
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, store queue.Store) (*pipeline.Pipeline, error) {
	logger := log.Default()

	llm, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := generator.NewGenerator(llm,
		generator.WithGuardrail(generator.NewGuardrail(cfg.Post.BannedTerms)),
		generator.WithLogger(logger, verbose),
	)
	if err != nil {
		return nil, err
	}

	var descriptions transcript.DescriptionSource
	if cfg.Transcript.YouTubeAPIKey != "" {
		yt, err := transcript.NewYouTubeDescriptions(ctx, cfg.Transcript.YouTubeAPIKey, cfg.Transcript.YouTubeEndpoint)
		if err != nil {
			return nil, err
		}
		descriptions = yt
	}
	resolver := transcript.NewResolver(
		transcript.NewTimedTextClient(cfg.Transcript.TimedTextURL, cfg.Transcript.Languages, cfg.Transcript.Timeout()),
		descriptions,
		cfg.Transcript.MaxChars,
		logger,
	)

	pub, err := publisher.New(publisher.Settings{
		BaseURL:     cfg.WordPress.BaseURL,
		Username:    cfg.WordPress.Username,
		AppPassword: cfg.WordPress.AppPassword,
		Timeout:     cfg.WordPress.Timeout(),
	}, nil, verbose, logger)
	if err != nil {
		return nil, err
	}

	links := make([]publisher.SocialLink, 0, len(cfg.Post.SocialLinks))
	for _, l := range cfg.Post.SocialLinks {
		links = append(links, publisher.SocialLink{Label: l.Label, URL: l.URL})
	}
	asm, err := publisher.NewAssembler(publisher.AssemblerConfig{
		EmbedMode:   cfg.Post.EmbedMode,
		Status:      cfg.WordPress.Status,
		CTAHeading:  cfg.Post.CTAHeading,
		CTAMarkdown: cfg.Post.CTAMarkdown,
		SocialLinks: links,
	})
	if err != nil {
		return nil, err
	}

	providers, err := buildImageProviders(cfg)
	if err != nil {
		return nil, err
	}
	images := media.NewGenerator(providers,
		media.WithAttempts(cfg.Image.Attempts),
		media.WithRetryDelay(cfg.Image.RetryDelay()),
		media.WithMinBytes(cfg.Image.MinBytes),
		media.WithNormalizer(media.JPEGNormalizer(cfg.Media.MaxWidth, cfg.Media.JPEGQuality)),
		media.WithGeneratorLogger(logger),
	)
	uploader, err := buildUploader(cfg, pub)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Stages{
		Store:     store,
		Contexts:  resolver,
		Content:   gen,
		Images:    images,
		Uploader:  uploader,
		Assembler: asm,
		Publisher: pub,
	},
		pipeline.WithClaim(cfg.ClaimEnabled()),
		pipeline.WithStyle(cfg.Image.StyleSuffix),
		pipeline.WithLogger(logger, verbose),
	)
}

func buildLLM(cfg *config.Config) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout(),
	}
	switch cfg.LLM.Provider {
	case "huggingface", "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible API but has no default endpoint here.
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func buildImageProviders(cfg *config.Config) ([]media.Provider, error) {
	var providers []media.Provider
	for _, pc := range cfg.Image.Providers {
		switch pc.Name {
		case "huggingface":
			providers = append(providers, media.NewHuggingFaceProvider(cfg.Image.HuggingFaceURL, pc.Model, cfg.Image.Token, cfg.Image.Timeout()))
		case "pollinations":
			providers = append(providers, media.NewPollinationsProvider(cfg.Image.PollinationsURL, pc.Model, cfg.Image.Width, cfg.Image.Height, cfg.Image.Timeout()))
		default:
			return nil, fmt.Errorf("image provider %s not supported", pc.Name)
		}
	}
	return providers, nil
}

func buildUploader(cfg *config.Config, pub *publisher.Publisher) (media.Uploader, error) {
	switch cfg.Media.Strategy {
	case "imgbb":
		return media.NewImgBBUploader(cfg.Media.ImgBBURL, cfg.Media.ImgBBKey, cfg.Image.Timeout())
	case "wordpress":
		return publisher.NewMediaLibrary(pub), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("media strategy %s not supported", cfg.Media.Strategy)
	}
}
