package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"video_blog_publisher/generator"
	"video_blog_publisher/media"
	"video_blog_publisher/publisher"
	"video_blog_publisher/queue"
	"video_blog_publisher/transcript"
)

// memStore is an in-memory queue.Store.
type memStore struct {
	mu          sync.Mutex
	items       []queue.Item
	transitions []string
	// claimHook runs before a pending->processing transition is applied.
	claimHook func(s *memStore, id string)
	failTo    queue.Status
}

func (s *memStore) NextPending(context.Context) (queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Status == queue.StatusPending {
			return it, nil
		}
	}
	return queue.Item{}, queue.ErrEmpty
}

func (s *memStore) Transition(_ context.Context, id string, from, to queue.Status) (bool, error) {
	if from == queue.StatusPending && to == queue.StatusProcessing && s.claimHook != nil {
		s.claimHook(s, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo != "" && to == s.failTo {
		return false, errors.New("store unavailable")
	}
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].Status == from {
			s.items[i].Status = to
			s.transitions = append(s.transitions, fmt.Sprintf("%s->%s", from, to))
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Enqueue(_ context.Context, it queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, it)
	return nil
}

func (s *memStore) List(_ context.Context, status queue.Status, _ int) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []queue.Item
	for _, it := range s.items {
		if status == "" || it.Status == status {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) status(id string) queue.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it.Status
		}
	}
	return ""
}

type noTranscript struct{}

func (noTranscript) Fetch(context.Context, string) ([]transcript.Segment, error) {
	return nil, transcript.ErrNoTranscript
}

type funcLLM func(ctx context.Context, p generator.Prompt) (string, error)

func (f funcLLM) Complete(ctx context.Context, p generator.Prompt) (string, error) { return f(ctx, p) }

func jsonLLM(prompts *[]generator.Prompt) funcLLM {
	return func(_ context.Context, p generator.Prompt) (string, error) {
		if prompts != nil {
			*prompts = append(*prompts, p)
		}
		if p.Kind == generator.PromptTitle {
			return "Lion Hunt at Dawn", nil
		}
		return `{"seo_title":"Lion Hunt at Dawn","html_body":"<blockquote>Silence.</blockquote><p>The pride moves.</p><h3>Did you know?</h3><p>Lions hunt at dawn.</p>"}`, nil
	}
}

type fakeProvider struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(context.Context, string) (media.Asset, error) {
	f.calls++
	if f.err != nil {
		return media.Asset{}, f.err
	}
	return media.Asset{Data: f.data, ContentType: "image/jpeg"}, nil
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(context.Context, media.Asset, string) (media.Reference, error) {
	f.calls++
	if f.err != nil {
		return media.Reference{}, f.err
	}
	return media.Reference{URL: f.url}, nil
}

// wpServer records posted bodies and answers with status.
type wpServer struct {
	*httptest.Server
	mu     sync.Mutex
	posts  []map[string]any
	status int
}

func newWPServer(t *testing.T, status int) *wpServer {
	t.Helper()
	ws := &wpServer{status: status}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode post: %v", err)
		}
		ws.mu.Lock()
		ws.posts = append(ws.posts, body)
		ws.mu.Unlock()
		w.WriteHeader(ws.status)
		if ws.status == http.StatusCreated {
			w.Write([]byte(`{"id":42,"link":"https://blog.example/lion-hunt"}`))
			return
		}
		w.Write([]byte(`{"code":"internal_server_error","message":"database is down"}`))
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *wpServer) count() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.posts)
}

type fixture struct {
	store    queue.Store
	llm      generator.LLMClient
	provider *fakeProvider
	uploader *fakeUploader
	wp       *wpServer
	opts     []Option
}

func (f fixture) build(t *testing.T) *Pipeline {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	gen, err := generator.NewGenerator(f.llm, generator.WithLogger(logger, false))
	if err != nil {
		t.Fatal(err)
	}
	pub, err := publisher.New(publisher.Settings{
		BaseURL:     f.wp.URL,
		Username:    "editor",
		AppPassword: "secret",
	}, f.wp.Client(), false, logger)
	if err != nil {
		t.Fatal(err)
	}
	asm, err := publisher.NewAssembler(publisher.AssemblerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	images := media.NewGenerator([]media.Provider{f.provider},
		media.WithRetryDelay(0),
		media.WithGeneratorLogger(logger),
	)

	opts := append([]Option{WithLogger(logger, true), WithStyle("cinematic")}, f.opts...)
	p, err := New(Stages{
		Store:     f.store,
		Contexts:  transcript.NewResolver(noTranscript{}, nil, 4000, logger),
		Content:   gen,
		Images:    images,
		Uploader:  f.uploader,
		Assembler: asm,
		Publisher: pub,
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func lionStore() *memStore {
	return &memStore{items: []queue.Item{{
		ID:          "V1",
		Title:       "Lion Hunt",
		Description: "A lion hunts at dawn",
		Status:      queue.StatusPending,
	}}}
}

func TestRunOnceIdle(t *testing.T) {
	f := fixture{
		store:    &memStore{},
		llm:      jsonLLM(nil),
		provider: &fakeProvider{},
		uploader: &fakeUploader{},
		wp:       newWPServer(t, http.StatusCreated),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomeIdle || rep.RunID == "" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if f.wp.count() != 0 {
		t.Fatal("nothing should be published")
	}
}

// Transcript missing, description fallback, image ok, publish 201.
func TestRunOncePublishesWithDescriptionFallback(t *testing.T) {
	var prompts []generator.Prompt
	store := lionStore()
	f := fixture{
		store:    store,
		llm:      jsonLLM(&prompts),
		provider: &fakeProvider{data: bytes.Repeat([]byte{0xff}, 2048)},
		uploader: &fakeUploader{url: "https://i.ibb.co/lion.jpg"},
		wp:       newWPServer(t, http.StatusCreated),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomePublished || rep.PostID != 42 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := store.status("V1"); got != queue.StatusPublished {
		t.Fatalf("status = %s", got)
	}
	if want := []string{"pending->processing", "processing->published"}; strings.Join(store.transitions, ",") != strings.Join(want, ",") {
		t.Fatalf("transitions = %v", store.transitions)
	}
	if rep.ContextSource != string(transcript.SourceDescription) {
		t.Fatalf("context source = %s", rep.ContextSource)
	}
	if len(prompts) == 0 || !strings.Contains(prompts[0].User, "Visual video. Description: A lion hunts at dawn") {
		t.Fatalf("fallback context not used in prompt: %+v", prompts)
	}

	if f.wp.count() != 1 {
		t.Fatalf("posts = %d", f.wp.count())
	}
	post := f.wp.posts[0]
	if post["title"] != "Lion Hunt at Dawn" || post["status"] != "publish" {
		t.Fatalf("post = %v", post)
	}
	if post["fifu_image_url"] != "https://i.ibb.co/lion.jpg" {
		t.Fatalf("image url = %v", post["fifu_image_url"])
	}
	if !strings.Contains(post["content"].(string), "https://www.youtube.com/watch?v=V1") {
		t.Fatalf("embed missing: %v", post["content"])
	}
}

// Model transport error marks the item error without publishing.
func TestRunOnceContentFailureMarksError(t *testing.T) {
	store := lionStore()
	f := fixture{
		store: store,
		llm: funcLLM(func(context.Context, generator.Prompt) (string, error) {
			return "", errors.New("dial tcp: connection refused")
		}),
		provider: &fakeProvider{data: bytes.Repeat([]byte{1}, 2048)},
		uploader: &fakeUploader{url: "https://i.ibb.co/x.jpg"},
		wp:       newWPServer(t, http.StatusCreated),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomeFailed || !strings.Contains(rep.Err, "connection refused") {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := store.status("V1"); got != queue.StatusError {
		t.Fatalf("status = %s", got)
	}
	if f.wp.count() != 0 || f.provider.calls != 0 {
		t.Fatalf("no image or publish expected, posts=%d image calls=%d", f.wp.count(), f.provider.calls)
	}
}

// Image exhausts its retries; the post still goes out without a thumbnail.
func TestRunOnceImageFailureStillPublishes(t *testing.T) {
	store := lionStore()
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{data: []byte("tiny")},
		uploader: &fakeUploader{url: "https://i.ibb.co/x.jpg"},
		wp:       newWPServer(t, http.StatusCreated),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomePublished || !rep.Image.Empty() {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if f.provider.calls != 3 {
		t.Fatalf("image attempts = %d, want 3", f.provider.calls)
	}
	if f.uploader.calls != 0 {
		t.Fatal("uploader should not run without an image")
	}
	post := f.wp.posts[0]
	if _, ok := post["fifu_image_url"]; ok {
		t.Fatalf("unexpected image reference: %v", post)
	}
	if _, ok := post["featured_media"]; ok {
		t.Fatalf("unexpected featured media: %v", post)
	}
	if got := store.status("V1"); got != queue.StatusPublished {
		t.Fatalf("status = %s", got)
	}
}

func TestRunOnceUploadFailureStillPublishes(t *testing.T) {
	store := lionStore()
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{data: bytes.Repeat([]byte{1}, 2048)},
		uploader: &fakeUploader{err: errors.New("imgbb: HTTP 400")},
		wp:       newWPServer(t, http.StatusCreated),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomePublished || !rep.Image.Empty() {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

// Publish 500 leaves the item pending with the error text captured.
func TestRunOncePublishFailureLeavesPending(t *testing.T) {
	store := lionStore()
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{data: bytes.Repeat([]byte{1}, 2048)},
		uploader: &fakeUploader{url: "https://i.ibb.co/x.jpg"},
		wp:       newWPServer(t, http.StatusInternalServerError),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomeRetry {
		t.Fatalf("outcome = %s", rep.Outcome)
	}
	if !strings.Contains(rep.Err, "500") || !strings.Contains(rep.Err, "database is down") {
		t.Fatalf("error text not captured: %q", rep.Err)
	}
	if got := store.status("V1"); got != queue.StatusPending {
		t.Fatalf("status = %s", got)
	}
}

func TestRunOnceWithoutClaimWritesOnlyTerminalStatus(t *testing.T) {
	store := lionStore()
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{data: bytes.Repeat([]byte{1}, 2048)},
		uploader: &fakeUploader{url: "https://i.ibb.co/x.jpg"},
		wp:       newWPServer(t, http.StatusInternalServerError),
		opts:     []Option{WithClaim(false)},
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomeRetry {
		t.Fatalf("outcome = %s", rep.Outcome)
	}
	if len(store.transitions) != 0 {
		t.Fatalf("publish failure without claim must not write: %v", store.transitions)
	}
}

func TestRunOnceLostClaimSkips(t *testing.T) {
	store := lionStore()
	store.claimHook = func(s *memStore, id string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.items {
			if s.items[i].ID == id {
				s.items[i].Status = queue.StatusProcessing
			}
		}
	}
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{},
		uploader: &fakeUploader{},
		wp:       newWPServer(t, http.StatusCreated),
	}
	rep, err := f.build(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s", rep.Outcome)
	}
	if f.wp.count() != 0 {
		t.Fatal("skipped item must not be published")
	}
}

func TestRunOnceCancelledReleasesClaim(t *testing.T) {
	store := lionStore()
	ctx, cancel := context.WithCancel(context.Background())
	f := fixture{
		store: store,
		llm: funcLLM(func(ctx context.Context, _ generator.Prompt) (string, error) {
			cancel()
			return "", ctx.Err()
		}),
		provider: &fakeProvider{},
		uploader: &fakeUploader{},
		wp:       newWPServer(t, http.StatusCreated),
	}
	_, err := f.build(t).RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if got := store.status("V1"); got != queue.StatusPending {
		t.Fatalf("claim not released, status = %s", got)
	}
}

func TestRunOnceStatusWriteFailureAfterPostKeepsClaim(t *testing.T) {
	store := lionStore()
	store.failTo = queue.StatusPublished
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{},
		uploader: &fakeUploader{},
		wp:       newWPServer(t, http.StatusCreated),
	}
	p := f.build(t)

	rep, err := p.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "store unavailable") {
		t.Fatalf("expected store error, got %v", err)
	}
	if rep.PostID != 42 {
		t.Fatalf("report should carry the created post: %+v", rep)
	}
	if got := store.status("V1"); got != queue.StatusProcessing {
		t.Fatalf("status = %s, want processing", got)
	}

	// The item is not picked up again until the claim is reset.
	rep, err = p.RunOnce(context.Background())
	if err != nil || rep.Outcome != OutcomeIdle {
		t.Fatalf("second run: %+v %v", rep, err)
	}
	if f.wp.count() != 1 {
		t.Fatalf("posts = %d, want 1", f.wp.count())
	}
}

func TestRunOnceStoreFailureBeforePostReleasesClaim(t *testing.T) {
	store := lionStore()
	store.failTo = queue.StatusError
	f := fixture{
		store: store,
		llm: funcLLM(func(context.Context, generator.Prompt) (string, error) {
			return "", errors.New("502 bad gateway")
		}),
		provider: &fakeProvider{},
		uploader: &fakeUploader{},
		wp:       newWPServer(t, http.StatusCreated),
	}
	_, err := f.build(t).RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "store unavailable") {
		t.Fatalf("expected store error, got %v", err)
	}
	if got := store.status("V1"); got != queue.StatusPending {
		t.Fatalf("status = %s, want pending", got)
	}
	if f.wp.count() != 0 {
		t.Fatal("nothing should be posted")
	}
}

func TestRunOnceAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := queue.OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	for _, it := range []queue.Item{
		{ID: "V1", Title: "Lion Hunt", Description: "A lion hunts at dawn"},
		{ID: "V2", Title: "Elephant Bath"},
	} {
		if err := store.Enqueue(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{data: bytes.Repeat([]byte{1}, 2048)},
		uploader: &fakeUploader{url: "https://i.ibb.co/x.jpg"},
		wp:       newWPServer(t, http.StatusCreated),
	}
	p := f.build(t)
	for _, want := range []string{"V1", "V2"} {
		rep, err := p.RunOnce(ctx)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if rep.Outcome != OutcomePublished || rep.Item.ID != want {
			t.Fatalf("report = %+v, want %s published", rep, want)
		}
	}
	rep, err := p.RunOnce(ctx)
	if err != nil || rep.Outcome != OutcomeIdle {
		t.Fatalf("expected idle, got %+v %v", rep, err)
	}
	published, err := store.List(ctx, queue.StatusPublished, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(published) != 2 {
		t.Fatalf("published = %+v", published)
	}
}

func TestPreviewHasNoSideEffects(t *testing.T) {
	store := lionStore()
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{data: bytes.Repeat([]byte{1}, 2048)},
		uploader: &fakeUploader{url: "https://i.ibb.co/x.jpg"},
		wp:       newWPServer(t, http.StatusCreated),
	}
	d, err := f.build(t).PreviewNext(context.Background())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if d.Item.ID != "V1" || d.Content.SEOTitle != "Lion Hunt at Dawn" {
		t.Fatalf("draft = %+v", d)
	}
	if d.ImagePrompt != "Lion Hunt at Dawn, cinematic" {
		t.Fatalf("image prompt = %q", d.ImagePrompt)
	}
	if !strings.Contains(d.Post.Content, "youtube.com/watch?v=V1") {
		t.Fatalf("post content = %q", d.Post.Content)
	}
	if len(store.transitions) != 0 || f.wp.count() != 0 || f.provider.calls != 0 {
		t.Fatal("preview must not change state")
	}
}

func TestResetStale(t *testing.T) {
	store := &memStore{items: []queue.Item{
		{ID: "a", Title: "A", Status: queue.StatusProcessing},
		{ID: "b", Title: "B", Status: queue.StatusPublished},
		{ID: "c", Title: "C", Status: queue.StatusProcessing},
	}}
	f := fixture{
		store:    store,
		llm:      jsonLLM(nil),
		provider: &fakeProvider{},
		uploader: &fakeUploader{},
		wp:       newWPServer(t, http.StatusCreated),
	}
	n, err := f.build(t).ResetStale(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || store.status("a") != queue.StatusPending || store.status("b") != queue.StatusPublished {
		t.Fatalf("n=%d items=%+v", n, store.items)
	}
}

func TestNewRequiresStages(t *testing.T) {
	if _, err := New(Stages{}); err == nil {
		t.Fatal("expected error")
	}
}

