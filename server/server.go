package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"video_blog_publisher/pipeline"
	"video_blog_publisher/queue"
)

// Runner is the part of the pipeline the server drives.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.Report, error)
	Preview(ctx context.Context, item queue.Item) (pipeline.Draft, error)
	PreviewNext(ctx context.Context) (pipeline.Draft, error)
}

type Server struct {
	runner Runner
	store  queue.Store
	logger *log.Logger

	// runMu keeps runs sequential; the pipeline processes one item at a time.
	runMu      sync.Mutex
	runTimeout time.Duration
}

func New(runner Runner, store queue.Store, logger *log.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("pipeline required")
	}
	if store == nil {
		return nil, errors.New("queue store required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		runner:     runner,
		store:      store,
		logger:     logger,
		runTimeout: 10 * time.Minute,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/videos", s.handleVideos)
	mux.HandleFunc("/api/preview", s.handlePreview)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logMiddleware(mux)
}

// --- Handlers ---

type videoReq struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.runMu.TryLock() {
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()
	rep, err := s.runner.RunOnce(ctx)
	if err != nil {
		s.logger.Printf("[server] run failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := queue.Status(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			http.Error(w, "unknown status "+string(status), http.StatusBadRequest)
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		items, err := s.store.List(r.Context(), status, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		if items == nil {
			items = []queue.Item{}
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		req, ok := decodeVideo(w, r)
		if !ok {
			return
		}
		if req.ID == "" || req.Title == "" {
			http.Error(w, "id and title are required", http.StatusBadRequest)
			return
		}
		item := queue.Item{
			ID:          req.ID,
			Title:       req.Title,
			Description: req.Description,
			Status:      queue.StatusPending,
		}
		if err := s.store.Enqueue(r.Context(), item); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// An empty body previews the next pending item.
	var req videoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Title = strings.TrimSpace(req.Title)
	if req.ID != "" && req.Title == "" {
		http.Error(w, "title is required with id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	var (
		draft pipeline.Draft
		err   error
	)
	if req.ID == "" {
		draft, err = s.runner.PreviewNext(ctx)
	} else {
		draft, err = s.runner.Preview(ctx, queue.Item{ID: req.ID, Title: req.Title, Description: req.Description})
	}
	switch {
	case errors.Is(err, queue.ErrEmpty):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// --- Helpers ---

func decodeVideo(w http.ResponseWriter, r *http.Request) (videoReq, bool) {
	var req videoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Title = strings.TrimSpace(req.Title)
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.logger.Printf("[server] %s %s %d %s", r.Method, path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
