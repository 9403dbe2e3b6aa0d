package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimedTextFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("v") != "V1" || q.Get("fmt") != "json3" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("lang") == "de" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(`{"events":[
			{"tStartMs":0,"dDurationMs":1500,"segs":[{"utf8":"The lion "},{"utf8":"waits"}]},
			{"tStartMs":1500,"dDurationMs":10},
			{"tStartMs":2000,"dDurationMs":1000,"segs":[{"utf8":"&amp; pounces"}]}
		]}`))
	}))
	defer srv.Close()

	c := NewTimedTextClient(srv.URL, []string{"de", "en"}, 5*time.Second)
	segs, err := c.Fetch(context.Background(), "V1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("segments = %+v", segs)
	}
	if segs[0].Text != "The lion waits" || segs[0].Duration != 1.5 {
		t.Fatalf("first segment = %+v", segs[0])
	}
	if segs[1].Text != "& pounces" || segs[1].Start != 2 {
		t.Fatalf("second segment = %+v", segs[1])
	}
}

func TestTimedTextNoCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewTimedTextClient(srv.URL, nil, 5*time.Second)
	if _, err := c.Fetch(context.Background(), "V1"); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestTimedTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewTimedTextClient(srv.URL, []string{"en"}, 5*time.Second)
	_, err := c.Fetch(context.Background(), "V1")
	if err == nil || errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected HTTP error, got %v", err)
	}
}

func TestTimedTextEmptyID(t *testing.T) {
	c := NewTimedTextClient("http://127.0.0.1:0", nil, time.Second)
	if _, err := c.Fetch(context.Background(), ""); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}
