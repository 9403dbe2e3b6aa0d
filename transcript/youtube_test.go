package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestYouTubeDescriptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/videos") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "yt-key" {
			t.Errorf("api key not sent: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("id") == "missing" {
			w.Write([]byte(`{"items": []}`))
			return
		}
		w.Write([]byte(`{"items": [{"id": "V1", "snippet": {"title": "Lion Hunt", "description": "A lion hunts at dawn"}}]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	yt, err := NewYouTubeDescriptions(ctx, "yt-key", srv.URL+"/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := yt.Description(ctx, "V1")
	if err != nil {
		t.Fatalf("description: %v", err)
	}
	if got != "A lion hunts at dawn" {
		t.Fatalf("description = %q", got)
	}

	if _, err := yt.Description(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown video")
	}
}

func TestYouTubeDescriptionsRequiresKey(t *testing.T) {
	if _, err := NewYouTubeDescriptions(context.Background(), "", ""); err == nil {
		t.Fatal("expected error without api key")
	}
}
