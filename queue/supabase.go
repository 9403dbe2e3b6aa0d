package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SupabaseStore talks to a Supabase table through its PostgREST API.
type SupabaseStore struct {
	baseURL    string
	key        string
	table      string
	orderBy    string
	httpClient *http.Client
}

// NewSupabaseStore builds a store for table. orderBy is an optional column
// used to pick the oldest pending row.
func NewSupabaseStore(projectURL, key, table, orderBy string) (*SupabaseStore, error) {
	if projectURL == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	if table == "" {
		table = "videos"
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(projectURL, "/") + "/rest/v1/" + url.PathEscape(table),
		key:        key,
		table:      table,
		orderBy:    orderBy,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// supabaseRow tolerates a NULL description.
type supabaseRow struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      Status  `json:"status"`
}

func (r supabaseRow) item() Item {
	it := Item{ID: r.ID, Title: r.Title, Status: r.Status}
	if r.Description != nil {
		it.Description = *r.Description
	}
	return it
}

func (s *SupabaseStore) NextPending(ctx context.Context) (Item, error) {
	items, err := s.List(ctx, StatusPending, 1)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, ErrEmpty
	}
	return items[0], nil
}

func (s *SupabaseStore) List(ctx context.Context, status Status, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("select", "*")
	if status != "" {
		q.Set("status", "eq."+string(status))
	}
	if s.orderBy != "" {
		q.Set("order", s.orderBy+".asc")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var rows []supabaseRow
	if err := s.do(ctx, http.MethodGet, q, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

func (s *SupabaseStore) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("status", "eq."+string(from))

	var rows []supabaseRow
	body := map[string]Status{"status": to}
	if err := s.do(ctx, http.MethodPatch, q, body, "return=representation", &rows); err != nil {
		return false, fmt.Errorf("update %s %s -> %s: %w", id, from, to, err)
	}
	return len(rows) > 0, nil
}

func (s *SupabaseStore) Enqueue(ctx context.Context, item Item) error {
	if item.Status == "" {
		item.Status = StatusPending
	}
	if err := s.do(ctx, http.MethodPost, nil, item, "return=minimal", nil); err != nil {
		return fmt.Errorf("insert %s: %w", item.ID, err)
	}
	return nil
}

func (s *SupabaseStore) do(ctx context.Context, method string, q url.Values, payload any, prefer string, out any) error {
	endpoint := s.baseURL
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("supabase HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
