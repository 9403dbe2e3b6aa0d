// Package queue reads and updates the table of videos waiting to be blogged.
package queue

import (
	"context"
	"errors"
)

// ErrEmpty is returned by NextPending when nothing is waiting.
var ErrEmpty = errors.New("no pending videos")

// Status is the lifecycle state of an Item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPublished, StatusError:
		return true
	}
	return false
}

// Item is one video row. ID is the YouTube video id.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
}

// Store is the queue table. Transition is a single conditional update: it
// changes id from `from` to `to` and reports whether a row matched.
type Store interface {
	NextPending(ctx context.Context) (Item, error)
	Transition(ctx context.Context, id string, from, to Status) (bool, error)
	Enqueue(ctx context.Context, item Item) error
	List(ctx context.Context, status Status, limit int) ([]Item, error)
}
