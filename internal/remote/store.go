package remote

import (
	"context"
	"errors"
	"time"

	"listou/internal/apperr"
	"listou/internal/shopping"
)

// ErrPermissionDenied is returned by Watch when the caller may not read the shared document.
var ErrPermissionDenied = apperr.New(apperr.KindPermissionDenied, "open shared list", "permission denied", nil)

// ErrSubscriptionClosed is returned by Watch when the store closed the feed on its own.
var ErrSubscriptionClosed = errors.New("subscription closed by store")

// Document is the shared active list for one pairing code.
type Document struct {
	Items     []shopping.Item `json:"items"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DocumentStore is the remote side of the shared list.
type DocumentStore interface {
	// Watch first reports the current document (exists is false when nobody has written it
	// yet) and then every new version, including the caller's own writes. Callbacks run
	// serially on the calling goroutine. Watch blocks until ctx is cancelled (returning nil)
	// or the feed fails.
	Watch(ctx context.Context, code string, fn func(doc Document, exists bool)) error

	// Put overwrites the whole items array of the document.
	Put(ctx context.Context, code string, items []shopping.Item) error
}
