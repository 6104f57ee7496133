// Package driver defines the page automation capabilities the crawler needs.
//
// The crawler never talks to a browser directly. It discovers elements,
// reads from them, scrolls and opens detail views through PageDriver, which
// lets the pagination algorithm run against a real browser or the in-memory
// fake in drivertest.
package driver

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by reads when the selector matches nothing
var ErrNotFound = errors.New("element not found")

// Handle identifies an element on the page. Its concrete type belongs to the
// driver implementation; a nil Handle means the whole document.
type Handle any

// PageDriver is a live, scrollable document. Implementations are not required
// to be safe for concurrent use; the crawler issues one operation at a time.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	CurrentLocation(ctx context.Context) (string, error)

	// Discover returns every element currently matching selector in the document
	Discover(ctx context.Context, selector string) ([]Handle, error)
	// DiscoverWithin is Discover scoped to the subtree under h
	DiscoverWithin(ctx context.Context, h Handle, selector string) ([]Handle, error)

	ScrollForward(ctx context.Context) error
	ScrollBackward(ctx context.Context, offset int) error

	// ReadText returns the text of the first match of selector under h.
	// An empty selector reads h itself.
	ReadText(ctx context.Context, h Handle, selector string) (string, error)
	// ReadAttribute returns attribute name of the first match of selector under h
	ReadAttribute(ctx context.Context, h Handle, selector, name string) (string, error)

	// WaitUntilPresent reports whether selector appeared before timeout elapsed
	WaitUntilPresent(ctx context.Context, selector string, timeout time.Duration) (bool, error)

	OpenDetailView(ctx context.Context, h Handle) error
	CloseDetailView(ctx context.Context) error
}
