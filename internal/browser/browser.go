// Package browser defines the contracts the bot needs from an automation
// engine, independent of the engine that implements them.
package browser

import (
	"context"
)

// Element is a handle to a node that existed on the page at query time.
type Element interface {
	Click(ctx context.Context) error
	// Describe returns a short human readable identity, for logs.
	Describe() string
}

// Page is the shared handle to the game tab.
type Page interface {
	// Navigate loads url and blocks until the engine reports the network idle.
	Navigate(ctx context.Context, url string) error
	// QuerySelector returns the first matching element, or nil when none
	// matches. It never waits for the element to appear.
	QuerySelector(ctx context.Context, selector string) (Element, error)
	// QuerySelectorAll returns every match in document order.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)
}

// StateStore captures and restores the persistent browser state of a page.
type StateStore interface {
	Snapshot(ctx context.Context) (*State, error)
	Restore(ctx context.Context, state *State) error
}
