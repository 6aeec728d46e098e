package domain

import "context"

// PageHandle represents a navigable rendered page for a single item's
// listings. The remote site renders listings asynchronously, so Content is a
// point-in-time snapshot: callers poll it until a readiness predicate is
// satisfied or their timeout elapses.
type PageHandle interface {
	ItemID() int64
	URL() string
	// Content returns the current rendered content of the page. An error
	// here is a structural failure (the page could not be read at all), not
	// a not-yet-rendered condition.
	Content(ctx context.Context) (string, error)
}

// PageRenderer acquires ready pages for item listings. Implementations reuse
// a single shared page where possible, navigating it between items.
type PageRenderer interface {
	// EnsureReady returns a page for the item, creating or re-navigating the
	// shared page as needed. It waits for the page's fully-loaded signal up
	// to a bounded timeout, but a timeout is not an error: the handle is
	// returned anyway and the extractor's own readiness wait is the real
	// gate.
	EnsureReady(ctx context.Context, itemID int64) (PageHandle, error)
}
