// Package domain defines the core types and store contracts for the bazaar
// watcher: watch definitions, extracted offers, persisted match records, and
// the capability interfaces implemented by the postgres, redis, and s3 layers.
package domain

import (
	"fmt"
	"time"
)

// Watch is a user-configured rule naming an item and the thresholds a bazaar
// offer must meet to be reported. Watches are polled strictly in insertion
// order within a cycle.
type Watch struct {
	ID        int64
	ItemID    int64
	Name      string
	MaxPrice  int64
	MinQty    int64
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the configured name, falling back to "Item <id>" when
// the watch was saved without one.
func (w Watch) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return fmt.Sprintf("Item %d", w.ItemID)
}
