package domain

import (
	"fmt"
	"time"
)

// bazaarURLFormat is the seller storefront URL a match record links back to.
const bazaarURLFormat = "https://www.torn.com/bazaar.php?userId=%s"

// MatchRecord is a persisted, deduplicated, timestamped offer that satisfied
// a watch definition. Records are never mutated after creation; they leave the
// store only through capacity truncation, the retention sweep, or an explicit
// clear.
type MatchRecord struct {
	ObservedAt time.Time
	ItemID     int64
	ItemName   string
	Price      int64
	Quantity   int64
	SellerID   string
	SellerName string
	BazaarURL  string
}

// Fingerprint identifies the real-world offer behind this record regardless
// of when it was observed. Two records with equal fingerprints are the same
// event and must never both be reported as new.
func (m MatchRecord) Fingerprint() string {
	return Fingerprint(m.ItemID, m.Price, m.Quantity, m.SellerID)
}

// Fingerprint builds the composite dedup key for an offer-at-a-price.
func Fingerprint(itemID, price, quantity int64, sellerID string) string {
	return fmt.Sprintf("%d|%d|%d|%s", itemID, price, quantity, sellerID)
}

// BazaarURL returns the storefront link for a seller.
func BazaarURL(sellerID string) string {
	return fmt.Sprintf(bazaarURLFormat, sellerID)
}
