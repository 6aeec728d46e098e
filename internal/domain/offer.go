package domain

import "fmt"

// Offer is one seller's currently listed price/quantity for an item, as
// extracted from rendered page content. Offers are ephemeral: each extraction
// produces a fresh set and nothing here is persisted directly.
//
// An offer is only valid with a seller identifier, a non-negative price, and
// a positive quantity; the extractor drops anything else before it surfaces.
type Offer struct {
	SellerID   string
	SellerName string
	Price      int64
	Quantity   int64
	// VsMarket is the percent deviation from the item's canonical market
	// price, when the page supplied one or it could be derived. Nil when
	// unknown.
	VsMarket *int
}

// Key is the intra-page dedup key. A seller can legitimately post several
// distinct listings for one item, but identical (seller, price, quantity)
// triples are the same listing rendered twice.
func (o Offer) Key() string {
	return fmt.Sprintf("%s|%d|%d", o.SellerID, o.Price, o.Quantity)
}
