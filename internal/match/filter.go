// Package match holds the pure threshold filters that decide which extracted
// offers qualify against a watch definition.
package match

import "github.com/tw3b/bazaarwatch/internal/domain"

// Qualify returns the offers that satisfy the watch thresholds: price at or
// below MaxPrice and quantity at or above MinQty. Both boundaries are
// inclusive. Input order is preserved, so offers already sorted by price stay
// sorted.
func Qualify(offers []domain.Offer, w domain.Watch) []domain.Offer {
	var out []domain.Offer
	for _, o := range offers {
		if o.Price <= w.MaxPrice && o.Quantity >= w.MinQty {
			out = append(out, o)
		}
	}
	return out
}

// QualifyVsMarket is the deep-scan variant: an offer qualifies when its
// vs-market percentage is known and at or below the threshold. Offers priced
// at exactly $1 are excluded; the page uses them as placeholder rows and they
// would otherwise dominate any below-market ranking.
func QualifyVsMarket(offers []domain.Offer, maxVsMarket int) []domain.Offer {
	var out []domain.Offer
	for _, o := range offers {
		if o.VsMarket == nil || *o.VsMarket > maxVsMarket {
			continue
		}
		if o.Price == 1 {
			continue
		}
		out = append(out, o)
	}
	return out
}
