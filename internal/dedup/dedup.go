// Package dedup decides which qualified offers are genuinely new and keeps
// the match history bounded. It is pure: persistence of the resulting records
// is the store's job.
package dedup

import (
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// Capacity is the maximum number of match records retained, newest first.
const Capacity = 200

// Reconcile converts qualified offers into match records, skipping every
// offer whose fingerprint is already in seen. The seen set is updated as
// records are produced, so duplicate candidates within a single batch
// collapse to one record. Running the same batch twice yields nothing the
// second time.
func Reconcile(offers []domain.Offer, w domain.Watch, seen map[string]struct{}, now time.Time) []domain.MatchRecord {
	var records []domain.MatchRecord
	for _, o := range offers {
		fp := domain.Fingerprint(w.ItemID, o.Price, o.Quantity, o.SellerID)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		records = append(records, domain.MatchRecord{
			ObservedAt: now,
			ItemID:     w.ItemID,
			ItemName:   w.DisplayName(),
			Price:      o.Price,
			Quantity:   o.Quantity,
			SellerID:   o.SellerID,
			SellerName: o.SellerName,
			BazaarURL:  domain.BazaarURL(o.SellerID),
		})
	}
	return records
}

// Truncate bounds a newest-first record list to capacity, dropping the
// oldest entries.
func Truncate(records []domain.MatchRecord, capacity int) []domain.MatchRecord {
	if capacity < 0 {
		capacity = 0
	}
	if len(records) <= capacity {
		return records
	}
	return records[:capacity]
}
