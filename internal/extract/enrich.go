package extract

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

var (
	headingRe     = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	marketPriceRe = regexp.MustCompile(`(?is)market\s+(?:price|value)[^$]*\$\s*(\d[\d,]*)`)
	itemImageRe   = regexp.MustCompile(`/images/items/(\d+)/`)
)

// ItemMeta is page-level metadata for the item whose listings are shown.
type ItemMeta struct {
	ID          int64
	Name        string
	MarketPrice int64 // 0 when the page does not state one
}

// ItemPage is the enriched extraction result used by the deep scan: the item
// metadata plus its normalized offers, each annotated with a vs-market
// percentage when the market price allows deriving one.
type ItemPage struct {
	Meta   ItemMeta
	Offers []domain.Offer
}

// ItemPage waits for readiness and extracts both the item metadata and the
// offers. Offers the page did not already annotate get a derived vs-market
// percentage when a market price is known.
func (e *Extractor) ItemPage(ctx context.Context, page domain.PageHandle) (ItemPage, error) {
	content, ready, err := e.waitReady(ctx, page)
	if err != nil {
		return ItemPage{}, fmt.Errorf("extract: read page content for item %d: %w", page.ItemID(), err)
	}

	meta := parseMeta(content)
	if meta.ID == 0 {
		meta.ID = page.ItemID()
	}
	if !ready {
		return ItemPage{Meta: meta}, nil
	}

	offers := Normalize(parseOffers(content))
	if meta.MarketPrice > 0 {
		for i := range offers {
			if offers[i].VsMarket == nil {
				pct := VsMarketPercent(offers[i].Price, meta.MarketPrice)
				offers[i].VsMarket = &pct
			}
		}
	}
	return ItemPage{Meta: meta, Offers: offers}, nil
}

func parseMeta(content string) ItemMeta {
	var meta ItemMeta
	if m := headingRe.FindStringSubmatch(content); m != nil {
		meta.Name = strings.TrimSpace(stripTags(m[1]))
	}
	if m := marketPriceRe.FindStringSubmatch(content); m != nil {
		if v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			meta.MarketPrice = v
		}
	}
	if m := itemImageRe.FindStringSubmatch(content); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			meta.ID = v
		}
	}
	return meta
}

// VsMarketPercent is the percent deviation of price from market. Negative
// means below market. Halves round up toward positive infinity, so -12.5
// becomes -12, the same value the listing pages display.
func VsMarketPercent(price, market int64) int {
	return int(math.Floor(float64(price-market)/float64(market)*100 + 0.5))
}
