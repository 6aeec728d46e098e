// Package extract turns rendered listing-page content into normalized offers.
//
// The remote site builds its listing table client-side, so page content is
// not parseable the moment the page loads. The extractor polls the page's
// content snapshot until either seller links appear, the page explicitly says
// there are no listings, or a bounded timeout elapses. A timeout degrades to
// an empty result; it is never an error.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

const (
	// DefaultPollInterval is how often the page content is re-sampled while
	// waiting for listings to materialize.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultTimeout bounds the readiness wait for the recurring poll cycle.
	DefaultTimeout = 15 * time.Second
)

var (
	sellerAnchorRe = regexp.MustCompile(`(?is)<a[^>]+href="[^"]*torn\.com/bazaar\.php\?userId=(\d+)[^"]*"[^>]*>(.*?)</a>`)
	tableRowRe     = regexp.MustCompile(`(?is)<tr[^>]*>.*?</tr>`)
	divRowRe       = regexp.MustCompile(`(?is)<div[^>]+role="row"[^>]*>.*?</div>`)
	tableCellRe    = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	divCellRe      = regexp.MustCompile(`(?is)<div[^>]+role="(?:grid)?cell"[^>]*>(.*?)</div>`)
	tagRe          = regexp.MustCompile(`(?s)<[^>]*>`)
	intRunRe       = regexp.MustCompile(`\d[\d,]*`)
	dollarRe       = regexp.MustCompile(`\$\s*(\d[\d,]*)`)
	percentRe      = regexp.MustCompile(`(-?\d+)\s*%`)
	sellerTagRe    = regexp.MustCompile(`\[(\d+)\]\s*$`)
	noListingsRe   = regexp.MustCompile(`(?i)no\s+(?:bazaar\s+)?listings`)
)

// Extractor reads offers out of a rendered page, waiting for readiness first.
type Extractor struct {
	pollInterval time.Duration
	timeout      time.Duration
}

// New builds an Extractor. Non-positive arguments fall back to the defaults.
func New(pollInterval, timeout time.Duration) *Extractor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{pollInterval: pollInterval, timeout: timeout}
}

// Ready reports whether the content has materialized enough to parse: at
// least one seller link is present, or the page explicitly reports that the
// item has no listings.
func Ready(content string) bool {
	return sellerAnchorRe.MatchString(content) || noListingsRe.MatchString(content)
}

// Listings waits for the page to become ready and returns its normalized
// offers: sorted by ascending price, intra-page duplicates collapsed,
// malformed rows dropped. If readiness never arrives within the timeout the
// result is empty and err is nil. An error is returned only when the page
// content itself cannot be read.
func (e *Extractor) Listings(ctx context.Context, page domain.PageHandle) ([]domain.Offer, error) {
	content, ready, err := e.waitReady(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("extract: read page content for item %d: %w", page.ItemID(), err)
	}
	if !ready {
		return nil, nil
	}
	return Normalize(parseOffers(content)), nil
}

// waitReady polls the page content until Ready or the timeout elapses,
// returning the last snapshot. Context cancellation aborts the wait.
func (e *Extractor) waitReady(ctx context.Context, page domain.PageHandle) (string, bool, error) {
	deadline := time.Now().Add(e.timeout)
	for {
		content, err := page.Content(ctx)
		if err != nil {
			return "", false, err
		}
		if Ready(content) {
			return content, true, nil
		}
		if !time.Now().Add(e.pollInterval).Before(deadline) {
			return content, false, nil
		}
		timer := time.NewTimer(e.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false, ctx.Err()
		case <-timer.C:
		}
	}
}

// Normalize sorts offers by ascending price (stable, so page order breaks
// ties) and collapses rows that repeat the same (seller, price, quantity).
func Normalize(offers []domain.Offer) []domain.Offer {
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Price < offers[j].Price
	})
	seen := make(map[string]struct{}, len(offers))
	out := offers[:0]
	for _, o := range offers {
		key := o.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out
}

// parseOffers splits content into listing rows and parses each one. Rows
// without a seller link or with unparseable price/quantity are dropped.
func parseOffers(content string) []domain.Offer {
	rows := tableRowRe.FindAllString(content, -1)
	rows = append(rows, divRowRe.FindAllString(content, -1)...)

	var offers []domain.Offer
	for _, row := range rows {
		if o, ok := parseRow(row); ok {
			offers = append(offers, o)
		}
	}
	return offers
}

func parseRow(row string) (domain.Offer, bool) {
	anchor := sellerAnchorRe.FindStringSubmatch(row)
	if anchor == nil {
		return domain.Offer{}, false
	}
	label := strings.TrimSpace(stripTags(anchor[2]))

	// Seller id comes from the "[123]" suffix the page appends to the
	// seller's name, with the link's userId param as fallback.
	sellerID := anchor[1]
	if tag := sellerTagRe.FindStringSubmatch(label); tag != nil {
		sellerID = tag[1]
		label = strings.TrimSpace(sellerTagRe.ReplaceAllString(label, ""))
	}
	if sellerID == "" {
		return domain.Offer{}, false
	}

	cells := cellTexts(row)

	qty, ok := parseIntRun(cellAt(cells, 1))
	if !ok || qty <= 0 {
		return domain.Offer{}, false
	}

	price, ok := parseDollars(cellAt(cells, 2))
	if !ok {
		// Some layouts fold the price into a combined cell; fall back to
		// the first $-amount anywhere in the row.
		price, ok = parseDollars(stripTags(row))
	}
	if !ok || price < 0 {
		return domain.Offer{}, false
	}

	o := domain.Offer{
		SellerID:   sellerID,
		SellerName: label,
		Price:      price,
		Quantity:   qty,
	}
	if pct, found := parsePercent(cellAt(cells, 3)); found {
		o.VsMarket = &pct
	} else if pct, found := parsePercent(stripTags(row)); found {
		o.VsMarket = &pct
	}
	return o, true
}

// cellTexts returns the plain-text content of each cell in a row, covering
// both table and ARIA-grid layouts.
func cellTexts(row string) []string {
	matches := tableCellRe.FindAllStringSubmatch(row, -1)
	if len(matches) == 0 {
		matches = divCellRe.FindAllStringSubmatch(row, -1)
	}
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, strings.TrimSpace(stripTags(m[1])))
	}
	return texts
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

// parseIntRun reads the first comma-grouped digit run in s.
func parseIntRun(s string) (int64, bool) {
	run := intRunRe.FindString(s)
	if run == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(run, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDollars reads the first $-prefixed amount in s. Bare numbers do not
// count; the $ sigil is what distinguishes a price cell from a quantity cell.
func parseDollars(s string) (int64, bool) {
	m := dollarRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePercent reads the first signed integer immediately before a % sign.
func parsePercent(s string) (int, bool) {
	m := percentRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
