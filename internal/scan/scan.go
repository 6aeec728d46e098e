// Package scan implements the manual deep scan: sweep a set of items, pull
// their enriched listings, keep offers sufficiently below market, and rank
// the survivors by total profit.
package scan

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/extract"
	"github.com/tw3b/bazaarwatch/internal/match"
)

const (
	// DefaultRowsPerItem caps how many offers per item enter the report.
	DefaultRowsPerItem = 20
	// MaxRowsPerItem is the hard ceiling for the per-item cap.
	MaxRowsPerItem = 100
	// DefaultMaxVsMarket keeps offers at least 5% below market.
	DefaultMaxVsMarket = -5
)

// Request describes one scan run.
type Request struct {
	ItemIDs     []int64
	MaxVsMarket int
	RowsPerItem int
	// Delay and Jitter pace the sweep between items.
	Delay  time.Duration
	Jitter time.Duration
}

// Row is one qualifying offer in the report.
type Row struct {
	ItemID      int64  `json:"item_id"`
	ItemName    string `json:"item_name"`
	MarketPrice int64  `json:"market_price"`
	SellerID    string `json:"seller_id"`
	SellerName  string `json:"seller_name"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	VsMarket    *int   `json:"vs_market"`
	// ProfitUnit/ProfitTotal are nil when the market price is unknown.
	ProfitUnit  *int64 `json:"profit_unit"`
	ProfitTotal *int64 `json:"profit_total"`
	BazaarURL   string `json:"bazaar_url"`
}

// Report is the outcome of a scan run, rows sorted by total profit
// descending. Stopped marks a run cut short by cancellation; the rows
// gathered up to that point are still included.
type Report struct {
	Rows         []Row `json:"rows"`
	ItemsScanned int   `json:"items_scanned"`
	Stopped      bool  `json:"stopped"`
}

// Scanner runs deep scans against the rendered pages.
type Scanner struct {
	renderer  domain.PageRenderer
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewScanner builds a Scanner. The extractor should carry the scan-specific
// readiness timeout, which is longer than the poll cycle's.
func NewScanner(renderer domain.PageRenderer, extractor *extract.Extractor, logger *slog.Logger) *Scanner {
	return &Scanner{
		renderer:  renderer,
		extractor: extractor,
		logger:    logger.With(slog.String("component", "scan")),
	}
}

// Run sweeps the requested items in order. Cancellation is checked between
// items; a canceled run returns the partial report with Stopped set rather
// than an error. Items whose page cannot be read are logged and skipped.
func (s *Scanner) Run(ctx context.Context, req Request) (Report, error) {
	req = normalize(req)
	var report Report

	for i, itemID := range req.ItemIDs {
		if ctx.Err() != nil {
			report.Stopped = true
			break
		}

		rows, err := s.scanItem(ctx, itemID, req)
		if err != nil {
			if ctx.Err() != nil {
				report.Stopped = true
				break
			}
			s.logger.WarnContext(ctx, "item scan failed, skipping",
				slog.Int64("item_id", itemID),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Rows = append(report.Rows, rows...)
		report.ItemsScanned++

		if i < len(req.ItemIDs)-1 {
			delay := req.Delay
			if req.Jitter > 0 {
				delay += rand.N(req.Jitter)
			}
			if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
				report.Stopped = true
				break
			}
		}
	}

	sortRows(report.Rows)
	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("items_scanned", report.ItemsScanned),
		slog.Int("rows", len(report.Rows)),
		slog.Bool("stopped", report.Stopped),
	)
	return report, nil
}

func (s *Scanner) scanItem(ctx context.Context, itemID int64, req Request) ([]Row, error) {
	page, err := s.renderer.EnsureReady(ctx, itemID)
	if err != nil {
		return nil, err
	}
	ip, err := s.extractor.ItemPage(ctx, page)
	if err != nil {
		return nil, err
	}

	offers := ip.Offers
	if len(offers) > req.RowsPerItem {
		offers = offers[:req.RowsPerItem]
	}
	kept := match.QualifyVsMarket(offers, req.MaxVsMarket)

	name := ip.Meta.Name
	if name == "" {
		name = domain.Watch{ItemID: itemID}.DisplayName()
	}

	rows := make([]Row, 0, len(kept))
	for _, o := range kept {
		row := Row{
			ItemID:      itemID,
			ItemName:    name,
			MarketPrice: ip.Meta.MarketPrice,
			SellerID:    o.SellerID,
			SellerName:  o.SellerName,
			Price:       o.Price,
			Quantity:    o.Quantity,
			VsMarket:    o.VsMarket,
			BazaarURL:   domain.BazaarURL(o.SellerID),
		}
		if ip.Meta.MarketPrice > 0 {
			unit := ip.Meta.MarketPrice - o.Price
			total := unit * o.Quantity
			row.ProfitUnit = &unit
			row.ProfitTotal = &total
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sortRows orders by total profit descending; rows with unknown profit sink
// to the bottom, keeping their relative order.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := rows[i].ProfitTotal, rows[j].ProfitTotal
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi > *pj
		}
	})
}

func normalize(req Request) Request {
	if req.RowsPerItem <= 0 {
		req.RowsPerItem = DefaultRowsPerItem
	}
	if req.RowsPerItem > MaxRowsPerItem {
		req.RowsPerItem = MaxRowsPerItem
	}
	if req.MaxVsMarket == 0 {
		req.MaxVsMarket = DefaultMaxVsMarket
	}
	if req.Delay < 0 {
		req.Delay = 0
	}
	return req
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
