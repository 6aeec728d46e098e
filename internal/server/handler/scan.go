package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tw3b/bazaarwatch/internal/catalog"
	"github.com/tw3b/bazaarwatch/internal/scan"
)

// ScanRunner is the slice of the deep scanner the handler needs.
type ScanRunner interface {
	Run(ctx context.Context, req scan.Request) (scan.Report, error)
}

// ScanHandler serves the manual deep-scan endpoint.
type ScanHandler struct {
	scanner ScanRunner
	items   *catalog.Catalog
	defs    ScanDefaults
	logger  *slog.Logger
}

// ScanDefaults carries the configured scan pacing applied when a request
// leaves those fields unset.
type ScanDefaults struct {
	RowsPerItem int
	MaxVsMarket int
	Delay       time.Duration
	Jitter      time.Duration
}

// NewScanHandler creates a ScanHandler. items may be nil when no catalog is
// loaded; catalog-driven selection then returns a 400.
func NewScanHandler(scanner ScanRunner, items *catalog.Catalog, defs ScanDefaults, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, items: items, defs: defs, logger: logger}
}

type scanRequest struct {
	ItemIDs        []int64 `json:"item_ids"`
	MinMarketValue int64   `json:"min_market_value"`
	MaxMarketValue int64   `json:"max_market_value"`
	MaxVsMarket    int     `json:"max_vs_market"`
	RowsPerItem    int     `json:"rows_per_item"`
}

// RunScan scans the requested items and returns rows ranked by profit.
// Items come either from an explicit id list or from the catalog filtered
// by market value range.
// POST /api/scan
func (h *ScanHandler) RunScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := req.ItemIDs
	if len(ids) == 0 {
		if req.MinMarketValue <= 0 && req.MaxMarketValue <= 0 {
			writeError(w, http.StatusBadRequest, "provide item_ids or a market value range")
			return
		}
		if h.items == nil {
			writeError(w, http.StatusBadRequest, "no item catalog loaded; provide item_ids")
			return
		}
		for _, it := range h.items.FilterByMarketValue(req.MinMarketValue, req.MaxMarketValue) {
			ids = append(ids, it.ID)
		}
		if len(ids) == 0 {
			writeError(w, http.StatusBadRequest, "no catalog items in the requested range")
			return
		}
	}

	maxVs := req.MaxVsMarket
	if maxVs == 0 {
		maxVs = h.defs.MaxVsMarket
	}
	rows := req.RowsPerItem
	if rows == 0 {
		rows = h.defs.RowsPerItem
	}

	report, err := h.scanner.Run(r.Context(), scan.Request{
		ItemIDs:     ids,
		MaxVsMarket: maxVs,
		RowsPerItem: rows,
		Delay:       h.defs.Delay,
		Jitter:      h.defs.Jitter,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: scan failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rows":          report.Rows,
		"items_scanned": report.ItemsScanned,
		"stopped":       report.Stopped,
	})
}
