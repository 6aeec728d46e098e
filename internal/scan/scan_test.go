package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/extract"
)

func listingRow(sellerID, qty, price string) string {
	return `<tr><td><a href="https://www.torn.com/bazaar.php?userId=` + sellerID + `">Seller [` + sellerID + `]</a></td>` +
		`<td>` + qty + `</td><td>$` + price + `</td></tr>`
}

func itemPageHTML(name, market string, rows ...string) string {
	return `<h1>` + name + `</h1><p>Market Price: $` + market + `</p>` + strings.Join(rows, "")
}

type stubPage struct {
	itemID  int64
	content string
}

func (p *stubPage) ItemID() int64                           { return p.itemID }
func (p *stubPage) URL() string                             { return "stub://item" }
func (p *stubPage) Content(context.Context) (string, error) { return p.content, nil }

type stubRenderer struct {
	pages  map[int64]string
	failID int64
	onCall func(itemID int64)
	calls  []int64
}

func (r *stubRenderer) EnsureReady(_ context.Context, itemID int64) (domain.PageHandle, error) {
	r.calls = append(r.calls, itemID)
	if r.onCall != nil {
		r.onCall(itemID)
	}
	if r.failID != 0 && itemID == r.failID {
		return nil, errors.New("navigation failed")
	}
	return &stubPage{itemID: itemID, content: r.pages[itemID]}, nil
}

func newTestScanner(r *stubRenderer) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScanner(r, extract.New(time.Millisecond, 50*time.Millisecond), logger)
}

func TestRunBuildsProfitRankedReport(t *testing.T) {
	renderer := &stubRenderer{pages: map[int64]string{
		1: itemPageHTML("Xanax", "1,000",
			listingRow("10", "2", "900"), // -10%, unit 100, total 200
			listingRow("11", "1", "940"), // -6%, unit 60, total 60
			listingRow("12", "9", "960"), // -4%, above threshold
			listingRow("13", "5", "1"),   // placeholder row, excluded
		),
	}}

	s := newTestScanner(renderer)
	report, err := s.Run(context.Background(), Request{ItemIDs: []int64{1}, MaxVsMarket: -5})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ItemsScanned)
	assert.False(t, report.Stopped)
	require.Len(t, report.Rows, 2)

	top := report.Rows[0]
	assert.Equal(t, "Xanax", top.ItemName)
	assert.Equal(t, int64(1000), top.MarketPrice)
	assert.Equal(t, "10", top.SellerID)
	require.NotNil(t, top.ProfitUnit)
	assert.Equal(t, int64(100), *top.ProfitUnit)
	require.NotNil(t, top.ProfitTotal)
	assert.Equal(t, int64(200), *top.ProfitTotal)
	require.NotNil(t, top.VsMarket)
	assert.Equal(t, -10, *top.VsMarket)

	assert.Equal(t, "11", report.Rows[1].SellerID)
	assert.Equal(t, int64(60), *report.Rows[1].ProfitTotal)
}

func TestRunRespectsRowsPerItemCap(t *testing.T) {
	renderer := &stubRenderer{pages: map[int64]string{
		1: itemPageHTML("Xanax", "1000",
			listingRow("10", "1", "800"),
			listingRow("11", "1", "850"),
			listingRow("12", "1", "900"),
		),
	}}

	s := newTestScanner(renderer)
	report, err := s.Run(context.Background(), Request{ItemIDs: []int64{1}, MaxVsMarket: -5, RowsPerItem: 1})
	require.NoError(t, err)

	// Offers are price-sorted before the cap, so only the cheapest survives.
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "10", report.Rows[0].SellerID)
}

func TestRunSkipsFailedItems(t *testing.T) {
	renderer := &stubRenderer{
		failID: 1,
		pages: map[int64]string{
			2: itemPageHTML("Hammer", "100", listingRow("9", "1", "80")),
		},
	}

	s := newTestScanner(renderer)
	report, err := s.Run(context.Background(), Request{ItemIDs: []int64{1, 2}, MaxVsMarket: -5})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, renderer.calls)
	assert.Equal(t, 1, report.ItemsScanned)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, int64(2), report.Rows[0].ItemID)
}

func TestRunStopsBetweenItemsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	renderer := &stubRenderer{
		pages: map[int64]string{
			1: itemPageHTML("Xanax", "1000", listingRow("10", "1", "800")),
			2: itemPageHTML("Hammer", "100", listingRow("9", "1", "80")),
		},
		onCall: func(int64) { cancel() },
	}

	s := newTestScanner(renderer)
	report, err := s.Run(ctx, Request{ItemIDs: []int64{1, 2}, MaxVsMarket: -5})
	require.NoError(t, err)

	assert.True(t, report.Stopped)
	assert.Equal(t, 1, report.ItemsScanned)
	assert.Equal(t, []int64{1}, renderer.calls, "second item must not be visited")
	require.Len(t, report.Rows, 1, "partial results are kept")
}

func TestRunUnknownMarketPriceLeavesProfitNil(t *testing.T) {
	renderer := &stubRenderer{pages: map[int64]string{
		// No market price on the page; the row carries its own -8% tag.
		1: `<h1>Mystery</h1><tr><td><a href="https://www.torn.com/bazaar.php?userId=5">S [5]</a></td>` +
			`<td>2</td><td>$500</td><td>-8%</td></tr>`,
	}}

	s := newTestScanner(renderer)
	report, err := s.Run(context.Background(), Request{ItemIDs: []int64{1}, MaxVsMarket: -5})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Nil(t, report.Rows[0].ProfitUnit)
	assert.Nil(t, report.Rows[0].ProfitTotal)
	require.NotNil(t, report.Rows[0].VsMarket)
	assert.Equal(t, -8, *report.Rows[0].VsMarket)
}
