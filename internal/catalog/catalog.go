// Package catalog loads the item reference list from CSV. The file maps item
// ids to names, categories, and canonical market values; the deep scan uses
// it to turn a market-value range into a concrete set of item ids.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Item is one catalog row.
type Item struct {
	ID          int64
	Name        string
	Category    string
	MarketValue int64 // 0 when the catalog does not know it
}

// Catalog is an immutable, indexed item list.
type Catalog struct {
	items []Item
	byID  map[int64]Item
}

// Column header aliases, compared case-insensitively after trimming.
var (
	idHeaders       = []string{"id", "item_id", "itemid"}
	nameHeaders     = []string{"name", "item_name", "itemname"}
	categoryHeaders = []string{"category", "type"}
	marketHeaders   = []string{"marketvalue", "market_value", "market value", "marketprice", "market_price", "market price", "market"}
)

var nonNumericRe = regexp.MustCompile(`[^0-9-]`)

// Load reads a catalog CSV from disk.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return c, nil
}

// Parse reads catalog rows. The header row is required; column order is
// free and unknown columns are ignored. Rows without a usable id are
// skipped, not fatal.
func Parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idCol := findColumn(header, idHeaders)
	nameCol := findColumn(header, nameHeaders)
	categoryCol := findColumn(header, categoryHeaders)
	marketCol := findColumn(header, marketHeaders)
	if idCol < 0 {
		return nil, fmt.Errorf("no id column in header %q", strings.Join(header, ","))
	}

	c := &Catalog{byID: make(map[int64]Item)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id, ok := numericField(row, idCol)
		if !ok || id <= 0 {
			continue
		}
		item := Item{
			ID:       id,
			Name:     textField(row, nameCol),
			Category: textField(row, categoryCol),
		}
		if mv, ok := numericField(row, marketCol); ok && mv > 0 {
			item.MarketValue = mv
		}
		if _, dup := c.byID[item.ID]; dup {
			continue
		}
		c.items = append(c.items, item)
		c.byID[item.ID] = item
	}
	return c, nil
}

// Len reports the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns all items in file order.
func (c *Catalog) Items() []Item { return c.items }

// Lookup finds an item by id.
func (c *Catalog) Lookup(id int64) (Item, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// Categories returns the distinct non-empty categories, sorted.
func (c *Catalog) Categories() []string {
	set := make(map[string]struct{})
	for _, item := range c.items {
		if item.Category != "" {
			set[item.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for cat := range set {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// FilterByMarketValue returns items whose market value lies in [min, max],
// boundaries inclusive. A non-positive bound is open on that side, so a
// min-only request selects everything at or above min. Items with no known
// market value never qualify.
func (c *Catalog) FilterByMarketValue(min, max int64) []Item {
	var out []Item
	for _, item := range c.items {
		if item.MarketValue <= 0 {
			continue
		}
		if min > 0 && item.MarketValue < min {
			continue
		}
		if max > 0 && item.MarketValue > max {
			continue
		}
		out = append(out, item)
	}
	return out
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func textField(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func numericField(row []string, col int) (int64, bool) {
	s := nonNumericRe.ReplaceAllString(textField(row, col), "")
	if s == "" || s == "-" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
