package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into dst, rejecting unknown fields so
// typos surface as 400s instead of silently ignored settings.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseLimit reads the limit query parameter, applying a default and a cap.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// pathID extracts a numeric path parameter via Go 1.22+ routing.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// matchJSON is the wire shape for a match record.
type matchJSON struct {
	ObservedAt time.Time `json:"observed_at"`
	ItemID     int64     `json:"item_id"`
	ItemName   string    `json:"item_name"`
	Price      int64     `json:"price"`
	Quantity   int64     `json:"quantity"`
	SellerID   string    `json:"seller_id"`
	SellerName string    `json:"seller_name"`
	BazaarURL  string    `json:"bazaar_url"`
}

func toMatchJSON(r domain.MatchRecord) matchJSON {
	return matchJSON{
		ObservedAt: r.ObservedAt,
		ItemID:     r.ItemID,
		ItemName:   r.ItemName,
		Price:      r.Price,
		Quantity:   r.Quantity,
		SellerID:   r.SellerID,
		SellerName: r.SellerName,
		BazaarURL:  r.BazaarURL,
	}
}

// watchJSON is the wire shape for a watch definition.
type watchJSON struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Name      string    `json:"name"`
	MaxPrice  int64     `json:"max_price"`
	MinQty    int64     `json:"min_qty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWatchJSON(w domain.Watch) watchJSON {
	return watchJSON{
		ID:        w.ID,
		ItemID:    w.ItemID,
		Name:      w.Name,
		MaxPrice:  w.MaxPrice,
		MinQty:    w.MinQty,
		Position:  w.Position,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
