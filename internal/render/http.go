// Package render acquires listing pages for the extractor. The HTTP renderer
// models the original single-tab flow: one shared page is reused across
// items, re-navigated when the requested item changes, and every Content call
// fetches a fresh snapshot so the extractor's readiness polling observes the
// page as it materializes server-side.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/extract"
)

const (
	loadPollInterval = 200 * time.Millisecond
	maxPageBytes     = 4 << 20
)

// HTTPRenderer implements domain.PageRenderer over plain HTTP.
type HTTPRenderer struct {
	baseURL     string
	client      *http.Client
	loadTimeout time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	page *httpPage
}

// NewHTTPRenderer builds a renderer rooted at baseURL. loadTimeout bounds the
// initial fully-loaded wait per navigation.
func NewHTTPRenderer(baseURL string, loadTimeout time.Duration, logger *slog.Logger) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		loadTimeout: loadTimeout,
		logger:      logger.With(slog.String("component", "render")),
	}
}

// EnsureReady returns the shared page navigated to the item, waiting up to
// loadTimeout for the first successful fetch. A load timeout is logged and
// swallowed: the extractor's readiness wait decides whether the page is
// usable.
func (r *HTTPRenderer) EnsureReady(ctx context.Context, itemID int64) (domain.PageHandle, error) {
	r.mu.Lock()
	if r.page == nil || r.page.itemID != itemID {
		r.page = &httpPage{
			itemID: itemID,
			url:    fmt.Sprintf("%s/item/%d", r.baseURL, itemID),
			client: r.client,
		}
	}
	page := r.page
	r.mu.Unlock()

	if err := r.waitLoaded(ctx, page); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("page load wait expired, proceeding",
			slog.Int64("item_id", itemID), slog.String("error", err.Error()))
	}
	return page, nil
}

// waitLoaded polls the page until one fetch succeeds or loadTimeout elapses.
func (r *HTTPRenderer) waitLoaded(ctx context.Context, page *httpPage) error {
	deadline := time.Now().Add(r.loadTimeout)
	var lastErr error
	for {
		content, err := page.Content(ctx)
		if err == nil {
			if extract.Ready(content) {
				return nil
			}
			lastErr = fmt.Errorf("render: page not yet rendered")
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !time.Now().Add(loadPollInterval).Before(deadline) {
			return lastErr
		}
		timer := time.NewTimer(loadPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

type httpPage struct {
	itemID int64
	url    string
	client *http.Client
}

func (p *httpPage) ItemID() int64 { return p.itemID }
func (p *httpPage) URL() string   { return p.url }

// Content fetches the current document. Non-2xx responses are structural
// errors; a page that is reachable but not yet rendered simply returns
// content the readiness predicate rejects.
func (p *httpPage) Content(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render: fetch %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("render: fetch %s: status %d", p.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("render: read body: %w", err)
	}
	return string(body), nil
}
