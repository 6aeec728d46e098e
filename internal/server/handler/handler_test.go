package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tw3b/bazaarwatch/internal/catalog"
	"github.com/tw3b/bazaarwatch/internal/domain"
	"github.com/tw3b/bazaarwatch/internal/scan"
)

var testLogger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

type fakeWatchStore struct {
	watches []domain.Watch
	nextID  int64
	fail    error
}

func (s *fakeWatchStore) List(ctx context.Context) ([]domain.Watch, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.watches, nil
}

func (s *fakeWatchStore) GetByID(ctx context.Context, id int64) (domain.Watch, error) {
	for _, w := range s.watches {
		if w.ID == id {
			return w, nil
		}
	}
	return domain.Watch{}, domain.ErrNotFound
}

func (s *fakeWatchStore) Create(ctx context.Context, w domain.Watch) (domain.Watch, error) {
	if s.fail != nil {
		return domain.Watch{}, s.fail
	}
	s.nextID++
	w.ID = s.nextID
	w.Position = len(s.watches) + 1
	s.watches = append(s.watches, w)
	return w, nil
}

func (s *fakeWatchStore) Update(ctx context.Context, w domain.Watch) error {
	for i := range s.watches {
		if s.watches[i].ID == w.ID {
			s.watches[i] = w
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeWatchStore) Delete(ctx context.Context, id int64) error {
	for i := range s.watches {
		if s.watches[i].ID == id {
			s.watches = append(s.watches[:i], s.watches[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeMatchStore struct {
	records []domain.MatchRecord
	cleared bool
}

func (s *fakeMatchStore) InsertBatch(ctx context.Context, records []domain.MatchRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *fakeMatchStore) TruncateToCapacity(ctx context.Context, capacity int) (int64, error) {
	return 0, nil
}

func (s *fakeMatchStore) Fingerprints(ctx context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (s *fakeMatchStore) ListRecent(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func (s *fakeMatchStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.MatchRecord, error) {
	return nil, nil
}

func (s *fakeMatchStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeMatchStore) Clear(ctx context.Context) error {
	s.cleared = true
	s.records = nil
	return nil
}

func (s *fakeMatchStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

type fakeSettingsStore struct {
	settings domain.Settings
	putCalls int
}

func (s *fakeSettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	return s.settings, nil
}

func (s *fakeSettingsStore) Put(ctx context.Context, settings domain.Settings) error {
	s.settings = settings
	s.putCalls++
	return nil
}

type fakeTrigger struct {
	err   error
	calls int
}

func (t *fakeTrigger) ForcePoll(ctx context.Context) error {
	t.calls++
	return t.err
}

type fakeScanner struct {
	lastReq scan.Request
	report  scan.Report
	err     error
}

func (s *fakeScanner) Run(ctx context.Context, req scan.Request) (scan.Report, error) {
	s.lastReq = req
	return s.report, s.err
}

type recordedIntervals struct {
	interval time.Duration
	retain   time.Duration
}

func (r *recordedIntervals) SetInterval(d time.Duration)  { r.interval = d }
func (r *recordedIntervals) SetRetention(d time.Duration) { r.retain = d }

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestListWatches(t *testing.T) {
	store := &fakeWatchStore{watches: []domain.Watch{
		{ID: 1, ItemID: 206, Name: "Xanax", MaxPrice: 830000, MinQty: 1, Position: 1},
	}}
	h := NewWatchHandler(store, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/watches", nil)
	rec := httptest.NewRecorder()
	h.ListWatches(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Watches []watchJSON `json:"watches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Watches, 1)
	assert.Equal(t, int64(206), body.Watches[0].ItemID)
	assert.Equal(t, "Xanax", body.Watches[0].Name)
}

func TestCreateWatch(t *testing.T) {
	store := &fakeWatchStore{}
	h := NewWatchHandler(store, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/watches",
		jsonBody(t, watchRequest{ItemID: 206, Name: "Xanax", MaxPrice: 830000, MinQty: 1}))
	rec := httptest.NewRecorder()
	h.CreateWatch(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created watchJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, 1, created.Position)
}

func TestCreateWatchRejectsInvalidPayload(t *testing.T) {
	h := NewWatchHandler(&fakeWatchStore{}, testLogger)

	cases := []struct {
		name string
		req  watchRequest
	}{
		{"zero item id", watchRequest{MaxPrice: 100, MinQty: 1}},
		{"zero max price", watchRequest{ItemID: 206, MinQty: 1}},
		{"zero min qty", watchRequest{ItemID: 206, MaxPrice: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/watches", jsonBody(t, tc.req))
			rec := httptest.NewRecorder()
			h.CreateWatch(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateWatchNotFound(t *testing.T) {
	h := NewWatchHandler(&fakeWatchStore{}, testLogger)

	req := httptest.NewRequest(http.MethodPut, "/api/watches/99",
		jsonBody(t, watchRequest{ItemID: 206, MaxPrice: 100, MinQty: 1}))
	req.SetPathValue("id", "99")
	rec := httptest.NewRecorder()
	h.UpdateWatch(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteWatch(t *testing.T) {
	store := &fakeWatchStore{watches: []domain.Watch{{ID: 7, ItemID: 206, MaxPrice: 1, MinQty: 1}}}
	h := NewWatchHandler(store, testLogger)

	req := httptest.NewRequest(http.MethodDelete, "/api/watches/7", nil)
	req.SetPathValue("id", "7")
	rec := httptest.NewRecorder()
	h.DeleteWatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.watches)
}

func TestListMatchesAppliesLimit(t *testing.T) {
	store := &fakeMatchStore{}
	for i := 0; i < 5; i++ {
		store.records = append(store.records, domain.MatchRecord{ItemID: int64(i)})
	}
	h := NewMatchHandler(store, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/matches?limit=2", nil)
	rec := httptest.NewRecorder()
	h.ListMatches(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Matches []matchJSON `json:"matches"`
		Total   int64       `json:"total"`
		Limit   int         `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Matches, 2)
	assert.Equal(t, int64(5), body.Total)
	assert.Equal(t, 2, body.Limit)
}

func TestClearMatches(t *testing.T) {
	store := &fakeMatchStore{records: []domain.MatchRecord{{ItemID: 1}}}
	h := NewMatchHandler(store, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/matches/clear", nil)
	rec := httptest.NewRecorder()
	h.ClearMatches(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.cleared)
}

func TestTriggerPoll(t *testing.T) {
	trigger := &fakeTrigger{}
	h := NewPollHandler(trigger, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/poll/trigger", nil)
	rec := httptest.NewRecorder()
	h.TriggerPoll(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, trigger.calls)
}

func TestTriggerPollWhileCycleRunning(t *testing.T) {
	trigger := &fakeTrigger{err: domain.ErrCycleInProgress}
	h := NewPollHandler(trigger, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/poll/trigger", nil)
	rec := httptest.NewRecorder()
	h.TriggerPoll(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGetSettings(t *testing.T) {
	store := &fakeSettingsStore{settings: domain.Settings{PollIntervalMinutes: 3, RetainMinutes: 45}}
	h := NewSettingsHandler(store, nil, nil, testLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	h.GetSettings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body settingsJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.PollIntervalMinutes)
	assert.Equal(t, 45, body.RetainMinutes)
}

func TestUpdateSettingsPersistsAndApplies(t *testing.T) {
	store := &fakeSettingsStore{}
	applied := &recordedIntervals{}
	h := NewSettingsHandler(store, applied, applied, testLogger)

	req := httptest.NewRequest(http.MethodPut, "/api/settings",
		jsonBody(t, settingsJSON{PollIntervalMinutes: 5, RetainMinutes: 60}))
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.putCalls)
	assert.Equal(t, 5*time.Minute, applied.interval)
	assert.Equal(t, time.Hour, applied.retain)
}

func TestUpdateSettingsRejectsBadValues(t *testing.T) {
	store := &fakeSettingsStore{}
	h := NewSettingsHandler(store, nil, nil, testLogger)

	req := httptest.NewRequest(http.MethodPut, "/api/settings",
		jsonBody(t, settingsJSON{PollIntervalMinutes: 0, RetainMinutes: 30}))
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.putCalls)
}

func TestRunScanExplicitIDs(t *testing.T) {
	scanner := &fakeScanner{report: scan.Report{ItemsScanned: 2}}
	h := NewScanHandler(scanner, nil, ScanDefaults{RowsPerItem: 20, MaxVsMarket: -5}, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/scan",
		jsonBody(t, scanRequest{ItemIDs: []int64{206, 207}}))
	rec := httptest.NewRecorder()
	h.RunScan(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{206, 207}, scanner.lastReq.ItemIDs)
	assert.Equal(t, -5, scanner.lastReq.MaxVsMarket)
	assert.Equal(t, 20, scanner.lastReq.RowsPerItem)
}

func TestRunScanFromCatalogRange(t *testing.T) {
	items, err := catalog.Parse(strings.NewReader(
		"id,name,market_value\n206,Xanax,850000\n310,Erotic DVD,5000\n"))
	require.NoError(t, err)

	scanner := &fakeScanner{}
	h := NewScanHandler(scanner, items, ScanDefaults{RowsPerItem: 20, MaxVsMarket: -5}, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/scan",
		jsonBody(t, scanRequest{MinMarketValue: 100000, MaxMarketValue: 1000000}))
	rec := httptest.NewRecorder()
	h.RunScan(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{206}, scanner.lastReq.ItemIDs)
}

func TestRunScanMinOnlyRange(t *testing.T) {
	items, err := catalog.Parse(strings.NewReader(
		"id,name,market_value\n206,Xanax,850000\n310,Erotic DVD,5000\n"))
	require.NoError(t, err)

	scanner := &fakeScanner{}
	h := NewScanHandler(scanner, items, ScanDefaults{RowsPerItem: 20, MaxVsMarket: -5}, testLogger)

	// An omitted max leaves the range open above.
	req := httptest.NewRequest(http.MethodPost, "/api/scan",
		jsonBody(t, scanRequest{MinMarketValue: 100000}))
	rec := httptest.NewRecorder()
	h.RunScan(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{206}, scanner.lastReq.ItemIDs)
}

func TestRunScanRejectsEmptySelection(t *testing.T) {
	h := NewScanHandler(&fakeScanner{}, nil, ScanDefaults{}, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", jsonBody(t, scanRequest{}))
	rec := httptest.NewRecorder()
	h.RunScan(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
