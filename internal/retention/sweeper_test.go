package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tw3b/bazaarwatch/internal/domain"
)

type fakeMatches struct {
	records   []domain.MatchRecord
	listErr   error
	deleteErr error
	deleted   []time.Time
}

func (f *fakeMatches) ListBefore(_ context.Context, cutoff time.Time) ([]domain.MatchRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.MatchRecord
	for _, r := range f.records {
		if r.ObservedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMatches) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, cutoff)
	var kept []domain.MatchRecord
	var n int64
	for _, r := range f.records {
		if r.ObservedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return n, nil
}

func (f *fakeMatches) InsertBatch(context.Context, []domain.MatchRecord) error      { return nil }
func (f *fakeMatches) TruncateToCapacity(context.Context, int) (int64, error)       { return 0, nil }
func (f *fakeMatches) Fingerprints(context.Context) (map[string]struct{}, error)    { return nil, nil }
func (f *fakeMatches) ListRecent(context.Context, int) ([]domain.MatchRecord, error) { return nil, nil }
func (f *fakeMatches) Clear(context.Context) error                                  { return nil }
func (f *fakeMatches) Count(context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

type fakeBlobs struct {
	paths []string
	data  [][]byte
	err   error
}

func (b *fakeBlobs) Put(_ context.Context, path string, body io.Reader, _ string) error {
	if b.err != nil {
		return b.err
	}
	payload, _ := io.ReadAll(body)
	b.paths = append(b.paths, path)
	b.data = append(b.data, payload)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordAt(age time.Duration, now time.Time) domain.MatchRecord {
	return domain.MatchRecord{ObservedAt: now.Add(-age), ItemID: 1, Price: 100, Quantity: 1, SellerID: "s"}
}

func TestSweepOncePrunesExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	matches := &fakeMatches{records: []domain.MatchRecord{
		recordAt(45*time.Minute, now),
		recordAt(31*time.Minute, now),
		recordAt(5*time.Minute, now),
	}}

	s := NewSweeper(matches, nil, 30*time.Minute, time.Minute, testLogger())
	s.now = func() time.Time { return now }

	require.NoError(t, s.SweepOnce(context.Background()))
	require.Len(t, matches.records, 1)
	assert.Equal(t, now.Add(-5*time.Minute), matches.records[0].ObservedAt)
}

func TestSweepOnceNoopWhenNothingExpired(t *testing.T) {
	now := time.Now()
	matches := &fakeMatches{records: []domain.MatchRecord{recordAt(time.Minute, now)}}
	blobs := &fakeBlobs{}

	s := NewSweeper(matches, blobs, 30*time.Minute, time.Minute, testLogger())
	require.NoError(t, s.SweepOnce(context.Background()))
	assert.Empty(t, matches.deleted)
	assert.Empty(t, blobs.paths)
}

func TestSweepOnceArchivesBeforeDeleting(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	matches := &fakeMatches{records: []domain.MatchRecord{recordAt(time.Hour, now)}}
	blobs := &fakeBlobs{}

	s := NewSweeper(matches, blobs, 30*time.Minute, time.Minute, testLogger())
	s.now = func() time.Time { return now }

	require.NoError(t, s.SweepOnce(context.Background()))
	require.Len(t, blobs.paths, 1)
	assert.Equal(t, "matches/archive/20260801T120000Z.json", blobs.paths[0])
	assert.Contains(t, string(blobs.data[0]), `"ItemID":1`)
	assert.Empty(t, matches.records)
}

func TestSweepOnceArchiveFailureKeepsRecords(t *testing.T) {
	now := time.Now()
	matches := &fakeMatches{records: []domain.MatchRecord{recordAt(time.Hour, now)}}
	blobs := &fakeBlobs{err: errors.New("bucket gone")}

	s := NewSweeper(matches, blobs, 30*time.Minute, time.Minute, testLogger())
	err := s.SweepOnce(context.Background())
	require.ErrorContains(t, err, "archive")
	assert.Len(t, matches.records, 1, "records must survive a failed archive")
}

func TestSetRetention(t *testing.T) {
	s := NewSweeper(&fakeMatches{}, nil, 0, time.Minute, testLogger())
	assert.Equal(t, DefaultRetain, s.Retention())

	s.SetRetention(90 * time.Minute)
	assert.Equal(t, 90*time.Minute, s.Retention())

	s.SetRetention(-time.Minute)
	assert.Equal(t, DefaultRetain, s.Retention())
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewSweeper(&fakeMatches{}, nil, time.Minute, 10*time.Millisecond, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
