package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics/aggregator"
)

type memSnapshots struct {
	snaps []aggregator.Snapshot
	err   error
}

func (m *memSnapshots) ListSnapshots(_ context.Context, limit int) ([]aggregator.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snaps[:min(limit, len(m.snaps))], nil
}

func (m *memSnapshots) LatestSnapshot(ctx context.Context) (*aggregator.Snapshot, error) {
	snaps, err := m.ListSnapshots(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

func serveSnapshot(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec
}

func TestLatestSnapshotHandler(t *testing.T) {
	store := &memSnapshots{}
	h := latestSnapshotHandler(store)

	assert.Equal(t, http.StatusNotFound, serveSnapshot(t, h, "/api/v1/analytics/snapshots/latest").Code)

	store.snaps = []aggregator.Snapshot{
		{ID: 2, Stats: analytics.AggregatedStats{TotalQueries: 7}, CapturedAt: time.Now()},
		{ID: 1, Stats: analytics.AggregatedStats{TotalQueries: 3}, CapturedAt: time.Now().Add(-time.Minute)},
	}
	rec := serveSnapshot(t, h, "/api/v1/analytics/snapshots/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap aggregator.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 2, snap.ID)
	assert.EqualValues(t, 7, snap.Stats.TotalQueries)

	store.err = errors.New("connection refused")
	assert.Equal(t, http.StatusInternalServerError, serveSnapshot(t, h, "/api/v1/analytics/snapshots/latest").Code)
}

func TestSnapshotsHandler(t *testing.T) {
	store := &memSnapshots{snaps: []aggregator.Snapshot{{ID: 3}, {ID: 2}, {ID: 1}}}
	h := snapshotsHandler(store)

	rec := serveSnapshot(t, h, "/api/v1/analytics/snapshots?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Snapshots []aggregator.Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Snapshots, 2)

	assert.Equal(t, http.StatusBadRequest, serveSnapshot(t, h, "/api/v1/analytics/snapshots?limit=0").Code)
}
