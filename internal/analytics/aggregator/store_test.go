package aggregator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/postgres"
)

// testStore connects to the database named by CORPUS_TEST_POSTGRES_HOST,
// skipping when it is not set or not reachable.
func testStore(t *testing.T, retain int) *Store {
	t.Helper()
	host := os.Getenv("CORPUS_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("CORPUS_TEST_POSTGRES_HOST not set")
	}
	cfg := config.Default().Postgres
	cfg.Host = host
	if pw := os.Getenv("CORPUS_TEST_POSTGRES_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewStore(db, retain)
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.DB.ExecContext(ctx, `TRUNCATE analytics_snapshots`)
	require.NoError(t, err)
	return s
}

func TestStore_SaveAndList(t *testing.T) {
	s := testStore(t, 2)
	ctx := context.Background()

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.SaveSnapshot(ctx, analytics.AggregatedStats{TotalQueries: i}))
	}

	snaps, err := s.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2, "older snapshots are pruned")
	assert.EqualValues(t, 3, snaps[0].Stats.TotalQueries)

	latest, err = s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.EqualValues(t, 3, latest.Stats.TotalQueries)
}

func TestStore_PeriodicSaveFlushesOnCancel(t *testing.T) {
	s := testStore(t, 10)
	agg := analytics.NewAggregator()
	agg.Record(analytics.QueryEvent{Operation: analytics.OpSearch, Query: "singleton", Hits: 1, Outcome: analytics.OutcomeOK})

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartPeriodicSave(ctx, agg, time.Hour)
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("periodic save did not stop")
	}

	latest, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest, "a final snapshot is written on shutdown")
	assert.EqualValues(t, 1, latest.Stats.TotalQueries)
}

func TestNewStore_DefaultRetention(t *testing.T) {
	assert.Equal(t, 1000, NewStore(nil, 0).retain)
}
