package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func event(q string) analytics.QueryEvent {
	return analytics.QueryEvent{Operation: analytics.OpSearch, Query: q, Outcome: analytics.OutcomeOK}
}

func TestBatchCollector_FlushKeysByOperation(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 10, time.Hour, nil)

	bc.Record(event("jvm"))
	bc.Record(event("gc"))
	assert.Equal(t, 2, bc.BufferLen())

	bc.Flush(context.Background())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "search", pub.batches[0][0].Key)
	assert.Equal(t, event("jvm"), pub.batches[0][0].Value)
	assert.Zero(t, bc.BufferLen())
}

func TestBatchCollector_FullBatchTriggersFlush(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 3, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bc.Start(ctx)

	for _, q := range []string{"a", "b", "c"} {
		bc.Record(event(q))
	}
	require.Eventually(t, func() bool { return pub.published() == 3 }, time.Second, 5*time.Millisecond)
}

func TestBatchCollector_FinalFlushOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 100, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	bc.Record(event("late"))
	cancel()
	bc.Close()

	assert.Equal(t, 1, pub.published())
}

func TestBatchCollector_RequeuesAndCapsOnFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	bc := NewBatchCollector(pub, 2, time.Hour, nil)

	for i := 0; i < 8; i++ {
		bc.Record(event("q"))
	}
	bc.Flush(context.Background())
	assert.Equal(t, 6, bc.BufferLen())

	pub.err = nil
	bc.Flush(context.Background())
	assert.Equal(t, 6, pub.published())
	assert.Zero(t, bc.BufferLen())
}
