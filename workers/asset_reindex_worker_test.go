package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hunt-publish-system/logger"
	"hunt-publish-system/services"
	"hunt-publish-system/store"
	"hunt-publish-system/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	mu      sync.Mutex
	stale   []int64
	failing map[int64]bool
	rebuilt []int64
}

func (f *fakeIndex) StaleHunts(_ context.Context, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stale) > limit {
		return append([]int64(nil), f.stale[:limit]...), nil
	}
	return append([]int64(nil), f.stale...), nil
}

func (f *fakeIndex) Rebuild(_ context.Context, huntID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[huntID] {
		return errors.New("rebuild failed")
	}
	f.rebuilt = append(f.rebuilt, huntID)
	return nil
}

func (f *fakeIndex) Rebuilt() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.rebuilt...)
}

func TestRunOnceSkipsFailingHunts(t *testing.T) {
	index := &fakeIndex{stale: []int64{1, 2, 3}, failing: map[int64]bool{2: true}}
	w := NewAssetReindexWorker(index, time.Minute, logger.NewNop())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, index.Rebuilt())
}

func TestRunOnceStopsOnCancelledContext(t *testing.T) {
	index := &fakeIndex{stale: []int64{1, 2}}
	w := NewAssetReindexWorker(index, time.Minute, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := w.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestRunOnceAgainstDatabase(t *testing.T) {
	db := testutil.DB(t)
	testutil.SeedDraftHunt(t, db, 1, "s1", "s2")
	testutil.SeedDraftHunt(t, db, 2, "s1")
	st := store.NewGormStore()
	index := services.NewAssetUsageService(db, st, store.NewGormTxRunner(db), nil, logger.NewNop())
	w := NewAssetReindexWorker(index, time.Minute, logger.NewNop())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is stale after a sweep")

	rows, err := index.Usages(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStartRunsScheduledSweep(t *testing.T) {
	index := &fakeIndex{stale: []int64{7}}
	w := NewAssetReindexWorker(index, 50*time.Millisecond, logger.NewNop())

	require.NoError(t, w.Start(context.Background()))
	defer func() { assert.NoError(t, w.Stop()) }()

	assert.Eventually(t, func() bool { return len(index.Rebuilt()) > 0 }, 2*time.Second, 10*time.Millisecond)
}
