// workers/asset_reindex_worker.go
package workers

import (
	"context"
	"fmt"
	"time"

	"hunt-publish-system/logger"

	"github.com/go-co-op/gocron/v2"
)

// AssetIndex is the part of the asset usage service the sweeper drives.
type AssetIndex interface {
	StaleHunts(ctx context.Context, limit int) ([]int64, error)
	Rebuild(ctx context.Context, huntID int64) error
}

const defaultSweepBatch = 100

// AssetReindexWorker periodically rebuilds the asset index of hunts whose index is missing
// or older than the hunt. It repairs rebuilds that failed after a publish or release.
type AssetReindexWorker struct {
	index     AssetIndex
	interval  time.Duration
	batchSize int
	log       *logger.Logger
	sched     gocron.Scheduler
}

func NewAssetReindexWorker(index AssetIndex, interval time.Duration, log *logger.Logger) *AssetReindexWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AssetReindexWorker{
		index:     index,
		interval:  interval,
		batchSize: defaultSweepBatch,
		log:       log.With("worker", "AssetReindexWorker"),
	}
}

// Start schedules the sweep; a run still in progress makes the next tick wait.
func (w *AssetReindexWorker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Warn("⚠️ asset reindex sweep failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("asset-reindex-sweep"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule asset reindex: %w", err)
	}

	w.sched = sched
	sched.Start()
	w.log.Info("🔁 asset reindex sweeper started", "interval", w.interval.String())
	return nil
}

func (w *AssetReindexWorker) Stop() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}

// RunOnce rebuilds one batch of stale hunts and returns how many succeeded. A failing hunt
// is logged and left stale for the next sweep.
func (w *AssetReindexWorker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.index.StaleHunts(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return rebuilt, ctx.Err()
		}
		if err := w.index.Rebuild(ctx, id); err != nil {
			w.log.Warn("asset reindex failed", "hunt_id", id, "error", err)
			continue
		}
		rebuilt++
	}
	if len(ids) > 0 {
		w.log.Info("✅ asset reindex sweep done", "stale", len(ids), "rebuilt", rebuilt)
	}
	return rebuilt, nil
}
