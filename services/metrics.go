// services/metrics.go
package services

import (
	"context"
	"time"

	"hunt-publish-system/apperr"
	"hunt-publish-system/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opValidate    = "hunt.validate_can_publish"
	opPublish     = "hunt.publish"
	opRelease     = "hunt.release"
	opTakeOffline = "hunt.take_offline"
	opCreateHunt  = "hunt.create"
	opUpdateDraft = "hunt.update_draft"
	opAddStep     = "hunt.add_step"
)

var (
	pipelineOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunt_pipeline_operations_total",
		Help: "Pipeline operations by result code",
	}, []string{"operation", "result"})

	pipelineOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hunt_pipeline_operation_duration_seconds",
		Help:    "Pipeline operation latency including the transaction",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"operation"})

	pipelineConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunt_pipeline_conflicts_total",
		Help: "Lost optimistic-concurrency races by operation",
	}, []string{"operation"})

	assetReindexTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunt_asset_reindex_total",
		Help: "Asset usage rebuilds by result",
	}, []string{"result"})
)

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if code := apperr.CodeOf(err); code != "" {
		return string(code)
	}
	return string(apperr.CodeInternal)
}

func observeOperation(op string, start time.Time, err error) {
	pipelineOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	pipelineOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if apperr.IsConflict(err) {
		pipelineConflictsTotal.WithLabelValues(op).Inc()
	}
}

// runInTx runs fn in one transaction, maps whatever comes out to an apperr code and
// records the outcome.
func runInTx(ctx context.Context, runner store.TxRunner, op string, fn func(s store.Session) error) error {
	start := time.Now()
	err := store.MapError(op, runner.InTx(ctx, fn))
	observeOperation(op, start, err)
	return err
}
