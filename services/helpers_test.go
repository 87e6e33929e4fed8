package services

import (
	"context"
	"sync"
	"testing"

	"hunt-publish-system/logger"
	"hunt-publish-system/store"
	"hunt-publish-system/testutil"

	"gorm.io/gorm"
)

type pipeline struct {
	db        *gorm.DB
	validator *VersionValidator
	cloner    *StepCloner
	publisher *VersionPublisher
	releases  *ReleaseManager
	drafts    *DraftService
	reindexer *recordingReindexer
}

func newPipeline(t *testing.T, batchSize int) *pipeline {
	t.Helper()
	db := testutil.DB(t)
	st := store.NewGormStore()
	runner := store.NewGormTxRunner(db)
	log := logger.NewNop()
	reindexer := &recordingReindexer{}

	validator := NewVersionValidator(st, runner)
	cloner := NewStepCloner(st, batchSize)
	return &pipeline{
		db:        db,
		validator: validator,
		cloner:    cloner,
		publisher: NewVersionPublisher(st, runner, validator, cloner, reindexer, log),
		releases:  NewReleaseManager(st, runner, reindexer, log),
		drafts:    NewDraftService(st, runner, log),
		reindexer: reindexer,
	}
}

type recordingReindexer struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (r *recordingReindexer) Rebuild(_ context.Context, huntID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, huntID)
	return r.err
}

func (r *recordingReindexer) Calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls...)
}

func intPtr(v int) *int { return &v }
