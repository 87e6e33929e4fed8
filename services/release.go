// services/release.go
package services

import (
	"context"
	"fmt"

	"hunt-publish-system/apperr"
	"hunt-publish-system/logger"
	"hunt-publish-system/models"
	"hunt-publish-system/store"
)

const liveConflictMessage = "hunt was modified by another operation; retry with current liveVersion"

type ReleaseInput struct {
	HuntID  int64
	Version int
	ActorID string
	// ExpectedCurrentLive is the live version the caller last read; nil means offline.
	ExpectedCurrentLive *int
}

// ReleaseManager moves the hunt's live pointer. Every move is one compare-and-swap on
// live_version, so two releases racing from the same observed state cannot both win.
type ReleaseManager struct {
	Store     store.Store
	Runner    store.TxRunner
	Reindexer AssetReindexer
	log       *logger.Logger
}

func NewReleaseManager(st store.Store, runner store.TxRunner, reindexer AssetReindexer, log *logger.Logger) *ReleaseManager {
	return &ReleaseManager{
		Store:     st,
		Runner:    runner,
		Reindexer: reindexer,
		log:       log.With("service", "ReleaseManager"),
	}
}

// Release makes a published version live, replacing whatever was live before.
func (m *ReleaseManager) Release(ctx context.Context, in ReleaseInput) (*models.Hunt, error) {
	if in.ActorID == "" {
		return nil, apperr.ValidationError(opRelease, "actor id is required")
	}

	var hunt *models.Hunt
	err := runInTx(ctx, m.Runner, opRelease, func(s store.Session) error {
		if _, err := m.loadHunt(s, opRelease, in.HuntID); err != nil {
			return err
		}

		var target models.HuntVersion
		if err := m.Store.First(s, &target, store.Filter{"hunt_id": in.HuntID, "version": in.Version}); err != nil {
			if apperr.IsNotFound(err) {
				return apperr.NotFoundError(opRelease, fmt.Sprintf("hunt %d has no version %d", in.HuntID, in.Version))
			}
			return err
		}
		if !target.IsPublished {
			return apperr.ValidationError(opRelease, fmt.Sprintf("version %d is a draft; only published versions can be released", in.Version))
		}

		now := store.Now()
		matched, err := m.Store.CompareAndSwap(s, &models.Hunt{}, store.Filter{
			"id":           in.HuntID,
			"live_version": liveFilterValue(in.ExpectedCurrentLive),
		}, store.Patch{
			"live_version": in.Version,
			"released_at":  now,
			"released_by":  in.ActorID,
		})
		if err != nil {
			return err
		}
		if err := store.RequireMatched(matched, opRelease, liveConflictMessage); err != nil {
			return err
		}

		hunt, err = m.loadHunt(s, opRelease, in.HuntID)
		return err
	})
	if err != nil {
		m.log.Info("release rejected", "hunt_id", in.HuntID, "version", in.Version, "code", apperr.CodeOf(err), "error", err)
		return nil, err
	}

	m.log.Info("🚀 hunt released", "hunt_id", in.HuntID, "live_version", in.Version, "actor_id", in.ActorID)
	m.reindex(ctx, in.HuntID)
	return hunt, nil
}

// TakeOffline clears the live pointer.
func (m *ReleaseManager) TakeOffline(ctx context.Context, huntID int64, expectedCurrentLive *int) (*models.Hunt, error) {
	var hunt *models.Hunt
	err := runInTx(ctx, m.Runner, opTakeOffline, func(s store.Session) error {
		if _, err := m.loadHunt(s, opTakeOffline, huntID); err != nil {
			return err
		}

		matched, err := m.Store.CompareAndSwap(s, &models.Hunt{}, store.Filter{
			"id":           huntID,
			"live_version": liveFilterValue(expectedCurrentLive),
		}, store.Patch{
			"live_version": nil,
			"released_at":  nil,
			"released_by":  nil,
		})
		if err != nil {
			return err
		}
		if err := store.RequireMatched(matched, opTakeOffline, liveConflictMessage); err != nil {
			return err
		}

		hunt, err = m.loadHunt(s, opTakeOffline, huntID)
		return err
	})
	if err != nil {
		m.log.Info("take offline rejected", "hunt_id", huntID, "code", apperr.CodeOf(err), "error", err)
		return nil, err
	}

	m.log.Info("⏹️ hunt taken offline", "hunt_id", huntID)
	m.reindex(ctx, huntID)
	return hunt, nil
}

func (m *ReleaseManager) loadHunt(s store.Session, op string, huntID int64) (*models.Hunt, error) {
	var hunt models.Hunt
	if err := m.Store.First(s, &hunt, store.Filter{"id": huntID}); err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFoundError(op, fmt.Sprintf("hunt %d does not exist", huntID))
		}
		return nil, err
	}
	return &hunt, nil
}

func (m *ReleaseManager) reindex(ctx context.Context, huntID int64) {
	if m.Reindexer == nil {
		return
	}
	if err := m.Reindexer.Rebuild(ctx, huntID); err != nil {
		m.log.Warn("⚠️ asset reindex after release change failed", "hunt_id", huntID, "error", err)
	}
}

// liveFilterValue turns a nil pointer into an untyped nil so the filter renders IS NULL.
func liveFilterValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
