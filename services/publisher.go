// services/publisher.go
package services

import (
	"context"
	"fmt"
	"time"

	"hunt-publish-system/apperr"
	"hunt-publish-system/logger"
	"hunt-publish-system/models"
	"hunt-publish-system/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
)

// AssetReindexer recomputes which media objects a hunt references.
type AssetReindexer interface {
	Rebuild(ctx context.Context, huntID int64) error
}

type PublishInput struct {
	HuntID  int64
	Version int
	ActorID string
	// ExpectedUpdatedAt is the draft token the caller last read. Nil means "whatever is
	// current when the transaction reads it".
	ExpectedUpdatedAt *time.Time
	// ExpectedLatestVersion is the hunt pointer the caller last read, same nil rule.
	ExpectedLatestVersion *int
}

type PublishResult struct {
	PublishedVersion  int       `json:"published_version"`
	NewDraftVersion   int       `json:"new_draft_version"`
	PublishedAt       time.Time `json:"published_at"`
	PublicSlug        string    `json:"public_slug"`
	NewDraftUpdatedAt time.Time `json:"new_draft_updated_at"`
	ClonedSteps       int       `json:"cloned_steps"`
}

// VersionPublisher freezes a draft, seeds the next draft from it and advances the hunt's
// latest pointer, all in one transaction.
type VersionPublisher struct {
	Store     store.Store
	Runner    store.TxRunner
	Validator *VersionValidator
	Cloner    *StepCloner
	Reindexer AssetReindexer
	log       *logger.Logger
}

func NewVersionPublisher(st store.Store, runner store.TxRunner, validator *VersionValidator, cloner *StepCloner, reindexer AssetReindexer, log *logger.Logger) *VersionPublisher {
	return &VersionPublisher{
		Store:     st,
		Runner:    runner,
		Validator: validator,
		Cloner:    cloner,
		Reindexer: reindexer,
		log:       log.With("service", "VersionPublisher"),
	}
}

func (p *VersionPublisher) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	if in.ActorID == "" {
		return nil, apperr.ValidationError(opPublish, "actor id is required")
	}

	var result *PublishResult
	err := runInTx(ctx, p.Runner, opPublish, func(s store.Session) error {
		var err error
		result, err = p.publishInTx(s, in)
		return err
	})
	if err != nil {
		p.log.Info("publish rejected", "hunt_id", in.HuntID, "version", in.Version, "code", apperr.CodeOf(err), "error", err)
		return nil, err
	}

	p.log.Info("✅ version published",
		"hunt_id", in.HuntID,
		"published_version", result.PublishedVersion,
		"new_draft_version", result.NewDraftVersion,
		"cloned_steps", result.ClonedSteps,
		"actor_id", in.ActorID,
	)
	p.reindex(ctx, in.HuntID)
	return result, nil
}

func (p *VersionPublisher) publishInTx(s store.Session, in PublishInput) (*PublishResult, error) {
	var hunt models.Hunt
	if err := p.Store.First(s, &hunt, store.Filter{"id": in.HuntID}); err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFoundError(opPublish, fmt.Sprintf("hunt %d does not exist", in.HuntID))
		}
		return nil, err
	}
	currentLatest := hunt.LatestVersion
	if in.ExpectedLatestVersion != nil {
		currentLatest = *in.ExpectedLatestVersion
	}

	// A stale token is a lost race even when the version is no longer a draft.
	if in.ExpectedUpdatedAt != nil {
		var current models.HuntVersion
		err := p.Store.First(s, &current, store.Filter{"hunt_id": in.HuntID, "version": in.Version})
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
		if err == nil && !current.UpdatedAt.Equal(*in.ExpectedUpdatedAt) {
			return nil, staleDraftConflict(&current)
		}
	}

	draft, err := p.Validator.Check(s, in.HuntID, in.Version)
	if err != nil {
		return nil, err
	}
	token := draft.UpdatedAt
	if in.ExpectedUpdatedAt != nil {
		token = in.ExpectedUpdatedAt.UTC()
	}

	// Phase A: freeze the draft.
	now := store.Now()
	publicSlug := publicSlugFor(draft)
	matched, err := p.Store.CompareAndSwap(s, &models.HuntVersion{}, store.Filter{
		"hunt_id":      in.HuntID,
		"version":      in.Version,
		"is_published": false,
		"updated_at":   token,
	}, store.Patch{
		"is_published": true,
		"published_at": now,
		"published_by": in.ActorID,
		"public_slug":  publicSlug,
		"updated_at":   now,
	})
	if err != nil {
		return nil, err
	}
	if err := store.RequireMatched(matched, opPublish, fmt.Sprintf(
		"draft version %d was modified or published by another operation since it was read; refresh the hunt and resubmit with the current updatedAt",
		in.Version)); err != nil {
		return nil, err
	}

	// Seed the next draft from what was just frozen.
	newVersion := currentLatest + 1
	next := &models.HuntVersion{
		ID:            uuid.NewString(),
		HuntID:        in.HuntID,
		Version:       newVersion,
		Name:          draft.Name,
		Description:   draft.Description,
		StartLocation: datatypes.NewJSONType(draft.StartLocation.Data()),
		StepOrder:     datatypes.JSONSlice[string](append([]string{}, draft.StepOrder...)),
	}
	if err := p.Store.Insert(s, next); err != nil {
		if apperr.IsConflict(err) {
			return nil, apperr.ConflictError(opPublish, fmt.Sprintf(
				"version %d of hunt %d already exists (concurrent publish); refresh the hunt and retry", newVersion, in.HuntID))
		}
		return nil, err
	}
	cloned, err := p.Cloner.CloneSteps(s, in.HuntID, in.Version, newVersion)
	if err != nil {
		return nil, err
	}

	// Phase B: advance the latest pointer.
	matched, err = p.Store.CompareAndSwap(s, &models.Hunt{}, store.Filter{
		"id":             in.HuntID,
		"latest_version": currentLatest,
	}, store.Patch{
		"latest_version": newVersion,
	})
	if err != nil {
		return nil, err
	}
	if err := store.RequireMatched(matched, opPublish, fmt.Sprintf(
		"hunt %d latest version is no longer %d (concurrent publish or edit); refresh the hunt and retry",
		in.HuntID, currentLatest)); err != nil {
		return nil, err
	}

	return &PublishResult{
		PublishedVersion:  in.Version,
		NewDraftVersion:   newVersion,
		PublishedAt:       now,
		PublicSlug:        publicSlug,
		NewDraftUpdatedAt: next.UpdatedAt,
		ClonedSteps:       cloned,
	}, nil
}

// reindex is best effort: the asset index heals on the next sweep, publish state does not.
func (p *VersionPublisher) reindex(ctx context.Context, huntID int64) {
	if p.Reindexer == nil {
		return
	}
	if err := p.Reindexer.Rebuild(ctx, huntID); err != nil {
		p.log.Warn("⚠️ asset reindex after publish failed", "hunt_id", huntID, "error", err)
	}
}

func staleDraftConflict(current *models.HuntVersion) error {
	if current.IsPublished {
		by := "another publisher"
		if current.PublishedBy != nil {
			by = *current.PublishedBy
		}
		return apperr.ConflictError(opPublish, fmt.Sprintf(
			"version %d was already published by %s; refresh the hunt and publish the current draft instead",
			current.Version, by))
	}
	return apperr.ConflictError(opPublish, fmt.Sprintf(
		"draft version %d was edited by someone else since it was read; refresh and resubmit with the current updatedAt",
		current.Version))
}

func publicSlugFor(v *models.HuntVersion) string {
	base := slug.Make(v.Name)
	if base == "" {
		base = fmt.Sprintf("hunt-%d", v.HuntID)
	}
	return fmt.Sprintf("%s-v%d", base, v.Version)
}
