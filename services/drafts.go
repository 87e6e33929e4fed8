// services/drafts.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hunt-publish-system/apperr"
	"hunt-publish-system/logger"
	"hunt-publish-system/models"
	"hunt-publish-system/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CreateHuntInput struct {
	TenantID      string          `json:"tenant_id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	StartLocation models.Location `json:"start_location"`
}

// UpdateDraftInput carries only the fields to change; nil leaves a field alone.
type UpdateDraftInput struct {
	HuntID            int64
	Version           int
	ExpectedUpdatedAt time.Time
	Name              *string
	Description       *string
	StartLocation     *models.Location
	StepOrder         []string
}

type AddStepInput struct {
	HuntID            int64
	Version           int
	ExpectedUpdatedAt time.Time
	StepID            string
	Title             string
	Challenge         json.RawMessage
	Settings          json.RawMessage
}

// DraftService is the editor's write path. Every write is conditional on the draft's
// updated_at token and on the version still being a draft.
type DraftService struct {
	Store  store.Store
	Runner store.TxRunner
	log    *logger.Logger
}

func NewDraftService(st store.Store, runner store.TxRunner, log *logger.Logger) *DraftService {
	return &DraftService{Store: st, Runner: runner, log: log.With("service", "DraftService")}
}

// CreateHunt creates a hunt together with its first draft.
func (d *DraftService) CreateHunt(ctx context.Context, in CreateHuntInput) (*models.Hunt, *models.HuntVersion, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, nil, apperr.ValidationError(opCreateHunt, "name is required")
	}
	if in.TenantID == "" || in.OwnerID == "" {
		return nil, nil, apperr.ValidationError(opCreateHunt, "tenant and owner are required")
	}

	hunt := &models.Hunt{TenantID: in.TenantID, OwnerID: in.OwnerID, LatestVersion: 1}
	var draft *models.HuntVersion
	err := runInTx(ctx, d.Runner, opCreateHunt, func(s store.Session) error {
		if err := d.Store.Insert(s, hunt); err != nil {
			return err
		}
		draft = &models.HuntVersion{
			ID:            uuid.NewString(),
			HuntID:        hunt.ID,
			Version:       1,
			Name:          in.Name,
			Description:   in.Description,
			StartLocation: datatypes.NewJSONType(in.StartLocation),
			StepOrder:     datatypes.JSONSlice[string]{},
		}
		return d.Store.Insert(s, draft)
	})
	if err != nil {
		return nil, nil, err
	}
	d.log.Info("hunt created", "hunt_id", hunt.ID, "tenant_id", hunt.TenantID)
	return hunt, draft, nil
}

func (d *DraftService) GetHunt(ctx context.Context, huntID int64) (*models.Hunt, error) {
	var hunt models.Hunt
	err := d.Runner.InTx(ctx, func(s store.Session) error {
		return d.Store.First(s, &hunt, store.Filter{"id": huntID})
	})
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFoundError("hunt.get", fmt.Sprintf("hunt %d does not exist", huntID))
	}
	if err != nil {
		return nil, store.MapError("hunt.get", err)
	}
	return &hunt, nil
}

func (d *DraftService) GetVersion(ctx context.Context, huntID int64, version int) (*models.HuntVersion, error) {
	var hv *models.HuntVersion
	err := d.Runner.InTx(ctx, func(s store.Session) error {
		var err error
		hv, err = d.loadVersion(s, huntID, version)
		return err
	})
	if err != nil {
		return nil, store.MapError("hunt.get_version", err)
	}
	return hv, nil
}

// UpdateDraft patches draft metadata and/or its step order.
func (d *DraftService) UpdateDraft(ctx context.Context, in UpdateDraftInput) (*models.HuntVersion, error) {
	now := store.Now()
	patch := store.Patch{"updated_at": now}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.ValidationError(opUpdateDraft, "name cannot be empty")
		}
		patch["name"] = name
	}
	if in.Description != nil {
		patch["description"] = *in.Description
	}
	if in.StartLocation != nil {
		patch["start_location"] = datatypes.NewJSONType(*in.StartLocation)
	}
	if in.StepOrder != nil {
		patch["step_order"] = datatypes.JSONSlice[string](in.StepOrder)
	}

	var updated *models.HuntVersion
	err := runInTx(ctx, d.Runner, opUpdateDraft, func(s store.Session) error {
		if in.StepOrder != nil {
			if err := d.checkOrderKnown(s, in.HuntID, in.Version, in.StepOrder); err != nil {
				return err
			}
		}
		matched, err := d.Store.CompareAndSwap(s, &models.HuntVersion{}, draftFilter(in.HuntID, in.Version, in.ExpectedUpdatedAt), patch)
		if err != nil {
			return err
		}
		if matched == 0 {
			return d.explainMiss(s, opUpdateDraft, in.HuntID, in.Version)
		}
		if err := d.touchHunt(s, in.HuntID, now); err != nil {
			return err
		}
		updated, err = d.loadVersion(s, in.HuntID, in.Version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddStep inserts a step into a draft and appends it to the step order.
func (d *DraftService) AddStep(ctx context.Context, in AddStepInput) (*models.Step, *models.HuntVersion, error) {
	if in.StepID == "" {
		in.StepID = uuid.NewString()
	}
	if len(in.Challenge) > 0 && !json.Valid(in.Challenge) {
		return nil, nil, apperr.ValidationError(opAddStep, "challenge must be valid JSON")
	}
	if len(in.Settings) > 0 && !json.Valid(in.Settings) {
		return nil, nil, apperr.ValidationError(opAddStep, "settings must be valid JSON")
	}

	var step *models.Step
	var updated *models.HuntVersion
	err := runInTx(ctx, d.Runner, opAddStep, func(s store.Session) error {
		current, err := d.loadVersion(s, in.HuntID, in.Version)
		if err != nil {
			return err
		}
		if current.IsPublished || !current.UpdatedAt.Equal(in.ExpectedUpdatedAt) {
			return d.explainMiss(s, opAddStep, in.HuntID, in.Version)
		}

		step = &models.Step{
			ID:          uuid.NewString(),
			HuntID:      in.HuntID,
			HuntVersion: in.Version,
			StepID:      in.StepID,
			Title:       in.Title,
			Challenge:   datatypes.JSON(in.Challenge),
			Settings:    datatypes.JSON(in.Settings),
		}
		if err := d.Store.Insert(s, step); err != nil {
			if apperr.IsConflict(err) {
				return apperr.ValidationError(opAddStep, fmt.Sprintf("step %q already exists in version %d", in.StepID, in.Version))
			}
			return err
		}

		now := store.Now()
		order := append(append([]string{}, current.StepOrder...), in.StepID)
		matched, err := d.Store.CompareAndSwap(s, &models.HuntVersion{}, draftFilter(in.HuntID, in.Version, in.ExpectedUpdatedAt), store.Patch{
			"step_order": datatypes.JSONSlice[string](order),
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if matched == 0 {
			return d.explainMiss(s, opAddStep, in.HuntID, in.Version)
		}
		if err := d.touchHunt(s, in.HuntID, now); err != nil {
			return err
		}
		updated, err = d.loadVersion(s, in.HuntID, in.Version)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return step, updated, nil
}

func draftFilter(huntID int64, version int, token time.Time) store.Filter {
	return store.Filter{
		"hunt_id":      huntID,
		"version":      version,
		"is_published": false,
		"updated_at":   token.UTC(),
	}
}

// touchHunt bumps the hunt's updated_at so the asset sweeper sees the draft change.
func (d *DraftService) touchHunt(s store.Session, huntID int64, now time.Time) error {
	matched, err := d.Store.CompareAndSwap(s, &models.Hunt{}, store.Filter{"id": huntID}, store.Patch{"updated_at": now})
	if err != nil {
		return err
	}
	if matched == 0 {
		return apperr.NotFoundError("hunt.touch", fmt.Sprintf("hunt %d does not exist", huntID))
	}
	return nil
}

// explainMiss turns a failed draft write into the most specific error.
func (d *DraftService) explainMiss(s store.Session, op string, huntID int64, version int) error {
	current, err := d.loadVersion(s, huntID, version)
	if err != nil {
		return err
	}
	if current.IsPublished {
		return apperr.ValidationError(op, fmt.Sprintf("version %d is published and immutable; edit the current draft instead", version))
	}
	return apperr.ConflictError(op, fmt.Sprintf(
		"draft version %d was edited by someone else since it was read; refresh and resubmit with the current updatedAt", version))
}

func (d *DraftService) checkOrderKnown(s store.Session, huntID int64, version int, order []string) error {
	if len(order) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, dup := seen[id]; dup {
			return apperr.ValidationError(opUpdateDraft, fmt.Sprintf(InvalidStepOrderPrefix+"step %q is listed twice", id))
		}
		seen[id] = struct{}{}
	}
	n, err := d.Store.Count(s, &models.Step{}, store.Filter{"hunt_id": huntID, "hunt_version": version, "step_id": order})
	if err != nil {
		return err
	}
	if int(n) != len(order) {
		return apperr.ValidationError(opUpdateDraft, InvalidStepOrderPrefix+"references steps that do not exist in this version")
	}
	return nil
}

func (d *DraftService) loadVersion(s store.Session, huntID int64, version int) (*models.HuntVersion, error) {
	var hv models.HuntVersion
	if err := d.Store.First(s, &hv, store.Filter{"hunt_id": huntID, "version": version}); err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFoundError("hunt.load_version", fmt.Sprintf("hunt %d has no version %d", huntID, version))
		}
		return nil, err
	}
	return &hv, nil
}
