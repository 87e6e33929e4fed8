package services

import (
	"context"
	"encoding/json"
	"testing"

	"hunt-publish-system/apperr"
	"hunt-publish-system/models"
	"hunt-publish-system/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHuntBuildsPublishableDraft(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()

	hunt, draft, err := p.drafts.CreateHunt(ctx, CreateHuntInput{
		TenantID: "tenant-1", OwnerID: "owner-1", Name: "  Harbour Run ",
		StartLocation: models.Location{Lat: 1, Lng: 2, Label: "Pier"},
	})
	require.NoError(t, err)
	assert.NotZero(t, hunt.ID)
	assert.Equal(t, 1, hunt.LatestVersion)
	assert.Equal(t, "Harbour Run", draft.Name)
	assert.Equal(t, 1, draft.Version)

	step, updated, err := p.drafts.AddStep(ctx, AddStepInput{
		HuntID: hunt.ID, Version: 1, ExpectedUpdatedAt: draft.UpdatedAt,
		StepID: "s1", Title: "Lighthouse", Challenge: json.RawMessage(`{"asset_key":"media/light.png"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", step.StepID)
	assert.Equal(t, []string{"s1"}, []string(updated.StepOrder))
	assert.True(t, updated.UpdatedAt.After(draft.UpdatedAt))

	assert.NoError(t, p.validator.ValidateCanPublish(ctx, hunt.ID, 1))

	got, err := p.drafts.GetHunt(ctx, hunt.ID)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got.TenantID)
}

func TestCreateHuntRequiresName(t *testing.T) {
	p := newPipeline(t, 0)
	_, _, err := p.drafts.CreateHunt(context.Background(), CreateHuntInput{TenantID: "t", OwnerID: "o", Name: " "})
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateDraftStaleTokenConflicts(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()
	_, draft := testutil.SeedDraftHunt(t, p.db, 5, "s1", "s2")

	desc := "first"
	updated, err := p.drafts.UpdateDraft(ctx, UpdateDraftInput{HuntID: 5, Version: 1, ExpectedUpdatedAt: draft.UpdatedAt, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "first", updated.Description)

	desc = "second"
	_, err = p.drafts.UpdateDraft(ctx, UpdateDraftInput{HuntID: 5, Version: 1, ExpectedUpdatedAt: draft.UpdatedAt, Description: &desc})
	require.True(t, apperr.IsConflict(err), "got %v", err)
	assert.Equal(t, "first", testutil.LoadVersion(t, p.db, 5, 1).Description)
}

func TestUpdateDraftReordersSteps(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()
	_, draft := testutil.SeedDraftHunt(t, p.db, 5, "s1", "s2")

	updated, err := p.drafts.UpdateDraft(ctx, UpdateDraftInput{HuntID: 5, Version: 1, ExpectedUpdatedAt: draft.UpdatedAt, StepOrder: []string{"s2", "s1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, []string(updated.StepOrder))

	_, err = p.drafts.UpdateDraft(ctx, UpdateDraftInput{HuntID: 5, Version: 1, ExpectedUpdatedAt: updated.UpdatedAt, StepOrder: []string{"s1", "s1"}})
	assert.True(t, apperr.IsValidation(err))

	_, err = p.drafts.UpdateDraft(ctx, UpdateDraftInput{HuntID: 5, Version: 1, ExpectedUpdatedAt: updated.UpdatedAt, StepOrder: []string{"s1", "nope"}})
	assert.True(t, apperr.IsValidation(err))
}

func TestPublishedVersionIsImmutable(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()
	_, draft := testutil.SeedDraftHunt(t, p.db, 42, "s1")
	_, err := p.publisher.Publish(ctx, PublishInput{HuntID: 42, Version: 1, ActorID: "u"})
	require.NoError(t, err)

	frozen := testutil.LoadVersion(t, p.db, 42, 1)
	name := "Sneaky edit"
	_, err = p.drafts.UpdateDraft(ctx, UpdateDraftInput{HuntID: 42, Version: 1, ExpectedUpdatedAt: frozen.UpdatedAt, Name: &name})
	require.True(t, apperr.IsValidation(err), "got %v", err)
	assert.Contains(t, apperr.Message(err), "immutable")

	_, _, err = p.drafts.AddStep(ctx, AddStepInput{HuntID: 42, Version: 1, ExpectedUpdatedAt: frozen.UpdatedAt, StepID: "s9"})
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	after := testutil.LoadVersion(t, p.db, 42, 1)
	assert.Equal(t, draft.Name, after.Name)
	assert.True(t, frozen.UpdatedAt.Equal(after.UpdatedAt))
	assert.EqualValues(t, 1, testutil.CountSteps(t, p.db, 42, 1))
}

func TestAddStepRejectsDuplicatesAndBadJSON(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()
	_, draft := testutil.SeedDraftHunt(t, p.db, 8, "s1")

	_, _, err := p.drafts.AddStep(ctx, AddStepInput{HuntID: 8, Version: 1, ExpectedUpdatedAt: draft.UpdatedAt, StepID: "s1"})
	assert.True(t, apperr.IsValidation(err), "got %v", err)

	_, _, err = p.drafts.AddStep(ctx, AddStepInput{HuntID: 8, Version: 1, ExpectedUpdatedAt: draft.UpdatedAt, Challenge: json.RawMessage(`{`)})
	assert.True(t, apperr.IsValidation(err))

	_, _, err = p.drafts.AddStep(ctx, AddStepInput{HuntID: 8, Version: 9, ExpectedUpdatedAt: draft.UpdatedAt, StepID: "s2"})
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestGetVersionNotFound(t *testing.T) {
	p := newPipeline(t, 0)
	_, err := p.drafts.GetVersion(context.Background(), 1, 1)
	assert.True(t, apperr.IsNotFound(err))
	_, err = p.drafts.GetHunt(context.Background(), 1)
	assert.True(t, apperr.IsNotFound(err))
}
