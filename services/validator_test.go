package services

import (
	"context"
	"strings"
	"testing"

	"hunt-publish-system/apperr"
	"hunt-publish-system/models"
	"hunt-publish-system/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestValidateCanPublishChecksInOrder(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()

	// missing version
	err := p.validator.ValidateCanPublish(ctx, 1, 1)
	require.True(t, apperr.IsValidation(err), "got %v", err)
	assert.Equal(t, "version not found or already published", apperr.Message(err))

	// draft without steps (and without order): the step check fires first
	testutil.SeedDraftHunt(t, p.db, 1)
	err = p.validator.ValidateCanPublish(ctx, 1, 1)
	require.True(t, apperr.IsValidation(err))
	assert.Equal(t, "cannot publish hunt without steps", apperr.Message(err))

	// steps exist but the order is empty
	testutil.SeedStep(t, p.db, 1, 1, "s1")
	err = p.validator.ValidateCanPublish(ctx, 1, 1)
	require.True(t, apperr.IsValidation(err))
	assert.Equal(t, "empty step order", apperr.Message(err))

	require.NoError(t, p.db.Model(&models.HuntVersion{}).
		Where("hunt_id = ? AND version = ?", 1, 1).
		Update("step_order", datatypes.JSONSlice[string]{"s1"}).Error)
	assert.NoError(t, p.validator.ValidateCanPublish(ctx, 1, 1))
}

func TestValidateCanPublishRejectsPublishedVersion(t *testing.T) {
	p := newPipeline(t, 0)
	testutil.SeedDraftHunt(t, p.db, 2, "s1")
	require.NoError(t, p.db.Model(&models.HuntVersion{}).Where("hunt_id = ?", 2).Update("is_published", true).Error)

	err := p.validator.ValidateCanPublish(context.Background(), 2, 1)
	require.True(t, apperr.IsValidation(err))
	assert.Equal(t, "version not found or already published", apperr.Message(err))
}

func TestValidateCanPublishRejectsUnknownOrderedStep(t *testing.T) {
	p := newPipeline(t, 0)
	testutil.SeedDraftHunt(t, p.db, 3, "s1", "s2")
	require.NoError(t, p.db.Model(&models.HuntVersion{}).
		Where("hunt_id = ?", 3).
		Update("step_order", datatypes.JSONSlice[string]{"s1", "ghost"}).Error)

	err := p.validator.ValidateCanPublish(context.Background(), 3, 1)
	require.True(t, apperr.IsValidation(err), "got %v", err)
	assert.True(t, strings.HasPrefix(apperr.Message(err), InvalidStepOrderPrefix), apperr.Message(err))
}

func TestValidateCanPublishRejectsRepeatedStep(t *testing.T) {
	p := newPipeline(t, 0)
	testutil.SeedDraftHunt(t, p.db, 3, "s1", "s2")
	require.NoError(t, p.db.Model(&models.HuntVersion{}).
		Where("hunt_id = ?", 3).
		Update("step_order", datatypes.JSONSlice[string]{"s1", "s2", "s1"}).Error)

	err := p.validator.ValidateCanPublish(context.Background(), 3, 1)
	require.True(t, apperr.IsValidation(err), "got %v", err)
	assert.Equal(t, InvalidStepOrderPrefix+`step "s1" is listed twice`, apperr.Message(err))
}

func TestValidateCanPublishIsIdempotent(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := context.Background()
	_, seeded := testutil.SeedDraftHunt(t, p.db, 4, "s1", "s2")

	for i := 0; i < 3; i++ {
		assert.NoError(t, p.validator.ValidateCanPublish(ctx, 4, 1))
	}

	after := testutil.LoadVersion(t, p.db, 4, 1)
	assert.True(t, seeded.UpdatedAt.Equal(after.UpdatedAt))
	assert.False(t, after.IsPublished)
	assert.Equal(t, 1, testutil.LoadHunt(t, p.db, 4).LatestVersion)
	assert.EqualValues(t, 2, testutil.CountSteps(t, p.db, 4, 1))
}
