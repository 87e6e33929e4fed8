// handlers/hunt_routes.go
package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"hunt-publish-system/apperr"
	"hunt-publish-system/logger"
	"hunt-publish-system/middleware"
	"hunt-publish-system/models"
	"hunt-publish-system/services"

	"github.com/gofiber/fiber/v2"
)

// HuntHandler exposes the editor and release pipeline over HTTP.
type HuntHandler struct {
	Drafts    *services.DraftService
	Validator *services.VersionValidator
	Publisher *services.VersionPublisher
	Releases  *services.ReleaseManager
	Assets    *services.AssetUsageService
	log       *logger.Logger
}

func NewHuntHandler(
	drafts *services.DraftService,
	validator *services.VersionValidator,
	publisher *services.VersionPublisher,
	releases *services.ReleaseManager,
	assets *services.AssetUsageService,
	log *logger.Logger,
) *HuntHandler {
	return &HuntHandler{
		Drafts:    drafts,
		Validator: validator,
		Publisher: publisher,
		Releases:  releases,
		Assets:    assets,
		log:       log.With("handler", "hunts"),
	}
}

func SetupHuntRoutes(app fiber.Router, h *HuntHandler) {
	// 🔓 Reads
	app.Get("/hunts/:id", h.GetHunt)
	app.Get("/hunts/:id/assets", h.GetAssetUsages)
	app.Get("/hunts/:id/versions/:version", h.GetVersion)
	app.Get("/hunts/:id/versions/:version/validate", h.ValidateVersion)

	// 🔐 Mutations need an actor
	actor := middleware.RequireUser()
	app.Post("/hunts", actor, h.CreateHunt)
	app.Patch("/hunts/:id/versions/:version", actor, h.UpdateDraft)
	app.Post("/hunts/:id/versions/:version/steps", actor, h.AddStep)
	app.Post("/hunts/:id/versions/:version/publish", actor, h.Publish)
	app.Post("/hunts/:id/release", actor, h.Release)
	app.Post("/hunts/:id/offline", actor, h.TakeOffline)
}

type createHuntRequest struct {
	TenantID      string          `json:"tenant_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	StartLocation models.Location `json:"start_location"`
}

type updateDraftRequest struct {
	UpdatedAt     time.Time        `json:"updated_at"`
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	StartLocation *models.Location `json:"start_location"`
	StepOrder     []string         `json:"step_order"`
}

type addStepRequest struct {
	UpdatedAt time.Time       `json:"updated_at"`
	StepID    string          `json:"step_id"`
	Title     string          `json:"title"`
	Challenge json.RawMessage `json:"challenge"`
	Settings  json.RawMessage `json:"settings"`
}

type publishRequest struct {
	UpdatedAt     *time.Time `json:"updated_at"`
	LatestVersion *int       `json:"latest_version"`
}

type releaseRequest struct {
	Version             int  `json:"version"`
	ExpectedLiveVersion *int `json:"expected_live_version"`
}

type offlineRequest struct {
	ExpectedLiveVersion *int `json:"expected_live_version"`
}

func (h *HuntHandler) GetHunt(c *fiber.Ctx) error {
	huntID, err := huntIDParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	hunt, err := h.Drafts.GetHunt(c.UserContext(), huntID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hunt)
}

func (h *HuntHandler) GetVersion(c *fiber.Ctx) error {
	huntID, version, err := versionParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	hv, err := h.Drafts.GetVersion(c.UserContext(), huntID, version)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hv)
}

func (h *HuntHandler) GetAssetUsages(c *fiber.Ctx) error {
	huntID, err := huntIDParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	if _, err := h.Drafts.GetHunt(c.UserContext(), huntID); err != nil {
		return h.fail(c, err)
	}
	rows, err := h.Assets.Usages(c.UserContext(), huntID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"hunt_id": huntID, "assets": rows})
}

func (h *HuntHandler) ValidateVersion(c *fiber.Ctx) error {
	huntID, version, err := versionParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Validator.ValidateCanPublish(c.UserContext(), huntID, version); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"hunt_id": huntID, "version": version, "can_publish": true})
}

func (h *HuntHandler) CreateHunt(c *fiber.Ctx) error {
	var req createHuntRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.ValidationError("hunt.create", "invalid request body"))
	}
	hunt, draft, err := h.Drafts.CreateHunt(c.UserContext(), services.CreateHuntInput{
		TenantID:      req.TenantID,
		OwnerID:       middleware.UserID(c),
		Name:          req.Name,
		Description:   req.Description,
		StartLocation: req.StartLocation,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"hunt": hunt, "draft": draft})
}

func (h *HuntHandler) UpdateDraft(c *fiber.Ctx) error {
	huntID, version, err := versionParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req updateDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.ValidationError("hunt.update_draft", "invalid request body"))
	}
	if req.UpdatedAt.IsZero() {
		return h.fail(c, apperr.ValidationError("hunt.update_draft", "updated_at is required"))
	}
	hv, err := h.Drafts.UpdateDraft(c.UserContext(), services.UpdateDraftInput{
		HuntID:            huntID,
		Version:           version,
		ExpectedUpdatedAt: req.UpdatedAt,
		Name:              req.Name,
		Description:       req.Description,
		StartLocation:     req.StartLocation,
		StepOrder:         req.StepOrder,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hv)
}

func (h *HuntHandler) AddStep(c *fiber.Ctx) error {
	huntID, version, err := versionParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req addStepRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.ValidationError("hunt.add_step", "invalid request body"))
	}
	if req.UpdatedAt.IsZero() {
		return h.fail(c, apperr.ValidationError("hunt.add_step", "updated_at is required"))
	}
	step, hv, err := h.Drafts.AddStep(c.UserContext(), services.AddStepInput{
		HuntID:            huntID,
		Version:           version,
		ExpectedUpdatedAt: req.UpdatedAt,
		StepID:            req.StepID,
		Title:             req.Title,
		Challenge:         req.Challenge,
		Settings:          req.Settings,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"step": step, "version": hv})
}

func (h *HuntHandler) Publish(c *fiber.Ctx) error {
	huntID, version, err := versionParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req publishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.fail(c, apperr.ValidationError("hunt.publish", "invalid request body"))
		}
	}
	res, err := h.Publisher.Publish(c.UserContext(), services.PublishInput{
		HuntID:                huntID,
		Version:               version,
		ActorID:               middleware.UserID(c),
		ExpectedUpdatedAt:     req.UpdatedAt,
		ExpectedLatestVersion: req.LatestVersion,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *HuntHandler) Release(c *fiber.Ctx) error {
	huntID, err := huntIDParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.ValidationError("hunt.release", "invalid request body"))
	}
	if req.Version <= 0 {
		return h.fail(c, apperr.ValidationError("hunt.release", "version must be a positive integer"))
	}
	hunt, err := h.Releases.Release(c.UserContext(), services.ReleaseInput{
		HuntID:              huntID,
		Version:             req.Version,
		ActorID:             middleware.UserID(c),
		ExpectedCurrentLive: req.ExpectedLiveVersion,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hunt)
}

func (h *HuntHandler) TakeOffline(c *fiber.Ctx) error {
	huntID, err := huntIDParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req offlineRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.fail(c, apperr.ValidationError("hunt.take_offline", "invalid request body"))
		}
	}
	hunt, err := h.Releases.TakeOffline(c.UserContext(), huntID, req.ExpectedLiveVersion)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(hunt)
}

// fail writes the error body. Internal errors are logged and not echoed to the caller.
func (h *HuntHandler) fail(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)
	msg := apperr.Message(err)
	if status == fiber.StatusInternalServerError {
		h.log.Error("❌ request failed", "method", c.Method(), "path", c.Path(), "error", err)
		code = apperr.CodeInternal
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

func huntIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError("hunt.params", "hunt id must be a positive integer")
	}
	return id, nil
}

func versionParams(c *fiber.Ctx) (int64, int, error) {
	huntID, err := huntIDParam(c)
	if err != nil {
		return 0, 0, err
	}
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil || version <= 0 {
		return 0, 0, apperr.ValidationError("hunt.params", "version must be a positive integer")
	}
	return huntID, version, nil
}
