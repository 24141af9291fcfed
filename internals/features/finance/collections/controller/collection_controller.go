// file: internals/features/finance/collections/controller/collection_controller.go
package controller

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"retailku_backend/internals/features/finance/collections/catalog"
	"retailku_backend/internals/features/finance/collections/dto"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/repository"
	"retailku_backend/internals/features/finance/collections/service"
	helper "retailku_backend/internals/helpers"
	"retailku_backend/internals/helpers/dbtime"
)

/* =======================================================================
   Controller
======================================================================= */

type CollectionController struct {
	Service   *service.CollectionService
	Journal   *repository.JournalRepository // optional, for the orphan list
	Validator *validator.Validate
	Log       *zap.Logger
}

func NewCollectionController(svc *service.CollectionService, journal *repository.JournalRepository, log *zap.Logger) *CollectionController {
	if log == nil {
		log = zap.NewNop()
	}
	return &CollectionController{
		Service:   svc,
		Journal:   journal,
		Validator: validator.New(),
		Log:       log,
	}
}

/* =======================================================================
   Handlers
======================================================================= */

// GET /methods?flow=
func (h *CollectionController) ListMethods(c *fiber.Ctx) error {
	flow, err := model.ParseFlow(c.Query("flow", string(model.FlowCustomerPayment)))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return helper.JsonOK(c, "ok", dto.FromContracts(catalog.ForFlow(flow), flow.Direction()))
}

// POST /sessions
func (h *CollectionController) OpenSession(c *fiber.Ctx) error {
	userID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}
	locationID, err := helper.GetLocationIDFromToken(c)
	if err != nil {
		return err
	}

	var req dto.OpenSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	req.Normalize()
	if err := h.Validator.Struct(req); err != nil {
		return h.validationFailed(c, err)
	}

	in := req.ToInput(userID, locationID)
	in.Timezone = dbtime.GetStoreLocation(c)

	snap, err := h.Service.Open(c.UserContext(), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.JsonCreated(c, "session opened", dto.FromSnapshot(snap))
}

// GET /sessions/:id
func (h *CollectionController) GetSession(c *fiber.Ctx) error {
	id, userID, err := h.sessionScope(c)
	if err != nil {
		return err
	}
	snap, err := h.Service.Snapshot(id, userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromSnapshot(snap))
}

// POST /sessions/:id/entries
func (h *CollectionController) AddEntry(c *fiber.Ctx) error {
	id, userID, err := h.sessionScope(c)
	if err != nil {
		return err
	}

	var req dto.AddEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if err := h.Validator.Struct(req); err != nil {
		return h.validationFailed(c, err)
	}

	entry, snap, err := h.Service.AddEntry(c.UserContext(), id, userID, req.ToInput())
	if err != nil {
		return h.writeError(c, err)
	}
	e := dto.FromEntry(entry)
	return helper.JsonCreated(c, "entry added", dto.EntryMutationResponse{Entry: &e, Session: dto.FromSnapshot(snap)})
}

// PATCH /sessions/:id/entries/:local_id
func (h *CollectionController) MutateAmount(c *fiber.Ctx) error {
	id, userID, err := h.sessionScope(c)
	if err != nil {
		return err
	}

	var req dto.MutateAmountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	if err := h.Validator.Struct(req); err != nil {
		return h.validationFailed(c, err)
	}

	entry, snap, err := h.Service.MutateAmount(id, userID, c.Params("local_id"), *req.Amount)
	if err != nil {
		return h.writeError(c, err)
	}
	e := dto.FromEntry(entry)
	return helper.JsonUpdated(c, "amount updated", dto.EntryMutationResponse{Entry: &e, Session: dto.FromSnapshot(snap)})
}

// DELETE /sessions/:id/entries/:local_id
func (h *CollectionController) RemoveEntry(c *fiber.Ctx) error {
	id, userID, err := h.sessionScope(c)
	if err != nil {
		return err
	}
	snap, err := h.Service.RemoveEntry(c.UserContext(), id, userID, c.Params("local_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.JsonDeleted(c, "entry removed", dto.EntryMutationResponse{Session: dto.FromSnapshot(snap)})
}

// POST /sessions/:id/complete
func (h *CollectionController) Complete(c *fiber.Ctx) error {
	id, userID, err := h.sessionScope(c)
	if err != nil {
		return err
	}
	res, err := h.Service.Complete(c.UserContext(), id, userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.JsonCreated(c, "submitted", dto.FromCompletion(res))
}

// DELETE /sessions/:id
func (h *CollectionController) AbandonSession(c *fiber.Ctx) error {
	id, userID, err := h.sessionScope(c)
	if err != nil {
		return err
	}
	if err := h.Service.Abandon(id, userID); err != nil {
		return h.writeError(c, err)
	}
	return helper.JsonDeleted(c, "session abandoned", fiber.Map{"session_id": id})
}

// GET /orphans?status=&customer_id=
func (h *CollectionController) ListOrphans(c *fiber.Ctx) error {
	if h.Journal == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "journal tidak tersedia")
	}
	status := strings.ToLower(strings.TrimSpace(c.Query("status", model.OrphanStatusPending)))
	if status != model.OrphanStatusPending && status != model.OrphanStatusSubmitted && status != "all" {
		return fiber.NewError(fiber.StatusBadRequest, "status harus pending, submitted, atau all")
	}
	if status == "all" {
		status = ""
	}

	p := helper.ResolvePaging(c, 20, 200)
	rows, total, err := h.Journal.ListOrphans(c.UserContext(), repository.OrphanFilter{
		Status:     status,
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		Offset:     p.Offset,
		Limit:      p.Limit,
	})
	if err != nil {
		code, msg := helper.MapPGError(err)
		return helper.JsonError(c, code, msg)
	}
	return helper.JsonList(c, "ok", dto.FromOrphans(rows), helper.BuildPagination(total, p, len(rows)))
}

/* =======================================================================
   Helpers
======================================================================= */

func (h *CollectionController) sessionScope(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "session id tidak valid")
	}
	return id, userID, nil
}

func (h *CollectionController) validationFailed(c *fiber.Ctx, err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	fields := make(map[string][]string, len(ves))
	for _, fe := range ves {
		name := fe.Field()
		fields[name] = append(fields[name], "failed on '"+fe.Tag()+"'")
	}
	return helper.JsonValidationError(c, fields)
}

var rejectionCodes = []struct {
	err  error
	code string
}{
	{model.ErrAmountExceedsRemaining, "AMOUNT_EXCEEDS_REMAINING"},
	{model.ErrDuplicateInstrument, "DUPLICATE_INSTRUMENT"},
	{model.ErrSingletonViolation, "SINGLETON_VIOLATION"},
	{model.ErrAmountLocked, "AMOUNT_LOCKED"},
	{model.ErrFieldValidation, "VALIDATION_ERROR"},
}

// writeError maps service errors onto the JSON error shape.
func (h *CollectionController) writeError(c *fiber.Ctx, err error) error {
	var (
		ve    *model.ValidationError
		cerr  *model.ExternalResourceCreationError
		serr  *model.SubmissionError
		fbErr *fiber.Error
	)

	switch {
	case errors.As(err, &ve):
		fields := make(map[string][]string, len(ve.Fields))
		for _, f := range ve.Fields {
			fields[f.Field] = append(fields[f.Field], f.Message)
		}
		if errors.Is(ve, model.ErrSubmissionBlocked) {
			return helper.JsonErrorDetail(c, fiber.StatusConflict, ve.Error(), "SUBMISSION_BLOCKED", fields)
		}
		code := "VALIDATION_ERROR"
		for _, rc := range rejectionCodes {
			if errors.Is(ve, rc.err) {
				code = rc.code
				break
			}
		}
		return helper.JsonErrorDetail(c, fiber.StatusUnprocessableEntity, ve.Err.Error(), code, fields)

	case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrEntryNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, err.Error())

	case errors.Is(err, model.ErrSessionCompleted):
		return helper.JsonErrorDetail(c, fiber.StatusConflict, err.Error(), "SESSION_COMPLETED", nil)

	case errors.As(err, &cerr):
		h.Log.Warn("external resource creation failed", zap.String("local_id", cerr.LocalID), zap.Error(cerr.Err))
		return helper.JsonErrorDetail(c, fiber.StatusBadGateway, err.Error(), "EXTERNAL_RESOURCE_FAILED",
			map[string][]string{cerr.LocalID: {cerr.Err.Error()}})

	case errors.As(err, &serr):
		h.Log.Warn("submission failed", zap.String("flow", string(serr.Flow)), zap.Error(serr.Err))
		return helper.JsonErrorDetail(c, fiber.StatusBadGateway, err.Error(), "SUBMISSION_FAILED", nil)

	case errors.Is(err, service.ErrLookupFailed):
		return helper.JsonErrorDetail(c, fiber.StatusBadGateway, err.Error(), "VOUCHER_LOOKUP_FAILED", nil)

	case errors.As(err, &fbErr):
		return helper.JsonError(c, fbErr.Code, fbErr.Message)
	}

	h.Log.Error("unhandled collection error", zap.Error(err))
	return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
}
