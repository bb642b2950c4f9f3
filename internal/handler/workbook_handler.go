package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/repository"
	"github.com/lumen-edu/workbook-api/internal/service"
	"github.com/lumen-edu/workbook-api/internal/utils"
)

// WorkbookHandler manages workbook and canonical-page endpoints.
type WorkbookHandler struct {
	service   service.WorkbookService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewWorkbookHandler builds a workbook handler instance.
func NewWorkbookHandler(service service.WorkbookService, validator *validator.Validate, logger zerolog.Logger) *WorkbookHandler {
	return &WorkbookHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "workbook_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *WorkbookHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Put("/:id/pages", h.registerPages)
	router.Post("/:id/pages/image", h.uploadPageImage)
}

func (h *WorkbookHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	filter := repository.WorkbookFilter{
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	}

	workbooks, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "workbooks retrieved", workbooks)
}

func (h *WorkbookHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	workbook, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "workbook retrieved", workbook)
}

func (h *WorkbookHandler) create(c *fiber.Ctx) error {
	var payload dto.WorkbookCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	workbook, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "workbook created", workbook)
}

func (h *WorkbookHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.WorkbookUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	workbook, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "workbook updated", workbook)
}

func (h *WorkbookHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "workbook deleted", nil)
}

func (h *WorkbookHandler) registerPages(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RegisterPagesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	workbook, err := h.service.RegisterPages(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "page set registered", workbook)
}

func (h *WorkbookHandler) uploadPageImage(c *fiber.Ctx) error {
	if _, err := parseUintParam(c, "id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image is required")
	}

	url, err := h.service.UploadPageImage(c.Context(), file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "page image uploaded", fiber.Map{"image_url": url})
}

func (h *WorkbookHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrWorkbookNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "workbook not found")
	case errors.Is(err, service.ErrDuplicatePageNumber):
		return utils.SendError(c, fiber.StatusBadRequest, "duplicate page number in page set")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
