package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/service"
	"github.com/lumen-edu/workbook-api/internal/utils"
)

// ReviewHandler manages reviewer endpoints: the ledger view, similarity
// re-checks, manual verdicts, comments, and the progress summary.
type ReviewHandler struct {
	reviews   service.ReviewService
	progress  service.ProgressService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReviewHandler builds a review handler instance.
func NewReviewHandler(reviews service.ReviewService, progress service.ProgressService, validator *validator.Validate, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews:   reviews,
		progress:  progress,
		validator: validator,
		logger:    logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("/workbooks/:workbookId", h.listLedgers)
	router.Get("/workbooks/:workbookId/students/:studentId", h.ledger)
	router.Get("/workbooks/:workbookId/students/:studentId/progress", h.progressSummary)
	router.Post("/recheck", h.recheck)
	router.Patch("/verdict", h.verdict)
	router.Post("/comment", h.comment)
}

func (h *ReviewHandler) listLedgers(c *fiber.Ctx) error {
	workbookID, err := parseUintParam(c, "workbookId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ledgers, err := h.reviews.ListLedgers(c.Context(), workbookID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "ledgers retrieved", ledgers)
}

func (h *ReviewHandler) ledger(c *fiber.Ctx) error {
	workbookID, err := parseUintParam(c, "workbookId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ledger, err := h.reviews.Ledger(c.Context(), workbookID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "ledger retrieved", ledger)
}

func (h *ReviewHandler) progressSummary(c *fiber.Ctx) error {
	workbookID, err := parseUintParam(c, "workbookId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.progress.GetProgress(c.Context(), workbookID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress retrieved", summary)
}

func (h *ReviewHandler) recheck(c *fiber.Ctx) error {
	var payload dto.RecheckRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reviews.Recheck(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "similarity recheck completed", result)
}

func (h *ReviewHandler) verdict(c *fiber.Ctx) error {
	var payload dto.VerdictRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reviews.SetPageVerdict(c.Context(), payload, reviewerFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "verdict recorded", result)
}

func (h *ReviewHandler) comment(c *fiber.Ctx) error {
	var payload dto.CommentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.reviews.Comment(c.Context(), payload, reviewerFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "comment saved", result)
}

func (h *ReviewHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrWorkbookNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "workbook not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrPageNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submitted page not found")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
