package handler_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/config"
	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/handler"
	"github.com/lumen-edu/workbook-api/internal/match"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/repository"
	"github.com/lumen-edu/workbook-api/internal/router"
	"github.com/lumen-edu/workbook-api/internal/service"
)

func setupReviewApp(t *testing.T) (*fiber.App, *gorm.DB, uint, uint) {
	t.Helper()

	db := openTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	workbookID, studentID := seedSubmissionFixtures(t, db)

	workbookRepo := repository.NewWorkbookRepository(db)
	submissionRepo := repository.NewPageSubmissionRepository(db)

	reviewService := service.NewReviewService(
		submissionRepo, workbookRepo, validate, nil, match.DefaultThresholds(), logger)
	progressService := service.NewProgressService(
		submissionRepo, workbookRepo, nil, time.Minute, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ReviewHandler: handler.NewReviewHandler(reviewService, progressService, validate, logger),
		JWTMiddleware: stubJWT,
	})

	return app, db, workbookID, studentID
}

func seedLedgerRow(t *testing.T, db *gorm.DB, workbookID, studentID uint, pages []models.SubmittedPage) {
	t.Helper()
	ledger := models.PageSubmission{
		WorkbookID:      workbookID,
		StudentID:       studentID,
		LastSubmittedAt: time.Now(),
	}
	ledger.SetPages(pages)
	require.NoError(t, db.Create(&ledger).Error)
}

func TestReviewHandlerRecheck(t *testing.T) {
	app, db, workbookID, studentID := setupReviewApp(t)

	seedLedgerRow(t, db, workbookID, studentID, []models.SubmittedPage{
		{PageNumber: 1, Fingerprint: "1111111111111111", SubmittedAt: time.Now()},
		{PageNumber: 2, Fingerprint: "ffffffffffffffff", SubmittedAt: time.Now()},
	})

	req := jsonRequest(t, "POST", "/api/v1/reviews/recheck", dto.RecheckRequest{
		WorkbookID: workbookID,
		StudentID:  studentID,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                `json:"success"`
		Data    dto.RecheckResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data.Results, 2)
	require.True(t, body.Data.Results[0].Passed)
	require.False(t, body.Data.Results[1].Passed)
	require.Equal(t, 1, body.Data.PassedCount)
}

func TestReviewHandlerVerdictAndLedger(t *testing.T) {
	app, db, workbookID, studentID := setupReviewApp(t)

	seedLedgerRow(t, db, workbookID, studentID, []models.SubmittedPage{
		{PageNumber: 1, Fingerprint: "ffffffffffffffff", SubmittedAt: time.Now()},
	})

	passed := true
	verdictReq := jsonRequest(t, "PATCH", "/api/v1/reviews/verdict", dto.VerdictRequest{
		WorkbookID: workbookID,
		StudentID:  studentID,
		PageNumber: 1,
		Passed:     &passed,
	})
	verdictResp, err := app.Test(verdictReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, verdictResp.StatusCode)

	var verdictBody struct {
		Data dto.VerdictResponse `json:"data"`
	}
	decodeResponse(t, verdictResp, &verdictBody)
	require.Equal(t, 1, verdictBody.Data.PassedCount)

	ledgerReq := httptest.NewRequest("GET",
		"/api/v1/reviews/workbooks/"+itoa(workbookID)+"/students/"+itoa(studentID), nil)
	ledgerResp, err := app.Test(ledgerReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, ledgerResp.StatusCode)

	var ledgerBody struct {
		Data dto.LedgerResponse `json:"data"`
	}
	decodeResponse(t, ledgerResp, &ledgerBody)
	require.Len(t, ledgerBody.Data.Pages, 1)
	require.True(t, ledgerBody.Data.Pages[0].ManuallyReviewed)
	require.Equal(t, models.PageStatusPassed, ledgerBody.Data.Pages[0].Status)
	require.Equal(t, uint(1), *ledgerBody.Data.Pages[0].ReviewedBy)
}

func TestReviewHandlerListLedgers(t *testing.T) {
	app, db, workbookID, studentID := setupReviewApp(t)

	seedLedgerRow(t, db, workbookID, studentID, []models.SubmittedPage{
		{PageNumber: 1, Fingerprint: "1111111111111111", Passed: true, SubmittedAt: time.Now()},
	})

	req := httptest.NewRequest("GET", "/api/v1/reviews/workbooks/"+itoa(workbookID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.LedgerResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, studentID, body.Data[0].StudentID)
	require.Equal(t, 1, body.Data[0].PassedCount)
}

func TestReviewHandlerProgress(t *testing.T) {
	app, db, workbookID, studentID := setupReviewApp(t)

	seedLedgerRow(t, db, workbookID, studentID, []models.SubmittedPage{
		{PageNumber: 1, Fingerprint: "1111111111111111", Passed: true, SubmittedAt: time.Now()},
	})

	req := httptest.NewRequest("GET",
		"/api/v1/reviews/workbooks/"+itoa(workbookID)+"/students/"+itoa(studentID)+"/progress", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.ProgressSummaryResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, 2, body.Data.TotalPages)
	require.Equal(t, 1, body.Data.Passed)
	require.False(t, body.Data.IsComplete)
}

func TestReviewHandlerMissingLedger(t *testing.T) {
	app, _, workbookID, studentID := setupReviewApp(t)

	req := jsonRequest(t, "POST", "/api/v1/reviews/recheck", dto.RecheckRequest{
		WorkbookID: workbookID,
		StudentID:  studentID,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
