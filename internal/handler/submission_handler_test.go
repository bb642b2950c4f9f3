package handler_test

import (
	"io"
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

func setupSubmissionApp(t *testing.T) (*fiber.App, uint, uint) {
	t.Helper()

	db := openTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	workbookID, studentID := seedSubmissionFixtures(t, db)

	workbookRepo := repository.NewWorkbookRepository(db)
	submissionRepo := repository.NewPageSubmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	reconcileService := service.NewReconcileService(
		submissionRepo, workbookRepo, studentRepo, validate, nil, match.DefaultThresholds(), logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(reconcileService, validate, logger),
		JWTMiddleware:     stubJWT,
	})

	return app, workbookID, studentID
}

func seedSubmissionFixtures(t *testing.T, db *gorm.DB) (uint, uint) {
	t.Helper()

	workbook := models.Workbook{
		Title:       "Subtraction Workbook",
		Description: "borrowing practice",
		DueDate:     time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, db.Create(&workbook).Error)

	pages := []models.ExpectedPage{
		{WorkbookID: workbook.ID, PageNumber: 1, Fingerprint: "1111111111111111"},
		{WorkbookID: workbook.ID, PageNumber: 2, Fingerprint: "2222222222222222"},
	}
	require.NoError(t, db.Create(&pages).Error)

	student := models.Student{
		Name:  "Mika Tanaka",
		Email: "mika-" + time.Now().Format("150405.000000000") + "@example.com",
	}
	require.NoError(t, db.Create(&student).Error)

	return workbook.ID, student.ID
}

func TestSubmissionHandlerSubmitPage(t *testing.T) {
	app, workbookID, studentID := setupSubmissionApp(t)

	req := jsonRequest(t, "POST", "/api/v1/submissions/page", dto.SinglePageSubmitRequest{
		WorkbookID:  workbookID,
		StudentID:   studentID,
		PageNumber:  1,
		Fingerprint: "1111111111111111",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                         `json:"success"`
		Data    dto.SinglePageSubmitResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, 1, body.Data.SavedPageNumber)
	require.Equal(t, 1, body.Data.TotalSubmitted)
	require.Equal(t, 2, body.Data.TotalPages)
}

func TestSubmissionHandlerSubmitPageOutOfRange(t *testing.T) {
	app, workbookID, studentID := setupSubmissionApp(t)

	req := jsonRequest(t, "POST", "/api/v1/submissions/page", dto.SinglePageSubmitRequest{
		WorkbookID: workbookID,
		StudentID:  studentID,
		PageNumber: 8,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandlerSubmitBatch(t *testing.T) {
	app, workbookID, studentID := setupSubmissionApp(t)

	req := jsonRequest(t, "POST", "/api/v1/submissions/batch", dto.BatchSubmitRequest{
		WorkbookID: workbookID,
		StudentID:  studentID,
		Images: []dto.BatchImage{
			{Fingerprint: "1111111111111111"},
			{Fingerprint: "2222222222222222"},
		},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                    `json:"success"`
		Data    dto.BatchSubmitResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data.Results, 2)
	require.Equal(t, 2, body.Data.Summary.Submitted)
	require.True(t, body.Data.Summary.IsComplete)
}

func TestSubmissionHandlerUnknownWorkbook(t *testing.T) {
	app, _, studentID := setupSubmissionApp(t)

	req := jsonRequest(t, "POST", "/api/v1/submissions/page", dto.SinglePageSubmitRequest{
		WorkbookID: 999999,
		StudentID:  studentID,
		PageNumber: 1,
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
