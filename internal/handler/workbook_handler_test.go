package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/config"
	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/handler"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/repository"
	"github.com/lumen-edu/workbook-api/internal/router"
	"github.com/lumen-edu/workbook-api/internal/service"
)

type testUploader struct{}

func (t *testUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://example.com/" + name, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Workbook{}, &models.ExpectedPage{}, &models.PageSubmission{}))
	return db
}

func stubJWT(c *fiber.Ctx) error {
	c.Locals("user_id", uint(1))
	c.Locals("user_role", "teacher")
	return c.Next()
}

func setupWorkbookApp(t *testing.T) *fiber.App {
	t.Helper()

	db := openTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	workbookRepo := repository.NewWorkbookRepository(db)
	workbookService := service.NewWorkbookService(workbookRepo, validate, &testUploader{}, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		WorkbookHandler: handler.NewWorkbookHandler(workbookService, validate, logger),
		JWTMiddleware:   stubJWT,
	})

	return app
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	if payload != nil {
		require.NoError(t, json.NewEncoder(body).Encode(payload))
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestWorkbookHandlerCreateAndRegisterPages(t *testing.T) {
	app := setupWorkbookApp(t)

	createReq := jsonRequest(t, "POST", "/api/v1/workbooks", dto.WorkbookCreateRequest{
		Title:       "Fractions Workbook",
		Description: "halves and quarters",
		DueDate:     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	resp, err := app.Test(createReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var createBody struct {
		Success bool                 `json:"success"`
		Data    dto.WorkbookResponse `json:"data"`
		Message string               `json:"message"`
	}
	decodeResponse(t, resp, &createBody)
	require.True(t, createBody.Success)
	require.Equal(t, "workbook created", createBody.Message)
	require.NotZero(t, createBody.Data.ID)

	pagesReq := jsonRequest(t, "PUT", "/api/v1/workbooks/"+itoa(createBody.Data.ID)+"/pages", dto.RegisterPagesRequest{
		Pages: []dto.PageRegistration{
			{PageNumber: 1, Fingerprint: "1111111111111111"},
			{PageNumber: 2, Fingerprint: "2222222222222222"},
		},
	})
	pagesResp, err := app.Test(pagesReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, pagesResp.StatusCode)

	var pagesBody struct {
		Success bool                 `json:"success"`
		Data    dto.WorkbookResponse `json:"data"`
	}
	decodeResponse(t, pagesResp, &pagesBody)
	require.Equal(t, 2, pagesBody.Data.TotalPages)
	require.Len(t, pagesBody.Data.Pages, 2)
}

func TestWorkbookHandlerDuplicatePages(t *testing.T) {
	app := setupWorkbookApp(t)

	createReq := jsonRequest(t, "POST", "/api/v1/workbooks", dto.WorkbookCreateRequest{
		Title:       "Geometry Workbook",
		Description: "angles",
		DueDate:     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	resp, err := app.Test(createReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var createBody struct {
		Data dto.WorkbookResponse `json:"data"`
	}
	decodeResponse(t, resp, &createBody)

	pagesReq := jsonRequest(t, "PUT", "/api/v1/workbooks/"+itoa(createBody.Data.ID)+"/pages", dto.RegisterPagesRequest{
		Pages: []dto.PageRegistration{
			{PageNumber: 1, Fingerprint: "1111111111111111"},
			{PageNumber: 1, Fingerprint: "2222222222222222"},
		},
	})
	pagesResp, err := app.Test(pagesReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, pagesResp.StatusCode)
}

func TestWorkbookHandlerGetMissing(t *testing.T) {
	app := setupWorkbookApp(t)

	req := httptest.NewRequest("GET", "/api/v1/workbooks/999999", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWorkbookHandlerRequiresRole(t *testing.T) {
	db := openTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	workbookRepo := repository.NewWorkbookRepository(db)
	workbookService := service.NewWorkbookService(workbookRepo, validate, &testUploader{}, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		WorkbookHandler: handler.NewWorkbookHandler(workbookService, validate, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(2))
			c.Locals("user_role", "student")
			return c.Next()
		},
	})

	req := httptest.NewRequest("GET", "/api/v1/workbooks", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
