package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/dto"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/repository"
)

// ErrDuplicatePageNumber indicates a page-set upload repeats a page number.
var ErrDuplicatePageNumber = errors.New("duplicate page number in page set")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// WorkbookService exposes workbook and canonical-page use cases.
type WorkbookService interface {
	List(ctx context.Context, filter repository.WorkbookFilter) (dto.WorkbookListResponse, error)
	Get(ctx context.Context, id uint) (dto.WorkbookResponse, error)
	Create(ctx context.Context, payload dto.WorkbookCreateRequest) (dto.WorkbookResponse, error)
	Update(ctx context.Context, id uint, payload dto.WorkbookUpdateRequest) (dto.WorkbookResponse, error)
	Delete(ctx context.Context, id uint) error
	RegisterPages(ctx context.Context, workbookID uint, payload dto.RegisterPagesRequest) (dto.WorkbookResponse, error)
	UploadPageImage(ctx context.Context, file *multipart.FileHeader) (string, error)
}

type workbookService struct {
	repo      repository.WorkbookRepository
	validator *validator.Validate
	uploader  FileUploader
	logger    zerolog.Logger
	now       func() time.Time
}

// NewWorkbookService builds a new workbook service.
func NewWorkbookService(repo repository.WorkbookRepository, validate *validator.Validate, uploader FileUploader, logger zerolog.Logger) WorkbookService {
	return &workbookService{
		repo:      repo,
		validator: validate,
		uploader:  uploader,
		logger:    logger.With().Str("component", "workbook_service").Logger(),
		now:       time.Now,
	}
}

func (s *workbookService) List(ctx context.Context, filter repository.WorkbookFilter) (dto.WorkbookListResponse, error) {
	workbooks, total, err := s.repo.ListWithFilter(ctx, filter)
	if err != nil {
		return dto.WorkbookListResponse{}, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}

	return dto.WorkbookListResponse{
		Items:    dto.NewWorkbookResponseSlice(workbooks),
		Total:    total,
		Page:     page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *workbookService) Get(ctx context.Context, id uint) (dto.WorkbookResponse, error) {
	workbook, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WorkbookResponse{}, ErrWorkbookNotFound
		}

		return dto.WorkbookResponse{}, err
	}

	return dto.NewWorkbookResponse(workbook), nil
}

func (s *workbookService) Create(ctx context.Context, payload dto.WorkbookCreateRequest) (dto.WorkbookResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkbookResponse{}, err
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return dto.WorkbookResponse{}, fmt.Errorf("invalid due date: %w", err)
	}

	if !dueDate.After(s.now()) {
		return dto.WorkbookResponse{}, fmt.Errorf("due date must be in the future")
	}

	workbook := models.Workbook{
		Title:       payload.Title,
		Description: payload.Description,
		DueDate:     dueDate,
	}

	if err := s.repo.Create(ctx, &workbook); err != nil {
		return dto.WorkbookResponse{}, err
	}

	s.logger.Info().Uint("workbook_id", workbook.ID).Msg("workbook created")

	return dto.NewWorkbookResponse(workbook), nil
}

func (s *workbookService) Update(ctx context.Context, id uint, payload dto.WorkbookUpdateRequest) (dto.WorkbookResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkbookResponse{}, err
	}

	workbook, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WorkbookResponse{}, ErrWorkbookNotFound
		}

		return dto.WorkbookResponse{}, err
	}

	if payload.Title != nil {
		workbook.Title = *payload.Title
	}

	if payload.Description != nil {
		workbook.Description = *payload.Description
	}

	if payload.DueDate != nil {
		dueDate, err := time.Parse(time.RFC3339, *payload.DueDate)
		if err != nil {
			return dto.WorkbookResponse{}, fmt.Errorf("invalid due date: %w", err)
		}

		workbook.DueDate = dueDate
	}

	if err := s.repo.Update(ctx, &workbook); err != nil {
		return dto.WorkbookResponse{}, err
	}

	s.logger.Info().Uint("workbook_id", workbook.ID).Msg("workbook updated")

	return dto.NewWorkbookResponse(workbook), nil
}

func (s *workbookService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkbookNotFound
		}
		return err
	}

	s.logger.Info().Uint("workbook_id", id).Msg("workbook deleted")
	return nil
}

// RegisterPages replaces the workbook's full canonical page set. Submitted
// ledgers are left alone; a re-check against the new fingerprints is the
// reviewer's call.
func (s *workbookService) RegisterPages(ctx context.Context, workbookID uint, payload dto.RegisterPagesRequest) (dto.WorkbookResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkbookResponse{}, err
	}

	if _, err := s.repo.GetByID(ctx, workbookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WorkbookResponse{}, ErrWorkbookNotFound
		}

		return dto.WorkbookResponse{}, err
	}

	seen := make(map[int]bool, len(payload.Pages))
	pages := make([]models.ExpectedPage, 0, len(payload.Pages))
	for _, page := range payload.Pages {
		if seen[page.PageNumber] {
			return dto.WorkbookResponse{}, ErrDuplicatePageNumber
		}
		seen[page.PageNumber] = true

		pages = append(pages, models.ExpectedPage{
			WorkbookID:  workbookID,
			PageNumber:  page.PageNumber,
			Fingerprint: page.Fingerprint,
			ImageURL:    page.ImageURL,
		})
	}

	if err := s.repo.ReplacePages(ctx, workbookID, pages); err != nil {
		return dto.WorkbookResponse{}, err
	}

	workbook, err := s.repo.GetByID(ctx, workbookID)
	if err != nil {
		return dto.WorkbookResponse{}, err
	}

	s.logger.Info().Uint("workbook_id", workbookID).Int("pages", len(pages)).Msg("page set replaced")

	return dto.NewWorkbookResponse(workbook), nil
}

// UploadPageImage stores a canonical page photo and returns its URL. Only
// image content is accepted; fingerprints still arrive precomputed.
func (s *workbookService) UploadPageImage(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", fmt.Errorf("page image is required")
	}

	if err := validateImageType(file); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	url, err := s.uploader.Upload(ctx, file.Filename, src)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return url, nil
}

func validateImageType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{"image/jpeg", "image/png", "image/webp"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("unsupported file type: %s", mime.String())
}
