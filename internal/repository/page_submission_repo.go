package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/models"
)

// PageSubmissionRepository defines data operations for the per-student page
// ledgers. Records are read and written whole; no partial field updates.
type PageSubmissionRepository interface {
	ListByWorkbook(ctx context.Context, workbookID uint) ([]models.PageSubmission, error)
	GetByWorkbookAndStudent(ctx context.Context, workbookID, studentID uint) (models.PageSubmission, error)
	Create(ctx context.Context, submission *models.PageSubmission) error
	Update(ctx context.Context, submission *models.PageSubmission) error
}

type pageSubmissionRepository struct {
	db *gorm.DB
}

// NewPageSubmissionRepository instantiates the repository.
func NewPageSubmissionRepository(db *gorm.DB) PageSubmissionRepository {
	return &pageSubmissionRepository{db: db}
}

func (r *pageSubmissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.PageSubmission{}).
		Preload("Workbook").
		Preload("Student")
}

func (r *pageSubmissionRepository) ListByWorkbook(ctx context.Context, workbookID uint) ([]models.PageSubmission, error) {
	var submissions []models.PageSubmission
	if err := r.baseQuery(ctx).
		Where("workbook_id = ?", workbookID).
		Order("last_submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *pageSubmissionRepository) GetByWorkbookAndStudent(ctx context.Context, workbookID, studentID uint) (models.PageSubmission, error) {
	var submission models.PageSubmission
	if err := r.baseQuery(ctx).
		Where("workbook_id = ?", workbookID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.PageSubmission{}, err
	}

	return submission, nil
}

func (r *pageSubmissionRepository) Create(ctx context.Context, submission *models.PageSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *pageSubmissionRepository) Update(ctx context.Context, submission *models.PageSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
