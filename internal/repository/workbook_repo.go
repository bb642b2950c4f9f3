package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/lumen-edu/workbook-api/internal/models"
)

// WorkbookFilter describes pagination & search options.
type WorkbookFilter struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// WorkbookRepository defines persistence operations for workbooks and their
// canonical page sets.
type WorkbookRepository interface {
	List(ctx context.Context) ([]models.Workbook, error)
	ListWithFilter(ctx context.Context, filter WorkbookFilter) ([]models.Workbook, int64, error)
	GetByID(ctx context.Context, id uint) (models.Workbook, error)
	Create(ctx context.Context, workbook *models.Workbook) error
	Update(ctx context.Context, workbook *models.Workbook) error
	Delete(ctx context.Context, id uint) error
	PagesByWorkbook(ctx context.Context, workbookID uint) ([]models.ExpectedPage, error)
	ReplacePages(ctx context.Context, workbookID uint, pages []models.ExpectedPage) error
}

type workbookRepository struct {
	db *gorm.DB
}

// NewWorkbookRepository instantiates a GORM-backed repository.
func NewWorkbookRepository(db *gorm.DB) WorkbookRepository {
	return &workbookRepository{db: db}
}

func (r *workbookRepository) List(ctx context.Context) ([]models.Workbook, error) {
	var workbooks []models.Workbook
	if err := r.db.WithContext(ctx).Order("due_date ASC").Find(&workbooks).Error; err != nil {
		return nil, err
	}

	return workbooks, nil
}

func (r *workbookRepository) ListWithFilter(ctx context.Context, filter WorkbookFilter) ([]models.Workbook, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Workbook{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := normalizeWorkbookSort(filter.Sort)
	if order != "" {
		query = query.Order(order)
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var workbooks []models.Workbook
	if err := query.Find(&workbooks).Error; err != nil {
		return nil, 0, err
	}

	return workbooks, total, nil
}

func (r *workbookRepository) GetByID(ctx context.Context, id uint) (models.Workbook, error) {
	var workbook models.Workbook
	if err := r.db.WithContext(ctx).
		Preload("Pages", func(db *gorm.DB) *gorm.DB {
			return db.Order("page_number ASC")
		}).
		First(&workbook, id).Error; err != nil {
		return models.Workbook{}, err
	}

	return workbook, nil
}

func (r *workbookRepository) Create(ctx context.Context, workbook *models.Workbook) error {
	return r.db.WithContext(ctx).Create(workbook).Error
}

func (r *workbookRepository) Update(ctx context.Context, workbook *models.Workbook) error {
	return r.db.WithContext(ctx).Save(workbook).Error
}

func (r *workbookRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Workbook{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *workbookRepository) PagesByWorkbook(ctx context.Context, workbookID uint) ([]models.ExpectedPage, error) {
	var pages []models.ExpectedPage
	if err := r.db.WithContext(ctx).
		Where("workbook_id = ?", workbookID).
		Order("page_number ASC").
		Find(&pages).Error; err != nil {
		return nil, err
	}

	return pages, nil
}

// ReplacePages swaps the full canonical page set for a workbook in one
// transaction. Page re-upload always replaces the whole set.
func (r *workbookRepository) ReplacePages(ctx context.Context, workbookID uint, pages []models.ExpectedPage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workbook_id = ?", workbookID).Delete(&models.ExpectedPage{}).Error; err != nil {
			return err
		}

		if len(pages) == 0 {
			return nil
		}

		for i := range pages {
			pages[i].ID = 0
			pages[i].WorkbookID = workbookID
		}

		return tx.Create(&pages).Error
	})
}

func normalizeWorkbookSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "due_date", "due_date:asc", "due_date.asc":
		return "due_date ASC"
	case "-due_date", "due_date:desc", "due_date.desc":
		return "due_date DESC"
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	case "updated_at", "updated_at:asc", "updated_at.asc":
		return "updated_at ASC"
	case "-updated_at", "updated_at:desc", "updated_at.desc":
		return "updated_at DESC"
	default:
		return "due_date ASC"
	}
}
