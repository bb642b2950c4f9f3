package dto

import (
	"time"

	"github.com/lumen-edu/workbook-api/internal/models"
)

// WorkbookCreateRequest describes the payload for creating a workbook.
type WorkbookCreateRequest struct {
	Title       string `json:"title" form:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" form:"description" validate:"omitempty"`
	DueDate     string `json:"due_date" form:"due_date" validate:"required"`
}

// WorkbookUpdateRequest describes a partial workbook update.
type WorkbookUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
}

// PageRegistration carries one canonical page in a page-set upload. The
// fingerprint is precomputed by the capture client and arrives as hex.
type PageRegistration struct {
	PageNumber  int    `json:"page_number" validate:"required,gt=0"`
	Fingerprint string `json:"fingerprint" validate:"omitempty,hexadecimal,max=64"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// RegisterPagesRequest replaces the whole canonical page set of a workbook.
type RegisterPagesRequest struct {
	Pages []PageRegistration `json:"pages" validate:"required,min=1,dive"`
}

// ExpectedPageResponse serializes one canonical page.
type ExpectedPageResponse struct {
	PageNumber  int    `json:"page_number"`
	Fingerprint string `json:"fingerprint,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// WorkbookResponse is returned to API clients when viewing workbooks.
type WorkbookResponse struct {
	ID          uint                   `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	DueDate     time.Time              `json:"due_date"`
	TotalPages  int                    `json:"total_pages"`
	Pages       []ExpectedPageResponse `json:"pages,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WorkbookListResponse wraps a paginated workbook listing.
type WorkbookListResponse struct {
	Items    []WorkbookResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// NewWorkbookResponse converts a Workbook model into a DTO.
func NewWorkbookResponse(model models.Workbook) WorkbookResponse {
	response := WorkbookResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		DueDate:     model.DueDate,
		TotalPages:  len(model.Pages),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if len(model.Pages) > 0 {
		pages := make([]ExpectedPageResponse, 0, len(model.Pages))
		for _, page := range model.Pages {
			pages = append(pages, ExpectedPageResponse{
				PageNumber:  page.PageNumber,
				Fingerprint: page.Fingerprint,
				ImageURL:    page.ImageURL,
			})
		}
		response.Pages = pages
	}

	return response
}

// NewWorkbookResponseSlice converts workbook models into DTOs.
func NewWorkbookResponseSlice(workbooks []models.Workbook) []WorkbookResponse {
	responses := make([]WorkbookResponse, 0, len(workbooks))
	for _, workbook := range workbooks {
		responses = append(responses, NewWorkbookResponse(workbook))
	}

	return responses
}
