package dto

import (
	"time"

	"github.com/lumen-edu/workbook-api/internal/models"
)

// SinglePageSubmitRequest submits one photographed page.
type SinglePageSubmitRequest struct {
	WorkbookID  uint   `json:"workbook_id" validate:"required,gt=0"`
	StudentID   uint   `json:"student_id" validate:"required,gt=0"`
	PageNumber  int    `json:"page_number" validate:"required,gt=0"`
	Fingerprint string `json:"fingerprint" validate:"omitempty,hexadecimal,max=64"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// SinglePageSubmitResponse reports the new ledger totals after a single-page
// write.
type SinglePageSubmitResponse struct {
	SavedPageNumber int `json:"saved_page_number"`
	TotalSubmitted  int `json:"total_submitted"`
	PassedCount     int `json:"passed_count"`
	TotalPages      int `json:"total_pages"`
}

// BatchImage is one photo inside a batch submission, in capture order.
type BatchImage struct {
	Fingerprint string `json:"fingerprint" validate:"omitempty,hexadecimal,max=64"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// BatchSubmitRequest submits a set of photographed pages for matching.
type BatchSubmitRequest struct {
	WorkbookID uint         `json:"workbook_id" validate:"required,gt=0"`
	StudentID  uint         `json:"student_id" validate:"required,gt=0"`
	Images     []BatchImage `json:"images" validate:"required,min=1,dive"`
}

// BatchImageResult is the matching outcome for one submitted image.
type BatchImageResult struct {
	OriginalIndex int     `json:"original_index"`
	PageNumber    *int    `json:"page_number"`
	Similarity    float64 `json:"similarity"`
	Passed        bool    `json:"passed"`
}

// BatchSummary aggregates a batch submission outcome.
type BatchSummary struct {
	Submitted        int  `json:"submitted"`
	NotMatched       int  `json:"not_matched"`
	TotalPassedCount int  `json:"total_passed_count"`
	TotalPages       int  `json:"total_pages"`
	IsComplete       bool `json:"is_complete"`
}

// BatchSubmitResponse reports per-image results plus ledger totals.
type BatchSubmitResponse struct {
	Results []BatchImageResult `json:"per_image_result"`
	Summary BatchSummary       `json:"summary"`
}

// SubmittedPageResponse serializes one ledger page with its derived status.
type SubmittedPageResponse struct {
	PageNumber       int        `json:"page_number"`
	Fingerprint      string     `json:"fingerprint,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	Similarity       *float64   `json:"similarity"`
	Passed           bool       `json:"passed"`
	ManuallyReviewed bool       `json:"manually_reviewed"`
	Status           string     `json:"status"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy       *uint      `json:"reviewed_by,omitempty"`
}

// LedgerResponse is the reviewer view of one student's page ledger.
type LedgerResponse struct {
	WorkbookID      uint                    `json:"workbook_id"`
	StudentID       uint                    `json:"student_id"`
	Pages           []SubmittedPageResponse `json:"pages"`
	PassedCount     int                     `json:"passed_count"`
	TotalPages      int                     `json:"total_pages"`
	TeacherComment  string                  `json:"teacher_comment,omitempty"`
	CommentedAt     *time.Time              `json:"commented_at,omitempty"`
	CommentedBy     *uint                   `json:"commented_by,omitempty"`
	LastSubmittedAt time.Time               `json:"last_submitted_at"`
}

// NewSubmittedPageResponse converts a ledger page into a DTO.
func NewSubmittedPageResponse(page models.SubmittedPage) SubmittedPageResponse {
	return SubmittedPageResponse{
		PageNumber:       page.PageNumber,
		Fingerprint:      page.Fingerprint,
		ImageURL:         page.ImageURL,
		Similarity:       page.Similarity,
		Passed:           page.Passed,
		ManuallyReviewed: page.ManuallyReviewed,
		Status:           page.Status(),
		SubmittedAt:      page.SubmittedAt,
		ReviewedAt:       page.ReviewedAt,
		ReviewedBy:       page.ReviewedBy,
	}
}

// NewLedgerResponse converts a ledger model into the reviewer view.
func NewLedgerResponse(model models.PageSubmission, totalPages int) LedgerResponse {
	pages := model.PageList()
	pageResponses := make([]SubmittedPageResponse, 0, len(pages))
	for _, page := range pages {
		pageResponses = append(pageResponses, NewSubmittedPageResponse(page))
	}

	return LedgerResponse{
		WorkbookID:      model.WorkbookID,
		StudentID:       model.StudentID,
		Pages:           pageResponses,
		PassedCount:     model.PassedCount,
		TotalPages:      totalPages,
		TeacherComment:  model.TeacherComment,
		CommentedAt:     model.CommentedAt,
		CommentedBy:     model.CommentedBy,
		LastSubmittedAt: model.LastSubmittedAt,
	}
}
