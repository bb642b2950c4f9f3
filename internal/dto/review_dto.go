package dto

import "time"

// RecheckRequest asks for a full similarity re-evaluation of a ledger.
type RecheckRequest struct {
	WorkbookID uint `json:"workbook_id" validate:"required,gt=0"`
	StudentID  uint `json:"student_id" validate:"required,gt=0"`
}

// RecheckPageResult reports the re-check outcome for one ledger page.
// Manually reviewed pages are included for transparency but left untouched.
type RecheckPageResult struct {
	PageNumber       int      `json:"page_number"`
	Similarity       *float64 `json:"similarity"`
	Passed           bool     `json:"passed"`
	ManuallyReviewed bool     `json:"manually_reviewed"`
}

// RecheckResponse reports the per-page outcomes plus the new totals.
type RecheckResponse struct {
	Results        []RecheckPageResult `json:"per_page_result"`
	PassedCount    int                 `json:"passed_count"`
	TotalSubmitted int                 `json:"total_submitted"`
	TotalPages     int                 `json:"total_pages"`
}

// VerdictRequest records a reviewer decision on one page. Passed is a
// pointer so an omitted verdict fails validation instead of defaulting.
type VerdictRequest struct {
	WorkbookID uint  `json:"workbook_id" validate:"required,gt=0"`
	StudentID  uint  `json:"student_id" validate:"required,gt=0"`
	PageNumber int   `json:"page_number" validate:"required,gt=0"`
	Passed     *bool `json:"passed" validate:"required"`
}

// VerdictResponse reports the ledger totals after a reviewer decision.
type VerdictResponse struct {
	PassedCount int `json:"passed_count"`
	TotalPages  int `json:"total_pages"`
}

// CommentRequest attaches a teacher comment to a ledger.
type CommentRequest struct {
	WorkbookID uint   `json:"workbook_id" validate:"required,gt=0"`
	StudentID  uint   `json:"student_id" validate:"required,gt=0"`
	Comment    string `json:"comment" validate:"required,min=1,max=2000"`
}

// ProgressSummaryResponse is the cached per-student progress read model.
type ProgressSummaryResponse struct {
	WorkbookID      uint      `json:"workbook_id"`
	StudentID       uint      `json:"student_id"`
	TotalPages      int       `json:"total_pages"`
	Submitted       int       `json:"submitted"`
	Passed          int       `json:"passed"`
	Rejected        int       `json:"rejected"`
	PendingReview   int       `json:"pending_review"`
	IsComplete      bool      `json:"is_complete"`
	LastSubmittedAt time.Time `json:"last_submitted_at"`
}
