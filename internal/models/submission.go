package models

import (
	"encoding/json"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// SubmittedPage is one physical page a student handed in, stored inside the
// ledger's JSON page set and keyed by page number.
type SubmittedPage struct {
	PageNumber       int        `json:"page_number"`
	Fingerprint      string     `json:"fingerprint,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	Similarity       *float64   `json:"similarity"`
	Passed           bool       `json:"passed"`
	ManuallyReviewed bool       `json:"manually_reviewed"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy       *uint      `json:"reviewed_by,omitempty"`
}

// Page status values derived on read, never stored.
const (
	// PageStatusPendingReview means the page is submitted but no similarity
	// has ever been computed and no reviewer has touched it.
	PageStatusPendingReview = "pending_review"
	// PageStatusRejected means the page failed an automatic check or a
	// reviewer decision.
	PageStatusRejected = "rejected"
	// PageStatusPassed means the page is currently accepted.
	PageStatusPassed = "passed"
)

// Status derives the reviewable state of the page.
func (p SubmittedPage) Status() string {
	switch {
	case p.Passed:
		return PageStatusPassed
	case p.Similarity != nil || p.ManuallyReviewed:
		return PageStatusRejected
	default:
		return PageStatusPendingReview
	}
}

// PageSubmission is the ledger: the aggregate record of every page a student
// has submitted for one workbook. One row exists per (workbook, student).
type PageSubmission struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	WorkbookID      uint           `gorm:"not null;uniqueIndex:idx_workbook_student" json:"workbook_id"`
	StudentID       uint           `gorm:"not null;uniqueIndex:idx_workbook_student" json:"student_id"`
	Pages           datatypes.JSON `gorm:"type:json" json:"-"`
	PassedCount     int            `gorm:"not null" json:"passed_count"`
	TeacherComment  string         `gorm:"type:text" json:"teacher_comment"`
	CommentedAt     *time.Time     `json:"commented_at"`
	CommentedBy     *uint          `json:"commented_by"`
	LastSubmittedAt time.Time      `json:"last_submitted_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Workbook        Workbook       `gorm:"foreignKey:WorkbookID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student         Student        `gorm:"foreignKey:StudentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// PageList deserializes the stored page set, sorted by page number.
func (s PageSubmission) PageList() []SubmittedPage {
	if len(s.Pages) == 0 {
		return nil
	}

	var pages []SubmittedPage
	if err := json.Unmarshal(s.Pages, &pages); err != nil {
		return nil
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})

	return pages
}

// SetPages serializes the page set into the JSON storage column and
// recomputes PassedCount. The ledger is the sole writer of PassedCount;
// it is always derived, never set directly.
func (s *PageSubmission) SetPages(pages []SubmittedPage) {
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})

	passed := 0
	for _, page := range pages {
		if page.Passed {
			passed++
		}
	}
	s.PassedCount = passed

	data, err := json.Marshal(pages)
	if err != nil {
		s.Pages = datatypes.JSON([]byte("[]"))
		return
	}
	s.Pages = datatypes.JSON(data)
}

// FindPage returns the submitted page with the given number, if present.
func (s PageSubmission) FindPage(pageNumber int) (SubmittedPage, bool) {
	for _, page := range s.PageList() {
		if page.PageNumber == pageNumber {
			return page, true
		}
	}
	return SubmittedPage{}, false
}
