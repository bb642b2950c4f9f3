package models

import "time"

// Workbook represents a paginated written workbook distributed to students.
type Workbook struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	DueDate     time.Time      `gorm:"not null" json:"due_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Pages       []ExpectedPage `gorm:"foreignKey:WorkbookID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"pages,omitempty"`
}

// IsPastDue returns true when the workbook deadline has already passed.
func (w Workbook) IsPastDue(reference time.Time) bool {
	return reference.After(w.DueDate)
}

// ExpectedPage is the canonical record of one workbook page. Its fingerprint
// is the ground truth submitted photos are checked against; a page without
// one cannot be similarity-checked.
type ExpectedPage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkbookID  uint      `gorm:"not null;uniqueIndex:idx_workbook_page" json:"workbook_id"`
	PageNumber  int       `gorm:"not null;uniqueIndex:idx_workbook_page" json:"page_number"`
	Fingerprint string    `gorm:"size:64" json:"fingerprint"`
	ImageURL    string    `gorm:"size:512" json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}
