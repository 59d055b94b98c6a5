package models

import "time"

// OcrResult guarda o texto extraído de um DocumentFile pelo worker de OCR.
type OcrResult struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;index" json:"proposal_id"`
	DocumentID int64 `gorm:"not null;index" json:"document_id"`

	Text       string  `gorm:"type:text" json:"text"`
	Confidence float64 `gorm:"default:0" json:"confidence"`
	Engine     string  `gorm:"default:''" json:"engine"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
