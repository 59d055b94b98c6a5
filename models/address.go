package models

import "time"

// Address é o endereço opcional do filiado (zero ou um por proposta).
type Address struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;unique_index" json:"proposal_id"`

	Postal       string `gorm:"default:''" json:"postal"`
	State        string `gorm:"default:''" json:"state"`
	City         string `gorm:"default:''" json:"city"`
	Neighborhood string `gorm:"default:''" json:"neighborhood"`
	Street       string `gorm:"default:''" json:"street"`
	Number       string `gorm:"default:''" json:"number"`
	Complement   string `gorm:"default:''" json:"complement"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
