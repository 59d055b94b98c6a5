package models

import "time"

// Person guarda os dados pessoais do filiado. CPF, email e telefone são
// persistidos apenas como par {cifra, hash de busca}; o texto puro nunca
// toca o banco. Os hashes servem só para igualdade (busca por CPF/email).
type Person struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;index" json:"proposal_id"`

	FullName  string `gorm:"not null" json:"full_name"`
	Birthdate string `gorm:"default:''" json:"birthdate"`
	Gender    string `gorm:"default:''" json:"gender"`

	CpfCipher   string `gorm:"not null" json:"-"`
	CpfHash     string `gorm:"not null;index" json:"-"`
	EmailCipher string `gorm:"not null" json:"-"`
	EmailHash   string `gorm:"not null;index" json:"-"`
	PhoneCipher string `gorm:"default:''" json:"-"`
	PhoneHash   string `gorm:"default:'';index" json:"-"`

	SocialAccounts []SocialAccount `gorm:"foreignkey:PersonID" json:"social_accounts,omitempty"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
