package models

import "time"

// Draft é o rascunho pré-envio da filiação. Autenticado pelo hash do token
// (o token cru só aparece na resposta de criação), guarda os dados parciais
// como JSON e morre na conversão em Proposal ou na varredura de expirados.
type Draft struct {
	ID        int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TokenHash string `gorm:"not null;index" json:"-"`

	// Data é um saco de dados JSON com os campos parciais do formulário.
	Data string `gorm:"type:text" json:"data"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Expired diz se o rascunho passou da validade.
func (d Draft) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}
