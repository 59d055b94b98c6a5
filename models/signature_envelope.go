package models

import "time"

/************************************************
/**** MARK: ENVELOPE STATUS ****/
/************************************************/
const ENVELOPE_STATUS_SENT = "SENT"
const ENVELOPE_STATUS_SIGNED = "SIGNED"
const ENVELOPE_STATUS_CANCELED = "CANCELED"
const ENVELOPE_STATUS_EXPIRED = "EXPIRED"

// SignatureEnvelope representa um pedido de assinatura na Clicksign para o
// contrato de uma proposta. No máximo um envelope "ativo" (SENT) por
// proposta: reenviar o link cancela o anterior antes de criar o próximo.
type SignatureEnvelope struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;index" json:"proposal_id"`

	// ExternalID é o identificador do envelope no provedor.
	ExternalID string `gorm:"not null;index" json:"external_id"`
	Status     string `gorm:"not null;default:'SENT';index" json:"status"`
	SignURL    string `gorm:"default:''" json:"sign_url"`

	SignedAt   *time.Time `json:"signed_at"`
	CanceledAt *time.Time `json:"canceled_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
