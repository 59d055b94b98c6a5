package models

import "time"

/************************************************
/**** MARK: PROPOSAL STATUS ****/
/************************************************/
const PROPOSAL_STATUS_SUBMITTED = "SUBMITTED"
const PROPOSAL_STATUS_UNDER_REVIEW = "UNDER_REVIEW"
const PROPOSAL_STATUS_PENDING_DOCS = "PENDING_DOCS"
const PROPOSAL_STATUS_PENDING_SIGNATURE = "PENDING_SIGNATURE"
const PROPOSAL_STATUS_SIGNED = "SIGNED"
const PROPOSAL_STATUS_APPROVED = "APPROVED"
const PROPOSAL_STATUS_REJECTED = "REJECTED"
const PROPOSAL_STATUS_CANCELED = "CANCELED"

/************************************************
/**** MARK: PROPOSAL TYPE ****/
/************************************************/
const PROPOSAL_TYPE_NOVO = "NOVO"
const PROPOSAL_TYPE_MIGRACAO = "MIGRACAO"

// Proposal representa uma proposta de filiação (raiz do agregado).
// O Protocol é o número público de acompanhamento; o PublicToken autentica
// o filiado na tela de acompanhamento e nunca muda depois de criado.
type Proposal struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Protocol    string `gorm:"not null;unique_index" json:"protocol"`
	Status      string `gorm:"not null;default:'SUBMITTED';index" json:"status"`
	Type        string `gorm:"not null;default:'NOVO'" json:"type"`
	PublicToken string `gorm:"not null;unique_index" json:"-"`

	SubmittedAt *time.Time `json:"submitted_at"`
	SignedAt    *time.Time `json:"signed_at"`
	RejectedAt  *time.Time `json:"rejected_at"`

	// SLA: independente do status; recalculado pelo worker, nunca
	// limpa SlaBreachedAt depois de setado.
	SlaStartedAt  *time.Time `json:"sla_started_at"`
	SlaDueAt      *time.Time `gorm:"index" json:"sla_due_at"`
	SlaBreachedAt *time.Time `json:"sla_breached_at"`

	AssignedAnalystID *int64 `gorm:"index" json:"assigned_analyst_id"`

	// Version é incrementada a cada transição (lock otimista).
	Version int64 `gorm:"not null;default:0" json:"-"`

	Person             *Person             `gorm:"foreignkey:ProposalID" json:"person,omitempty"`
	Address            *Address            `gorm:"foreignkey:ProposalID" json:"address,omitempty"`
	Documents          []DocumentFile      `gorm:"foreignkey:ProposalID" json:"documents,omitempty"`
	OcrResults         []OcrResult         `gorm:"foreignkey:ProposalID" json:"ocr_results,omitempty"`
	SignatureEnvelopes []SignatureEnvelope `gorm:"foreignkey:ProposalID" json:"signature_envelopes,omitempty"`
	Notifications      []Notification      `gorm:"foreignkey:ProposalID" json:"notifications,omitempty"`
	StatusHistory      []StatusHistory     `gorm:"foreignkey:ProposalID" json:"status_history,omitempty"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// IsTerminal diz se a proposta chegou num status final.
func (p Proposal) IsTerminal() bool {
	switch p.Status {
	case PROPOSAL_STATUS_APPROVED, PROPOSAL_STATUS_REJECTED, PROPOSAL_STATUS_CANCELED:
		return true
	}
	return false
}

// IsOpen diz se a proposta ainda conta para a carga de trabalho do analista.
func (p Proposal) IsOpen() bool {
	return p.Status == PROPOSAL_STATUS_SUBMITTED || p.Status == PROPOSAL_STATUS_UNDER_REVIEW
}

// WorkloadStatuses são os status que contam na fila de um analista; são os
// mesmos em que o relógio de SLA anda.
func WorkloadStatuses() []string {
	return []string{PROPOSAL_STATUS_SUBMITTED, PROPOSAL_STATUS_UNDER_REVIEW}
}
