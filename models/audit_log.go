package models

import "time"

/************************************************
/**** MARK: AUDIT ACTIONS ****/
/************************************************/
const AUDIT_ACTION_PROPOSAL_SUBMITTED = "PROPOSAL_SUBMITTED"
const AUDIT_ACTION_PROPOSAL_ASSIGNED = "PROPOSAL_ASSIGNED"
const AUDIT_ACTION_REVIEW_STARTED = "REVIEW_STARTED"
const AUDIT_ACTION_PROPOSAL_HOMOLOGATED = "PROPOSAL_HOMOLOGATED"
const AUDIT_ACTION_PROPOSAL_CHANGES_REQUESTED = "PROPOSAL_CHANGES_REQUESTED"
const AUDIT_ACTION_PROPOSAL_APPROVED = "PROPOSAL_APPROVED"
const AUDIT_ACTION_PROPOSAL_REJECTED = "PROPOSAL_REJECTED"
const AUDIT_ACTION_PROPOSAL_CANCELED = "PROPOSAL_CANCELED"
const AUDIT_ACTION_SIGNATURE_RESENT = "SIGNATURE_RESENT"
const AUDIT_ACTION_SIGNATURE_SENT = "SIGNATURE_SENT"
const AUDIT_ACTION_CONTRACT_RENDERED = "CONTRACT_RENDERED"
const AUDIT_ACTION_SLA_BREACHED = "SLA_BREACHED"
const AUDIT_ACTION_PDF_EXPORTED = "PDF_EXPORTED"
const AUDIT_ACTION_CLICKSIGN_WEBHOOK = "CLICKSIGN_WEBHOOK"
const AUDIT_ACTION_SOCIAL_LINKED = "SOCIAL_LINKED"
const AUDIT_ACTION_SOCIAL_UNLINKED = "SOCIAL_UNLINKED"

// AuditLog registra toda ação administrativa e toda transição disparada de
// fora (webhook, OAuth). Imutável. O Metadata é JSON serializado; para
// webhooks ele carrega o eventId usado na checagem de idempotência.
type AuditLog struct {
	ID int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`

	Action     string `gorm:"not null;index" json:"action"`
	EntityType string `gorm:"not null;index" json:"entity_type"`
	EntityID   int64  `gorm:"not null;index" json:"entity_id"`
	ActorID    *int64 `json:"actor_id"`
	Metadata   string `gorm:"type:text" json:"metadata"`

	// EventID é preenchido só para ações vindas de eventos externos; a
	// checagem de duplicidade roda na mesma transação da mutação.
	EventID string `gorm:"default:'';index" json:"event_id"`

	CreatedAt *time.Time `json:"created_at"`
}
