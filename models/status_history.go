package models

import "time"

// StatusHistory é o razão (ledger) de transições da proposta: append-only,
// exatamente uma linha por transição, fonte da análise de "tempo em status".
// FromStatus pode ser igual a ToStatus (ex.: atribuição de analista).
type StatusHistory struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;index" json:"proposal_id"`

	FromStatus string `gorm:"not null" json:"from_status"`
	ToStatus   string `gorm:"not null" json:"to_status"`
	Reason     string `gorm:"type:text" json:"reason"`
	ActorID    *int64 `json:"actor_id"`

	CreatedAt *time.Time `json:"created_at"`
}
