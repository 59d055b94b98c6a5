package lifecycle

import (
	"time"

	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// TimelineEntry é um item da linha do tempo pública (sem internals).
type TimelineEntry struct {
	Status string     `json:"status"`
	Reason string     `json:"reason"`
	At     *time.Time `json:"at"`
}

// TrackingView é o que o filiado enxerga: status, pendências computadas e a
// linha do tempo. Nunca expõe erro interno nem PII.
type TrackingView struct {
	Protocol    string          `json:"protocolo"`
	Status      string          `json:"status"`
	Type        string          `json:"tipo"`
	SubmittedAt *time.Time      `json:"enviada_em"`
	Pending     []string        `json:"pendencias"`
	Timeline    []TimelineEntry `json:"linha_do_tempo"`
}

// Tracking monta a visão pública a partir do token de acompanhamento.
func (s *Service) Tracking(db *gorm.DB, publicToken string) (*TrackingView, error) {
	p, err := s.FindProposalByPublicToken(db, publicToken)
	if err != nil {
		return nil, err
	}

	var history []models.StatusHistory
	if err := db.Where("proposal_id = ?", p.ID).Order("id asc").Find(&history).Error; err != nil {
		return nil, err
	}

	view := TrackingView{
		Protocol:    p.Protocol,
		Status:      p.Status,
		Type:        p.Type,
		SubmittedAt: p.SubmittedAt,
		Pending:     pendingFor(p.Status),
		Timeline:    make([]TimelineEntry, 0, len(history)),
	}
	for _, h := range history {
		view.Timeline = append(view.Timeline, TimelineEntry{
			Status: h.ToStatus,
			Reason: h.Reason,
			At:     h.CreatedAt,
		})
	}
	return &view, nil
}

// pendingFor deriva as pendências do status (computado, nunca persistido).
func pendingFor(status string) []string {
	switch status {
	case models.PROPOSAL_STATUS_PENDING_DOCS:
		return []string{"Reenviar os documentos solicitados"}
	case models.PROPOSAL_STATUS_PENDING_SIGNATURE:
		return []string{"Assinar o contrato de filiação"}
	case models.PROPOSAL_STATUS_SIGNED:
		return []string{"Aguardar a homologação final"}
	}
	return []string{}
}
