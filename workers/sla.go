package workers

import (
	"errors"
	"log"
	"sort"
	"time"

	"filiacao/lifecycle"
	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// SlaScheduler mantém os prazos das propostas abertas: recalcula o
// vencimento, marca estouro (uma vez só, nunca desmarca) e, quando
// habilitado, distribui propostas sem analista.
type SlaScheduler struct {
	Lifecycle *lifecycle.Service
	Interval  time.Duration
}

func NewSlaScheduler(svc *lifecycle.Service) *SlaScheduler {
	return &SlaScheduler{Lifecycle: svc, Interval: 5 * time.Minute}
}

func (w *SlaScheduler) Start(db *gorm.DB) {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()

		for range ticker.C {
			w.RunOnce(db, time.Now())
		}
	}()
}

func (w *SlaScheduler) RunOnce(db *gorm.DB, now time.Time) {
	w.recomputeDeadlines(db, now)
	if w.Lifecycle.Config().Sla.AutoAssignEnabled {
		w.autoAssign(db)
	}
}

// recomputeDeadlines aplica a regra do prazo: vencimento é a âncora do SLA
// (ou a submissão) mais os dias configurados. Propostas já vencidas ganham
// SlaBreachedAt na primeira passada e ele fica para sempre, mesmo que o
// prazo seja empurrado depois. O relógio só corre enquanto a proposta está
// na mesa do analista (SUBMITTED/UNDER_REVIEW); parada com o filiado ou na
// assinatura, o prazo não anda.
func (w *SlaScheduler) recomputeDeadlines(db *gorm.DB, now time.Time) {
	days := w.Lifecycle.Config().Sla.Days

	var open []models.Proposal
	if err := db.
		Where("status in (?)", models.WorkloadStatuses()).
		Find(&open).Error; err != nil {
		log.Printf("sla worker: query error: %v", err)
		return
	}

	for i := range open {
		p := &open[i]

		anchor := p.SlaStartedAt
		if anchor == nil {
			anchor = p.SubmittedAt
		}
		if anchor == nil {
			continue
		}
		due := anchor.AddDate(0, 0, days)

		updates := map[string]any{}
		if p.SlaDueAt == nil || !p.SlaDueAt.Equal(due) {
			updates["sla_due_at"] = due
		}
		breachedNow := now.After(due) && p.SlaBreachedAt == nil
		if breachedNow {
			updates["sla_breached_at"] = now
		}
		if len(updates) == 0 {
			continue
		}

		if err := db.Model(&models.Proposal{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			log.Printf("sla worker: update proposta %d: %v", p.ID, err)
			continue
		}
		if breachedNow {
			meta := map[string]any{"due_at": due, "protocol": p.Protocol}
			if err := w.Lifecycle.WriteAudit(db, models.AUDIT_ACTION_SLA_BREACHED, "Proposal", p.ID, nil, "", meta); err != nil {
				log.Printf("sla worker: audit proposta %d: %v", p.ID, err)
			}
		}
	}
}

// autoAssign distribui as propostas abertas sem analista para o analista
// ativo menos carregado. A carga é contada uma vez por passada e
// incrementada em memória conforme atribui; empate vai pro id menor.
func (w *SlaScheduler) autoAssign(db *gorm.DB) {
	var analysts []models.AdminUser
	if err := db.
		Where("status = ?", models.ADMIN_STATUS_ACTIVE).
		Order("id asc").
		Find(&analysts).Error; err != nil {
		log.Printf("sla worker: analistas: %v", err)
		return
	}
	if len(analysts) == 0 {
		return
	}

	load := map[int64]int{}
	for _, a := range analysts {
		var n int
		if err := db.Model(&models.Proposal{}).
			Where("assigned_analyst_id = ?", a.ID).
			Where("status in (?)", models.WorkloadStatuses()).
			Count(&n).Error; err != nil {
			log.Printf("sla worker: carga analista %d: %v", a.ID, err)
			return
		}
		load[a.ID] = n
	}

	var unassigned []models.Proposal
	if err := db.
		Where("assigned_analyst_id IS NULL").
		Where("status in (?)", models.WorkloadStatuses()).
		Order("submitted_at asc, id asc").
		Find(&unassigned).Error; err != nil {
		log.Printf("sla worker: propostas sem analista: %v", err)
		return
	}

	for i := range unassigned {
		sort.SliceStable(analysts, func(a, b int) bool {
			if load[analysts[a].ID] != load[analysts[b].ID] {
				return load[analysts[a].ID] < load[analysts[b].ID]
			}
			return analysts[a].ID < analysts[b].ID
		})
		chosen := analysts[0]

		if _, err := w.Lifecycle.Assign(db, unassigned[i].ID, chosen.ID, nil); err != nil {
			// Conflict significa corrida com um analista humano; segue o jogo
			if !errors.Is(err, lifecycle.ErrConflict) {
				log.Printf("sla worker: atribuição proposta %d: %v", unassigned[i].ID, err)
			}
			continue
		}
		load[chosen.ID]++
	}
}
