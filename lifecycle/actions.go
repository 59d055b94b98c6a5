package lifecycle

import (
	"context"
	"log"
	"strings"
	"time"

	"filiacao/jobs"
	"filiacao/models"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Assign atribui um analista. Status não muda, mas o razão ganha uma linha
// com from == to (é assim que a análise de "tempo em status" enxerga a ação).
func (s *Service) Assign(db *gorm.DB, proposalID, analystID int64, actorID *int64) (*models.Proposal, error) {
	var analyst models.AdminUser
	if err := db.First(&analyst, analystID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFoundf("analista %d", analystID)
		}
		return nil, err
	}
	if !analyst.Active() {
		return nil, validationf("analista %s está bloqueado", analyst.Name)
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	reason := "Atribuída a " + analyst.Name
	if err := s.Transition(tx, p, p.Status, reason, actorID, map[string]any{"assigned_analyst_id": analystID}); err != nil {
		tx.Rollback()
		return nil, err
	}
	p.AssignedAnalystID = &analystID

	meta := map[string]any{"analyst_id": analystID, "analyst_name": analyst.Name}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_ASSIGNED, "Proposal", p.ID, actorID, "", meta); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}

// StartReview leva a proposta para UNDER_REVIEW (aceita de qualquer status
// não terminal; é o caminho de volta do PENDING_DOCS).
func (s *Service) StartReview(db *gorm.DB, proposalID int64, actorID *int64) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if p.IsTerminal() {
		tx.Rollback()
		return nil, validationf("proposta %s já está em status terminal %s", p.Protocol, p.Status)
	}

	if err := s.Transition(tx, p, models.PROPOSAL_STATUS_UNDER_REVIEW, "Análise iniciada", actorID, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_REVIEW_STARTED, "Proposal", p.ID, actorID, "", nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}

// RequestChanges manda a proposta para PENDING_DOCS e avisa o filiado com a
// lista de pendências e o link assinado de acompanhamento.
func (s *Service) RequestChanges(db *gorm.DB, proposalID int64, missingItems []string, actorID *int64) (*models.Proposal, error) {
	if len(missingItems) == 0 {
		return nil, validationf("lista de pendências vazia")
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	person, err := loadPerson(tx, p.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	reason := "Pendências solicitadas: " + strings.Join(missingItems, ", ")
	if err := s.Transition(tx, p, models.PROPOSAL_STATUS_PENDING_DOCS, reason, actorID, nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	email, phone, err := s.DecryptContact(person)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	notifData := map[string]string{
		"protocolo":  p.Protocol,
		"nome":       person.FullName,
		"pendencias": strings.Join(missingItems, "; "),
		"link":       s.TrackingURL(p),
	}
	if err := s.notifyApplicant(tx, p, models.NOTIFICATION_CHANNEL_EMAIL, email, "filiacao_pendencias", notifData); err != nil {
		tx.Rollback()
		return nil, err
	}
	if phone != "" {
		if err := s.notifyApplicant(tx, p, models.NOTIFICATION_CHANNEL_WHATSAPP, phone, "filiacao_pendencias", notifData); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	meta := map[string]any{"missing_items": missingItems}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_CHANGES_REQUESTED, "Proposal", p.ID, actorID, "", meta); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}

// Approve aprova o cadastro e pede a assinatura do contrato: gera o PDF em
// background (o worker encadeia a criação do envelope na Clicksign).
func (s *Service) Approve(db *gorm.DB, proposalID int64, actorID *int64) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if p.Status != models.PROPOSAL_STATUS_SUBMITTED && p.Status != models.PROPOSAL_STATUS_UNDER_REVIEW {
		tx.Rollback()
		return nil, validationf("proposta %s não pode ser aprovada em %s", p.Protocol, p.Status)
	}

	if err := s.Transition(tx, p, models.PROPOSAL_STATUS_PENDING_SIGNATURE, "Cadastro aprovado, aguardando assinatura", actorID, nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	requestID := uuid.NewString()
	payload := map[string]any{"proposal_id": p.ID, "purpose": "contrato"}
	if _, err := s.jobs.Enqueue(tx, models.JOB_KIND_PDF_RENDER, payload, jobs.Options{RequestID: requestID}); err != nil {
		tx.Rollback()
		return nil, err
	}

	meta := map[string]any{"request_id": requestID}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_APPROVED, "Proposal", p.ID, actorID, "", meta); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}

// Reject recusa a proposta e avisa o filiado.
func (s *Service) Reject(db *gorm.DB, proposalID int64, reason string, actorID *int64) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	person, err := loadPerson(tx, p.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if reason == "" {
		reason = "Proposta recusada"
	}
	now := time.Now()
	if err := s.Transition(tx, p, models.PROPOSAL_STATUS_REJECTED, reason, actorID, map[string]any{"rejected_at": &now}); err != nil {
		tx.Rollback()
		return nil, err
	}
	p.RejectedAt = &now

	email, phone, err := s.DecryptContact(person)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	notifData := map[string]string{
		"protocolo": p.Protocol,
		"nome":      person.FullName,
		"motivo":    reason,
	}
	if err := s.notifyApplicant(tx, p, models.NOTIFICATION_CHANNEL_EMAIL, email, "filiacao_recusada", notifData); err != nil {
		tx.Rollback()
		return nil, err
	}
	_ = phone // recusa vai só por email

	meta := map[string]any{"reason": reason}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_REJECTED, "Proposal", p.ID, actorID, "", meta); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}

// ResendSignatureLink cancela o envelope ativo e enfileira a criação de um
// novo. O status da proposta não muda.
func (s *Service) ResendSignatureLink(db *gorm.DB, proposalID int64, actorID *int64) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := loadPerson(tx, p.ID); err != nil {
		tx.Rollback()
		return nil, err
	}

	var contract models.DocumentFile
	err = tx.Where("proposal_id = ? AND kind = ?", p.ID, models.DOCUMENT_KIND_CONTRATO_PDF).
		Order("created_at desc").
		First(&contract).Error
	if err != nil {
		tx.Rollback()
		if gorm.IsRecordNotFoundError(err) {
			return nil, validationf("proposta %s ainda não tem contrato em PDF", p.Protocol)
		}
		return nil, err
	}

	// cancela o envelope ativo anterior, se houver
	var active models.SignatureEnvelope
	canceledExternalID := ""
	err = tx.Where("proposal_id = ? AND status = ?", p.ID, models.ENVELOPE_STATUS_SENT).
		Order("created_at desc").
		First(&active).Error
	if err == nil {
		now := time.Now()
		updates := map[string]any{"status": models.ENVELOPE_STATUS_CANCELED, "canceled_at": &now}
		if err := tx.Model(&active).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		canceledExternalID = active.ExternalID
	} else if !gorm.IsRecordNotFoundError(err) {
		tx.Rollback()
		return nil, err
	}

	requestID := uuid.NewString()
	payload := map[string]any{"proposal_id": p.ID, "document_id": contract.ID}
	if _, err := s.jobs.Enqueue(tx, models.JOB_KIND_SIGNATURE_CREATE, payload, jobs.Options{RequestID: requestID}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.Transition(tx, p, p.Status, "Link de assinatura reenviado", actorID, nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	meta := map[string]any{"request_id": requestID, "canceled_envelope": canceledExternalID}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_SIGNATURE_RESENT, "Proposal", p.ID, actorID, "", meta); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// cancelamento remoto fora da transação: se falhar, o envelope local já
	// está cancelado e o provedor expira o antigo sozinho
	if canceledExternalID != "" && s.Canceler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Canceler.CancelEnvelope(ctx, canceledExternalID); err != nil {
			log.Printf("lifecycle: cancelamento remoto do envelope %s falhou: %v", canceledExternalID, err)
		}
	}
	return p, nil
}

// ExportPDF enfileira uma geração avulsa de PDF. Sem linha de histórico;
// só auditoria.
func (s *Service) ExportPDF(db *gorm.DB, proposalID int64, actorID *int64) (string, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return "", tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return "", err
	}
	if _, err := loadPerson(tx, p.ID); err != nil {
		tx.Rollback()
		return "", err
	}

	requestID := uuid.NewString()
	payload := map[string]any{"proposal_id": p.ID, "purpose": "export"}
	if _, err := s.jobs.Enqueue(tx, models.JOB_KIND_PDF_RENDER, payload, jobs.Options{RequestID: requestID}); err != nil {
		tx.Rollback()
		return "", err
	}

	meta := map[string]any{"request_id": requestID}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PDF_EXPORTED, "Proposal", p.ID, actorID, "", meta); err != nil {
		tx.Rollback()
		return "", err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return "", err
	}
	return requestID, nil
}

// Homologate fecha o ciclo: proposta assinada vira filiação aprovada.
func (s *Service) Homologate(db *gorm.DB, proposalID int64, actorID *int64) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if p.Status != models.PROPOSAL_STATUS_SIGNED {
		tx.Rollback()
		return nil, validationf("proposta %s precisa estar assinada para homologar (atual: %s)", p.Protocol, p.Status)
	}
	person, err := loadPerson(tx, p.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.Transition(tx, p, models.PROPOSAL_STATUS_APPROVED, "Filiação homologada", actorID, nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	email, _, err := s.DecryptContact(person)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	notifData := map[string]string{"protocolo": p.Protocol, "nome": person.FullName}
	if err := s.notifyApplicant(tx, p, models.NOTIFICATION_CHANNEL_EMAIL, email, "filiacao_aprovada", notifData); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_HOMOLOGATED, "Proposal", p.ID, actorID, "", nil); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}

// Cancel é o status terminal defensivo (limpeza operacional).
func (s *Service) Cancel(db *gorm.DB, proposalID int64, reason string, actorID *int64) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	p, err := s.FindProposal(tx, proposalID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if p.IsTerminal() {
		tx.Rollback()
		return nil, validationf("proposta %s já está em status terminal %s", p.Protocol, p.Status)
	}

	if reason == "" {
		reason = "Cancelamento operacional"
	}
	if err := s.Transition(tx, p, models.PROPOSAL_STATUS_CANCELED, reason, actorID, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_CANCELED, "Proposal", p.ID, actorID, "", map[string]any{"reason": reason}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return p, nil
}
