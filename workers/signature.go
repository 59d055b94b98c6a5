package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"filiacao/clicksign"
	"filiacao/lifecycle"
	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// EnvelopeCreator cria envelopes no provedor de assinatura
// (clicksign.Client em produção).
type EnvelopeCreator interface {
	CreateEnvelope(ctx context.Context, documentKey, signerName, signerEmail string) (clicksign.CreatedEnvelope, error)
}

type signaturePayload struct {
	ProposalID int64 `json:"proposal_id"`
	DocumentID int64 `json:"document_id"`
}

// SignatureCreator materializa o SIGNATURE_CREATE: cria o envelope na
// Clicksign, grava a linha local e manda o link pro filiado. A chamada ao
// provedor acontece antes da transação; se a gravação falhar, o retry cria
// outro envelope e o anterior morre por expiração no provedor.
type SignatureCreator struct {
	Lifecycle *lifecycle.Service
	Provider  EnvelopeCreator
}

func (s *SignatureCreator) Handle(ctx context.Context, db *gorm.DB, job *models.Job) error {
	var payload signaturePayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("signature payload: %w", err)
	}

	proposal, err := s.Lifecycle.FindProposal(db, payload.ProposalID)
	if err != nil {
		return err
	}
	if proposal.Status != models.PROPOSAL_STATUS_PENDING_SIGNATURE {
		// proposta saiu do estado entre o enqueue e a execução; nada a fazer
		return nil
	}

	var person models.Person
	if err := db.Where("proposal_id = ?", proposal.ID).First(&person).Error; err != nil {
		return err
	}
	var contract models.DocumentFile
	if err := db.Where("id = ? AND proposal_id = ?", payload.DocumentID, proposal.ID).First(&contract).Error; err != nil {
		return err
	}

	email, phone, err := s.Lifecycle.DecryptContact(&person)
	if err != nil {
		return err
	}
	if email == "" {
		return fmt.Errorf("proposta %d sem email para assinatura", proposal.ID)
	}

	created, err := s.Provider.CreateEnvelope(ctx, contract.StorageKey, person.FullName, email)
	if err != nil {
		return err
	}

	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	envelope := models.SignatureEnvelope{
		ProposalID: proposal.ID,
		ExternalID: created.ExternalID,
		Status:     models.ENVELOPE_STATUS_SENT,
		SignURL:    created.SignURL,
	}
	if err := tx.Create(&envelope).Error; err != nil {
		tx.Rollback()
		return err
	}

	notifData := map[string]string{
		"protocolo": proposal.Protocol,
		"nome":      person.FullName,
		"url":       created.SignURL,
	}
	if err := s.Lifecycle.QueueNotification(tx, proposal, models.NOTIFICATION_CHANNEL_EMAIL, email, "assinatura_link", notifData); err != nil {
		tx.Rollback()
		return err
	}
	if phone != "" {
		if err := s.Lifecycle.QueueNotification(tx, proposal, models.NOTIFICATION_CHANNEL_WHATSAPP, phone, "assinatura_link", notifData); err != nil {
			tx.Rollback()
			return err
		}
	}

	meta := map[string]any{"envelope_id": created.ExternalID, "document_id": contract.ID}
	if err := s.Lifecycle.WriteAudit(tx, models.AUDIT_ACTION_SIGNATURE_SENT, "Proposal", proposal.ID, nil, "", meta); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
