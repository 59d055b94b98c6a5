package clicksign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"filiacao/lifecycle"
	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// Reconciler ingere os webhooks da Clicksign e os aplica na máquina de
// estados da proposta. Entrega é at-least-once: a checagem de idempotência
// roda dentro da mesma transação da mutação.
type Reconciler struct {
	Lifecycle *lifecycle.Service
	// Secret vazio aceita requisição sem assinatura (modo permissivo para
	// ambientes de dev/homolog; documentado, não é um esquecimento).
	Secret string
}

// Result é a resposta do endpoint de webhook. O provedor só precisa de um
// 200; os campos extras ajudam no debug.
type Result struct {
	OK         bool   `json:"ok"`
	Duplicated bool   `json:"duplicated,omitempty"`
	Note       string `json:"note,omitempty"`
}

// VerifySignature valida o HMAC-SHA256 do corpo cru. Aceita o digest em hex
// ou base64, com ou sem prefixo sha256=/v1=.
func (r *Reconciler) VerifySignature(header string, rawBody []byte) bool {
	if r.Secret == "" {
		return true
	}

	sig := strings.TrimSpace(header)
	sig = strings.TrimPrefix(sig, "sha256=")
	sig = strings.TrimPrefix(sig, "v1=")
	if sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(r.Secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	if decoded, err := hex.DecodeString(sig); err == nil {
		return hmac.Equal(decoded, expected)
	}
	if decoded, err := base64.StdEncoding.DecodeString(sig); err == nil {
		return hmac.Equal(decoded, expected)
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(sig); err == nil {
		return hmac.Equal(decoded, expected)
	}
	return false
}

/************************************************
/**** MARK: EVENT VOCABULARY ****/
/************************************************/

// outcome é o efeito mapeado de um tipo de evento.
type outcome struct {
	proposalStatus string // vazio = proposta não muda
	envelopeStatus string
}

var eventOutcomes = map[string]outcome{
	"close":           {models.PROPOSAL_STATUS_SIGNED, models.ENVELOPE_STATUS_SIGNED},
	"document_closed": {models.PROPOSAL_STATUS_SIGNED, models.ENVELOPE_STATUS_SIGNED},
	"signed":          {models.PROPOSAL_STATUS_SIGNED, models.ENVELOPE_STATUS_SIGNED},
	"completed":       {models.PROPOSAL_STATUS_SIGNED, models.ENVELOPE_STATUS_SIGNED},

	"refusal":  {models.PROPOSAL_STATUS_REJECTED, models.ENVELOPE_STATUS_CANCELED},
	"canceled": {models.PROPOSAL_STATUS_REJECTED, models.ENVELOPE_STATUS_CANCELED},
	"cancel":   {models.PROPOSAL_STATUS_REJECTED, models.ENVELOPE_STATUS_CANCELED},
	"declined": {models.PROPOSAL_STATUS_REJECTED, models.ENVELOPE_STATUS_CANCELED},

	"expired":  {models.PROPOSAL_STATUS_REJECTED, models.ENVELOPE_STATUS_EXPIRED},
	"deadline": {models.PROPOSAL_STATUS_REJECTED, models.ENVELOPE_STATUS_EXPIRED},

	"sign":    {"", models.ENVELOPE_STATUS_SENT},
	"running": {"", models.ENVELOPE_STATUS_SENT},
}

// Process aplica um webhook já autenticado. Anomalias (payload sem os campos
// esperados, envelope desconhecido, tipo de evento estranho) viram nota de
// auditoria e sucesso: falhar aqui só entope a fila de entrega do provedor.
func (r *Reconciler) Process(db *gorm.DB, rawBody []byte) (Result, error) {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		payload = map[string]any{}
	}

	eventID := ExtractEventID(payload, rawBody)
	eventType := ExtractEventType(payload)
	envelopeID := ExtractEnvelopeID(payload)

	tx := db.Begin()
	if tx.Error != nil {
		return Result{}, tx.Error
	}

	// idempotência: mesma transação da mutação, senão duas entregas
	// simultâneas do mesmo evento passam as duas pela checagem
	var prior models.AuditLog
	err := tx.Where("action = ? AND event_id = ?", models.AUDIT_ACTION_CLICKSIGN_WEBHOOK, eventID).
		First(&prior).Error
	if err == nil {
		tx.Rollback()
		return Result{OK: true, Duplicated: true}, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		tx.Rollback()
		return Result{}, err
	}

	note := ""
	var proposalID int64

	switch {
	case envelopeID == "" || eventType == "":
		note = "payload sem envelope_id/event_type"
	default:
		var envelope models.SignatureEnvelope
		err := tx.Where("external_id = ?", envelopeID).Order("created_at desc").First(&envelope).Error
		if gorm.IsRecordNotFoundError(err) {
			note = "envelope desconhecido: " + envelopeID
		} else if err != nil {
			tx.Rollback()
			return Result{}, err
		} else {
			proposalID = envelope.ProposalID
			mapped, known := eventOutcomes[strings.ToLower(strings.TrimSpace(eventType))]
			if !known {
				note = "evento não mapeado: " + eventType
			} else if applyNote, err := r.apply(tx, &envelope, eventType, mapped); err != nil {
				tx.Rollback()
				return Result{}, err
			} else {
				note = applyNote
			}
		}
	}

	// exatamente uma linha de auditoria por evento não duplicado; é nela
	// que a próxima entrega do mesmo eventId vai bater
	meta := map[string]any{
		"eventId":   eventID,
		"eventType": eventType,
		"payload":   json.RawMessage(rawBody),
	}
	if note != "" {
		meta["note"] = note
	}
	if err := r.Lifecycle.WriteAudit(tx, models.AUDIT_ACTION_CLICKSIGN_WEBHOOK, "Proposal", proposalID, nil, eventID, meta); err != nil {
		tx.Rollback()
		return Result{}, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return Result{}, err
	}
	return Result{OK: true, Note: note}, nil
}

// apply muta envelope e proposta conforme o evento mapeado. Só envelope
// SENT transiciona: depois de um reenvio, o cancelamento remoto do envelope
// antigo ainda gera evento "canceled" e ele não pode derrubar a proposta.
func (r *Reconciler) apply(tx *gorm.DB, envelope *models.SignatureEnvelope, eventType string, mapped outcome) (string, error) {
	if envelope.Status != models.ENVELOPE_STATUS_SENT {
		return "envelope " + envelope.ExternalID + " em " + envelope.Status + ", evento ignorado", nil
	}

	now := time.Now()

	envUpdates := map[string]any{"status": mapped.envelopeStatus}
	switch mapped.envelopeStatus {
	case models.ENVELOPE_STATUS_SIGNED:
		envUpdates["signed_at"] = &now
	case models.ENVELOPE_STATUS_CANCELED:
		envUpdates["canceled_at"] = &now
	}
	if err := tx.Model(envelope).Updates(envUpdates).Error; err != nil {
		return "", err
	}

	if mapped.proposalStatus == "" {
		return "", nil
	}

	proposal, err := r.Lifecycle.FindProposal(tx, envelope.ProposalID)
	if err != nil {
		return "", err
	}
	if proposal.Status != models.PROPOSAL_STATUS_PENDING_SIGNATURE {
		// evento chegou fora de hora (ex.: reenvio depois de rejeição
		// manual); o envelope já foi atualizado, a proposta fica como está
		return "proposta em " + proposal.Status + ", transição ignorada", nil
	}

	extra := map[string]any{}
	if mapped.proposalStatus == models.PROPOSAL_STATUS_SIGNED {
		extra["signed_at"] = &now
	}
	if mapped.proposalStatus == models.PROPOSAL_STATUS_REJECTED {
		extra["rejected_at"] = &now
	}

	reason := "Clicksign: " + eventType
	if err := r.Lifecycle.Transition(tx, proposal, mapped.proposalStatus, reason, nil, extra); err != nil {
		return "", err
	}
	return "", nil
}
