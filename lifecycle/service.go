package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"filiacao/config"
	"filiacao/jobs"
	"filiacao/models"
	"filiacao/tools"

	"github.com/jinzhu/gorm"
)

// EnvelopeCanceler cancela um envelope no provedor de assinatura (best
// effort, fora da transação). Implementado pelo client da Clicksign.
type EnvelopeCanceler interface {
	CancelEnvelope(ctx context.Context, externalID string) error
}

// Service é a máquina de estados da proposta. Toda operação que muda status
// roda numa transação só: precondição, escrita do status com checagem de
// versão, exatamente uma linha de StatusHistory e uma de AuditLog.
type Service struct {
	cfg     config.Configuration
	encKey  []byte
	hashKey []byte
	jobs    jobs.Gateway

	// Canceler é opcional; sem ele o cancelamento remoto é pulado.
	Canceler EnvelopeCanceler
}

func NewService(cfg config.Configuration, gateway jobs.Gateway) (*Service, error) {
	key, ok := cfg.EncryptionKeyBytes()
	if !ok {
		return nil, fmt.Errorf("encryption_key ausente ou inválida (32 bytes base64)")
	}
	hashKey := []byte(cfg.Security.SearchHashKey)
	if len(hashKey) == 0 {
		return nil, fmt.Errorf("search_hash_key ausente")
	}
	return &Service{cfg: cfg, encKey: key, hashKey: hashKey, jobs: gateway}, nil
}

func (s *Service) Config() config.Configuration { return s.cfg }

// TrackingURL monta o link assinado de acompanhamento enviado ao filiado.
func (s *Service) TrackingURL(p *models.Proposal) string {
	return s.cfg.PublicBaseURL + "/filiacao/acompanhar/" + p.PublicToken
}

// FindProposal carrega a proposta ou devolve NotFound.
func (s *Service) FindProposal(db *gorm.DB, id int64) (*models.Proposal, error) {
	var p models.Proposal
	if err := db.First(&p, id).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFoundf("proposta %d", id)
		}
		return nil, err
	}
	return &p, nil
}

// FindProposalByPublicToken resolve a proposta da tela de acompanhamento.
func (s *Service) FindProposalByPublicToken(db *gorm.DB, token string) (*models.Proposal, error) {
	var p models.Proposal
	if err := db.Where("public_token = ?", token).First(&p).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFoundf("proposta")
		}
		return nil, err
	}
	return &p, nil
}

// FindPersonByCPF busca por igualdade via hash (nunca decifra para comparar).
func (s *Service) FindPersonByCPF(db *gorm.DB, cpf string) (*models.Person, error) {
	hash := tools.SearchHash(s.hashKey, tools.NormalizeDigits(cpf))
	var person models.Person
	if err := db.Where("cpf_hash = ?", hash).First(&person).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFoundf("pessoa com esse CPF")
		}
		return nil, err
	}
	return &person, nil
}

// Transition aplica uma transição (ou uma anotação com status inalterado)
// dentro da transação tx. Usa checagem otimista de versão: dois escritores
// concorrentes na mesma proposta fazem o segundo falhar com Conflict.
// extra são colunas adicionais (signed_at, rejected_at...).
func (s *Service) Transition(tx *gorm.DB, p *models.Proposal, toStatus, reason string, actorID *int64, extra map[string]any) error {
	from := p.Status

	updates := map[string]any{
		"status":  toStatus,
		"version": p.Version + 1,
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&models.Proposal{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("proposta %d mudou durante a operação: %w", p.ID, ErrConflict)
	}

	history := models.StatusHistory{
		ProposalID: p.ID,
		FromStatus: from,
		ToStatus:   toStatus,
		Reason:     reason,
		ActorID:    actorID,
	}
	if err := tx.Create(&history).Error; err != nil {
		return err
	}

	p.Status = toStatus
	p.Version++
	return nil
}

// WriteAudit grava uma linha imutável de auditoria. metadata vira JSON.
func (s *Service) WriteAudit(tx *gorm.DB, action, entityType string, entityID int64, actorID *int64, eventID string, metadata any) error {
	body, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("audit metadata: %w", err)
	}
	entry := models.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		EventID:    eventID,
		Metadata:   string(body),
	}
	return tx.Create(&entry).Error
}

func (s *Service) encryptWithHash(plain, normalized string) (string, string, error) {
	c, err := tools.EncryptField(s.encKey, plain)
	if err != nil {
		return "", "", err
	}
	return c, tools.SearchHash(s.hashKey, normalized), nil
}

// EncryptToken cifra material de token (OAuth) com a chave de PII.
func (s *Service) EncryptToken(plain string) (string, error) {
	return tools.EncryptField(s.encKey, plain)
}

// DecryptContact devolve email e telefone em claro para montar notificações.
func (s *Service) DecryptContact(person *models.Person) (email string, phone string, err error) {
	if person.EmailCipher != "" {
		email, err = tools.DecryptField(s.encKey, person.EmailCipher)
		if err != nil {
			return "", "", err
		}
	}
	if person.PhoneCipher != "" {
		phone, err = tools.DecryptField(s.encKey, person.PhoneCipher)
		if err != nil {
			return "", "", err
		}
	}
	return email, phone, nil
}

// QueueNotification expõe o enfileiramento de notificações para os workers
// (o link de assinatura, por exemplo, só existe depois do envelope criado).
func (s *Service) QueueNotification(tx *gorm.DB, p *models.Proposal, channel, to, templateKey string, data map[string]string) error {
	return s.notifyApplicant(tx, p, channel, to, templateKey, data)
}

// notifyApplicant decide o "que" notificar: grava a linha de Notification e
// enfileira o NOTIFICATION_SEND. A entrega em si é do worker.
func (s *Service) notifyApplicant(tx *gorm.DB, p *models.Proposal, channel, to, templateKey string, data map[string]string) error {
	if to == "" {
		return nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	notif := models.Notification{
		ProposalID:   p.ID,
		Channel:      channel,
		TemplateKey:  templateKey,
		TemplateData: string(body),
		Status:       models.NOTIFICATION_STATUS_QUEUED,
	}
	if err := tx.Create(&notif).Error; err != nil {
		return err
	}

	payload := map[string]any{
		"notification_id": notif.ID,
		"proposal_id":     p.ID,
		"channel":         channel,
		"to":              to,
		"template_key":    templateKey,
		"template_data":   data,
	}
	_, err = s.jobs.Enqueue(tx, models.JOB_KIND_NOTIFICATION_SEND, payload, jobs.Options{})
	return err
}

// loadPerson exige que a proposta tenha Person (precondição de várias ações).
func loadPerson(tx *gorm.DB, proposalID int64) (*models.Person, error) {
	var person models.Person
	if err := tx.Where("proposal_id = ?", proposalID).First(&person).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, validationf("proposta %d sem dados pessoais", proposalID)
		}
		return nil, err
	}
	return &person, nil
}

func nowPtr() *time.Time {
	t := time.Now()
	return &t
}
