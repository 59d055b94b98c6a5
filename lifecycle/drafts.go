package lifecycle

import (
	"crypto/subtle"
	"encoding/json"
	"time"

	"filiacao/jobs"
	"filiacao/models"
	"filiacao/tools"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// CreateDraft abre um rascunho novo. O token cru só existe no retorno desta
// função: o banco guarda apenas o hash.
func (s *Service) CreateDraft(db *gorm.DB) (*models.Draft, string, error) {
	rawToken := tools.NewAccessToken()
	expires := time.Now().AddDate(0, 0, s.cfg.Drafts.TtlDays)

	draft := models.Draft{
		TokenHash: tools.HashToken(rawToken),
		Data:      "{}",
		ExpiresAt: &expires,
	}
	if err := db.Create(&draft).Error; err != nil {
		return nil, "", err
	}
	return &draft, rawToken, nil
}

// AuthenticateDraft carrega o rascunho e valida o token em tempo constante.
// Rascunho expirado se comporta como token inválido (Unauthorized).
func (s *Service) AuthenticateDraft(db *gorm.DB, id int64, rawToken string) (*models.Draft, error) {
	var draft models.Draft
	if err := db.First(&draft, id).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFoundf("rascunho %d", id)
		}
		return nil, err
	}

	expected := tools.HashToken(rawToken)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(draft.TokenHash)) != 1 {
		return nil, unauthorizedf("token do rascunho inválido")
	}
	if draft.Expired(time.Now()) {
		return nil, unauthorizedf("rascunho expirado")
	}
	return &draft, nil
}

// UpdateDraft faz merge raso do patch no saco de dados do rascunho.
func (s *Service) UpdateDraft(db *gorm.DB, id int64, rawToken string, patch map[string]any) (*models.Draft, error) {
	draft, err := s.AuthenticateDraft(db, id, rawToken)
	if err != nil {
		return nil, err
	}

	data := map[string]any{}
	if draft.Data != "" {
		if err := json.Unmarshal([]byte(draft.Data), &data); err != nil {
			data = map[string]any{}
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(data, k)
			continue
		}
		data[k] = v
	}

	merged, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if err := db.Model(draft).Update("data", string(merged)).Error; err != nil {
		return nil, err
	}
	draft.Data = string(merged)
	return draft, nil
}

// draftData é a forma esperada do saco de dados na hora do envio.
type draftData struct {
	FullName  string `json:"full_name"`
	Cpf       string `json:"cpf"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	Gender    string `json:"gender"`
	Type      string `json:"type"`

	Address *struct {
		Postal       string `json:"postal"`
		State        string `json:"state"`
		City         string `json:"city"`
		Neighborhood string `json:"neighborhood"`
		Street       string `json:"street"`
		Number       string `json:"number"`
		Complement   string `json:"complement"`
	} `json:"address"`

	Documents []struct {
		Kind        string `json:"kind"`
		StorageKey  string `json:"storage_key"`
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
	} `json:"documents"`
}

const protocolAttempts = 5

// SubmitDraft converte o rascunho na Proposal canônica: gera protocolo com
// retry limitado contra colisão, cifra a PII, dispara OCR e a notificação de
// recebimento, e apaga o rascunho, tudo numa transação.
func (s *Service) SubmitDraft(db *gorm.DB, id int64, rawToken string) (*models.Proposal, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	draft, err := s.AuthenticateDraft(tx, id, rawToken)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	var data draftData
	if err := json.Unmarshal([]byte(draft.Data), &data); err != nil {
		tx.Rollback()
		return nil, validationf("dados do rascunho ilegíveis")
	}

	if data.FullName == "" {
		tx.Rollback()
		return nil, validationf("full_name é obrigatório")
	}
	if !tools.ValidateCPF(data.Cpf) {
		tx.Rollback()
		return nil, validationf("cpf inválido")
	}
	if !tools.ValidateEmail(data.Email) {
		tx.Rollback()
		return nil, validationf("email inválido")
	}
	propType := data.Type
	if propType == "" {
		propType = models.PROPOSAL_TYPE_NOVO
	}
	if propType != models.PROPOSAL_TYPE_NOVO && propType != models.PROPOSAL_TYPE_MIGRACAO {
		tx.Rollback()
		return nil, validationf("type inválido: %s", propType)
	}

	phone := ""
	if data.Phone != "" {
		normalized, err := tools.NormalizePhone(data.Phone)
		if err != nil {
			tx.Rollback()
			return nil, validationf("telefone inválido")
		}
		phone = normalized
	}

	protocol, err := s.generateProtocol(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now()
	proposal := models.Proposal{
		Protocol:    protocol,
		Status:      models.PROPOSAL_STATUS_SUBMITTED,
		Type:        propType,
		PublicToken: uuid.NewString(),
		SubmittedAt: &now,
	}
	if err := tx.Create(&proposal).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	person, err := s.buildPerson(proposal.ID, data, phone)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(person).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if data.Address != nil {
		addr := models.Address{
			ProposalID:   proposal.ID,
			Postal:       data.Address.Postal,
			State:        data.Address.State,
			City:         data.Address.City,
			Neighborhood: data.Address.Neighborhood,
			Street:       data.Address.Street,
			Number:       data.Address.Number,
			Complement:   data.Address.Complement,
		}
		if err := tx.Create(&addr).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for _, d := range data.Documents {
		doc := models.DocumentFile{
			ProposalID:  proposal.ID,
			Kind:        d.Kind,
			StorageKey:  d.StorageKey,
			FileName:    d.FileName,
			ContentType: d.ContentType,
			SizeBytes:   d.SizeBytes,
		}
		if err := tx.Create(&doc).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		payload := map[string]any{"proposal_id": proposal.ID, "document_id": doc.ID, "storage_key": doc.StorageKey}
		if _, err := s.jobs.Enqueue(tx, models.JOB_KIND_OCR, payload, jobs.Options{}); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	history := models.StatusHistory{
		ProposalID: proposal.ID,
		FromStatus: "",
		ToStatus:   models.PROPOSAL_STATUS_SUBMITTED,
		Reason:     "Proposta recebida",
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	notifData := map[string]string{
		"protocolo": protocol,
		"nome":      data.FullName,
		"link":      s.TrackingURL(&proposal),
	}
	if err := s.notifyApplicant(tx, &proposal, models.NOTIFICATION_CHANNEL_EMAIL, tools.NormalizeEmail(data.Email), "filiacao_recebida", notifData); err != nil {
		tx.Rollback()
		return nil, err
	}
	if phone != "" {
		if err := s.notifyApplicant(tx, &proposal, models.NOTIFICATION_CHANNEL_WHATSAPP, phone, "filiacao_recebida", notifData); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	meta := map[string]any{"protocol": protocol, "draft_id": draft.ID, "type": propType}
	if err := s.WriteAudit(tx, models.AUDIT_ACTION_PROPOSAL_SUBMITTED, "Proposal", proposal.ID, nil, "", meta); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Delete(draft).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return &proposal, nil
}

func (s *Service) buildPerson(proposalID int64, data draftData, normalizedPhone string) (*models.Person, error) {
	cpfCipher, cpfHash, err := s.encryptWithHash(data.Cpf, tools.NormalizeDigits(data.Cpf))
	if err != nil {
		return nil, err
	}
	emailCipher, emailHash, err := s.encryptWithHash(data.Email, tools.NormalizeEmail(data.Email))
	if err != nil {
		return nil, err
	}

	person := models.Person{
		ProposalID:  proposalID,
		FullName:    data.FullName,
		Birthdate:   data.Birthdate,
		Gender:      data.Gender,
		CpfCipher:   cpfCipher,
		CpfHash:     cpfHash,
		EmailCipher: emailCipher,
		EmailHash:   emailHash,
	}
	if normalizedPhone != "" {
		phoneCipher, phoneHash, err := s.encryptWithHash(normalizedPhone, normalizedPhone)
		if err != nil {
			return nil, err
		}
		person.PhoneCipher = phoneCipher
		person.PhoneHash = phoneHash
	}
	return &person, nil
}

// generateProtocol tenta um número público de 8 dígitos até protocolAttempts
// vezes antes de desistir.
func (s *Service) generateProtocol(tx *gorm.DB) (string, error) {
	for i := 0; i < protocolAttempts; i++ {
		candidate := tools.RandomNumbers(8)
		var count int
		if err := tx.Model(&models.Proposal{}).Where("protocol = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", validationf("não foi possível gerar protocolo único após %d tentativas", protocolAttempts)
}
