package social

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"filiacao/config"
	"filiacao/lifecycle"
	"filiacao/models"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: REDIRECT REASON CODES ****/
/************************************************/
// Códigos opacos que vão no redirect de erro, nunca o corpo cru do provedor.
const (
	REASON_INVALID_STATE     = "invalid_state"
	REASON_OAUTH_DENIED      = "oauth_denied"
	REASON_PROVIDER_DISABLED = "provider_disabled"
	REASON_EXCHANGE_FAILED   = "exchange_failed"
	REASON_NOT_FOUND         = "not_found"
	REASON_INTERNAL          = "internal"
)

// auditProfileFields é a allow-list do que pode ir em claro para a
// auditoria. Qualquer outro campo do perfil não vaza para o log.
func auditProfileFields(p Profile) map[string]any {
	return map[string]any{
		"provider_user_id": p.ID,
		"display_name":     p.Name,
		"profile_url":      p.ProfileURL,
	}
}

// Linker conduz o fluxo OAuth de prova social: authorize → callback →
// troca de código → perfil → vínculo transacional.
type Linker struct {
	Lifecycle  *lifecycle.Service
	HTTPClient *http.Client

	cfg       config.Configuration
	providers map[string]Provider
}

func NewLinker(svc *lifecycle.Service, cfg config.Configuration) *Linker {
	return &Linker{
		Lifecycle:  svc,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		providers: map[string]Provider{
			models.SOCIAL_PROVIDER_GOOGLE:    &GoogleProvider{},
			models.SOCIAL_PROVIDER_FACEBOOK:  &FacebookProvider{},
			models.SOCIAL_PROVIDER_INSTAGRAM: &InstagramProvider{},
			models.SOCIAL_PROVIDER_LINKEDIN:  &LinkedinProvider{},
		},
	}
}

// RegisterProvider troca a implementação de um provedor (testes).
func (l *Linker) RegisterProvider(p Provider) {
	l.providers[p.Name()] = p
}

func (l *Linker) stateTTL() time.Duration {
	return time.Duration(l.cfg.Social.StateTtlMinutes) * time.Minute
}

func (l *Linker) stateSecret() []byte {
	return []byte(l.cfg.Security.OAuthStateSecret)
}

// credentials devolve as credenciais do provedor; ausência desabilita.
func (l *Linker) credentials(name string) (config.OAuthProvider, Provider, bool) {
	p, ok := l.providers[name]
	if !ok {
		return config.OAuthProvider{}, nil, false
	}
	creds, ok := l.cfg.Social.Providers[name]
	if !ok || creds.ClientID == "" || creds.ClientSecret == "" || creds.RedirectURL == "" {
		return config.OAuthProvider{}, nil, false
	}
	return creds, p, true
}

// AuthorizeURL monta o redirect para o provedor com o state assinado. O
// filiado autoriza a partir da tela de acompanhamento (token público).
func (l *Linker) AuthorizeURL(db *gorm.DB, providerName, publicToken string) (string, error) {
	creds, provider, ok := l.credentials(providerName)
	if !ok {
		return "", lifecycle.ErrNotFound
	}

	proposal, err := l.Lifecycle.FindProposalByPublicToken(db, publicToken)
	if err != nil {
		return "", err
	}

	state := SignState(l.stateSecret(), providerName, proposal.ID, time.Now())
	return provider.BuildAuthorizeURL(creds, state), nil
}

// HandleCallback processa o retorno do provedor. Nunca devolve erro pro
// navegador: todo caminho termina num redirect, com código de motivo opaco
// nos fracassos.
func (l *Linker) HandleCallback(db *gorm.DB, providerName, code, stateToken, oauthErr string) string {
	if oauthErr != "" {
		return l.errorRedirect(REASON_OAUTH_DENIED)
	}

	state, err := VerifyState(l.stateSecret(), stateToken, l.stateTTL(), time.Now())
	if err != nil {
		return l.errorRedirect(REASON_INVALID_STATE)
	}
	if state.Provider != providerName {
		return l.errorRedirect(REASON_INVALID_STATE)
	}

	creds, provider, ok := l.credentials(providerName)
	if !ok {
		return l.errorRedirect(REASON_PROVIDER_DISABLED)
	}

	proposal, err := l.Lifecycle.FindProposal(db, state.ProposalID)
	if err != nil {
		return l.errorRedirect(REASON_NOT_FOUND)
	}
	var person models.Person
	if err := db.Where("proposal_id = ?", proposal.ID).First(&person).Error; err != nil {
		return l.errorRedirect(REASON_NOT_FOUND)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := provider.ExchangeCode(ctx, l.httpClient(), creds, code)
	if err != nil {
		log.Printf("social: token exchange %s falhou: %v", providerName, err)
		return l.errorRedirect(REASON_EXCHANGE_FAILED)
	}

	// perfil é best-effort: troca de código bem-sucedida sem perfil ainda
	// é um vínculo válido
	profile, err := provider.FetchProfile(ctx, l.httpClient(), token.AccessToken)
	if err != nil {
		log.Printf("social: fetch profile %s falhou (seguindo sem perfil): %v", providerName, err)
		profile = Profile{}
	}

	if err := l.linkAccount(db, proposal, &person, providerName, token, profile); err != nil {
		log.Printf("social: vínculo %s falhou: %v", providerName, err)
		return l.errorRedirect(REASON_INTERNAL)
	}

	return l.Lifecycle.TrackingURL(proposal) + "?social=" + url.QueryEscape(providerName)
}

// linkAccount troca transacionalmente o vínculo existente do provedor e
// grava a auditoria com o snapshot filtrado do perfil.
func (l *Linker) linkAccount(db *gorm.DB, proposal *models.Proposal, person *models.Person, providerName string, token Token, profile Profile) error {
	cipher, err := l.Lifecycle.EncryptToken(token.AccessToken)
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if token.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Where("person_id = ? AND provider = ?", person.ID, providerName).
		Delete(&models.SocialAccount{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	account := models.SocialAccount{
		PersonID:          person.ID,
		Provider:          providerName,
		ProviderUserID:    profile.ID,
		DisplayName:       profile.Name,
		ProfileURL:        profile.ProfileURL,
		AccessTokenCipher: cipher,
		TokenExpiresAt:    expiresAt,
	}
	if err := tx.Create(&account).Error; err != nil {
		tx.Rollback()
		return err
	}

	meta := map[string]any{
		"provider": providerName,
		"profile":  auditProfileFields(profile),
	}
	if err := l.Lifecycle.WriteAudit(tx, models.AUDIT_ACTION_SOCIAL_LINKED, "Proposal", proposal.ID, nil, "", meta); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

// Disconnect remove o vínculo do provedor para a proposta do token público.
func (l *Linker) Disconnect(db *gorm.DB, providerName, publicToken string) error {
	proposal, err := l.Lifecycle.FindProposalByPublicToken(db, publicToken)
	if err != nil {
		return err
	}
	var person models.Person
	if err := db.Where("proposal_id = ?", proposal.ID).First(&person).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return lifecycle.ErrNotFound
		}
		return err
	}

	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	res := tx.Where("person_id = ? AND provider = ?", person.ID, providerName).
		Delete(&models.SocialAccount{})
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return lifecycle.ErrNotFound
	}

	meta := map[string]any{"provider": providerName}
	if err := l.Lifecycle.WriteAudit(tx, models.AUDIT_ACTION_SOCIAL_UNLINKED, "Proposal", proposal.ID, nil, "", meta); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

func (l *Linker) errorRedirect(reason string) string {
	sep := "?"
	if strings.Contains(l.cfg.Social.ErrorRedirect, "?") {
		sep = "&"
	}
	return l.cfg.Social.ErrorRedirect + sep + "erro=" + url.QueryEscape(reason)
}

func (l *Linker) httpClient() *http.Client {
	if l.HTTPClient != nil {
		return l.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
