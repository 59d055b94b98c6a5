package social

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"filiacao/config"
	"filiacao/jobs"
	"filiacao/lifecycle"
	"filiacao/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

/************************************************
/**** MARK: TEST HARNESS ****/
/************************************************/

// fakeProvider substitui a rede no fluxo do Linker.
type fakeProvider struct {
	name        string
	exchangeErr error
	profileErr  error
	token       Token
	profile     Profile
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) BuildAuthorizeURL(creds config.OAuthProvider, state string) string {
	return "https://provider.example.org/auth?state=" + state
}

func (f *fakeProvider) ExchangeCode(ctx context.Context, client *http.Client, creds config.OAuthProvider, code string) (Token, error) {
	if f.exchangeErr != nil {
		return Token{}, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeProvider) FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error) {
	if f.profileErr != nil {
		return Profile{}, f.profileErr
	}
	return f.profile, nil
}

func testLinker(t *testing.T) (*Linker, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.LogMode(false)
	// :memory: é por conexão, então o pool precisa ficar em uma só
	db.DB().SetMaxOpenConns(1)
	db.AutoMigrate(
		&models.Proposal{}, &models.Person{}, &models.SocialAccount{},
		&models.StatusHistory{}, &models.AuditLog{}, &models.Notification{}, &models.Job{},
	)
	t.Cleanup(func() { db.Close() })

	var cfg config.Configuration
	cfg.PublicBaseURL = "https://filiacao.example.org"
	cfg.Security.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x2a}, 32))
	cfg.Security.SearchHashKey = "hash-key"
	cfg.Security.OAuthStateSecret = "segredo-do-state"
	cfg.Social.StateTtlMinutes = 15
	cfg.Social.ErrorRedirect = "https://filiacao.example.org/filiacao/erro"
	cfg.Social.Providers = map[string]config.OAuthProvider{
		models.SOCIAL_PROVIDER_GOOGLE: {
			ClientID:     "client-1",
			ClientSecret: "secret-1",
			RedirectURL:  "https://filiacao.example.org/social/callback",
		},
	}

	svc, err := lifecycle.NewService(cfg, &jobs.MemoryGateway{})
	if err != nil {
		t.Fatal(err)
	}
	return NewLinker(svc, cfg), db
}

func seedProposalWithPerson(t *testing.T, db *gorm.DB) (*models.Proposal, *models.Person) {
	t.Helper()
	p := models.Proposal{
		Protocol:    "12344321",
		Status:      models.PROPOSAL_STATUS_UNDER_REVIEW,
		Type:        models.PROPOSAL_TYPE_NOVO,
		PublicToken: "tok-" + fmt.Sprint(time.Now().UnixNano()),
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatal(err)
	}
	person := models.Person{
		ProposalID:  p.ID,
		FullName:    "Maria da Silva",
		CpfCipher:   "cifra-cpf",
		CpfHash:     "hash-cpf",
		EmailCipher: "cifra-email",
		EmailHash:   "hash-email",
	}
	if err := db.Create(&person).Error; err != nil {
		t.Fatal(err)
	}
	return &p, &person
}

func socialCount(t *testing.T, db *gorm.DB, personID int64) int {
	t.Helper()
	var n int
	if err := db.Model(&models.SocialAccount{}).Where("person_id = ?", personID).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

/************************************************
/**** MARK: AUTHORIZE ****/
/************************************************/

func TestAuthorizeURLSignsState(t *testing.T) {
	linker, db := testLinker(t)
	proposal, _ := seedProposalWithPerson(t, db)

	raw, err := linker.AuthorizeURL(db, models.SOCIAL_PROVIDER_GOOGLE, proposal.PublicToken)
	if err != nil {
		t.Fatal(err)
	}

	idx := strings.Index(raw, "state=")
	if idx < 0 {
		t.Fatalf("redirect sem state: %s", raw)
	}
	state := raw[idx+len("state="):]
	if amp := strings.Index(state, "&"); amp >= 0 {
		state = state[:amp]
	}
	payload, err := VerifyState([]byte("segredo-do-state"), state, 15*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("state do authorize não verifica: %v", err)
	}
	if payload.Provider != models.SOCIAL_PROVIDER_GOOGLE || payload.ProposalID != proposal.ID {
		t.Fatalf("payload=%+v", payload)
	}
}

func TestAuthorizeURLDisabledProvider(t *testing.T) {
	linker, db := testLinker(t)
	proposal, _ := seedProposalWithPerson(t, db)

	// linkedin está registrado mas sem credenciais na configuração
	if _, err := linker.AuthorizeURL(db, models.SOCIAL_PROVIDER_LINKEDIN, proposal.PublicToken); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

/************************************************
/**** MARK: CALLBACK ****/
/************************************************/

func TestCallbackLinksAccount(t *testing.T) {
	linker, db := testLinker(t)
	proposal, person := seedProposalWithPerson(t, db)

	linker.RegisterProvider(&fakeProvider{
		name:    models.SOCIAL_PROVIDER_GOOGLE,
		token:   Token{AccessToken: "tok-acesso", ExpiresIn: 3600},
		profile: Profile{ID: "g-123", Name: "Maria", ProfileURL: "https://plus.example.org/maria"},
	})

	state := SignState([]byte("segredo-do-state"), models.SOCIAL_PROVIDER_GOOGLE, proposal.ID, time.Now())
	redirect := linker.HandleCallback(db, models.SOCIAL_PROVIDER_GOOGLE, "code-1", state, "")

	want := "https://filiacao.example.org/filiacao/acompanhar/" + proposal.PublicToken + "?social=google"
	if redirect != want {
		t.Fatalf("redirect = %s", redirect)
	}

	var account models.SocialAccount
	if err := db.Where("person_id = ?", person.ID).First(&account).Error; err != nil {
		t.Fatal(err)
	}
	if account.ProviderUserID != "g-123" || account.DisplayName != "Maria" {
		t.Fatalf("account=%+v", account)
	}
	if account.AccessTokenCipher == "" || account.AccessTokenCipher == "tok-acesso" {
		t.Fatal("token deveria estar cifrado")
	}
	if account.TokenExpiresAt == nil {
		t.Fatal("token_expires_at ausente")
	}

	var audit models.AuditLog
	if err := db.Where("action = ?", models.AUDIT_ACTION_SOCIAL_LINKED).First(&audit).Error; err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(audit.Metadata, "provider_user_id") {
		t.Fatalf("metadata = %s", audit.Metadata)
	}
	if strings.Contains(audit.Metadata, "tok-acesso") {
		t.Fatal("token de acesso vazou pra auditoria")
	}
}

func TestCallbackReplacesExistingLink(t *testing.T) {
	linker, db := testLinker(t)
	proposal, person := seedProposalWithPerson(t, db)

	linker.RegisterProvider(&fakeProvider{
		name:    models.SOCIAL_PROVIDER_GOOGLE,
		token:   Token{AccessToken: "tok-novo"},
		profile: Profile{ID: "g-novo"},
	})

	old := models.SocialAccount{
		PersonID:          person.ID,
		Provider:          models.SOCIAL_PROVIDER_GOOGLE,
		ProviderUserID:    "g-antigo",
		AccessTokenCipher: "cifra-antiga",
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}

	state := SignState([]byte("segredo-do-state"), models.SOCIAL_PROVIDER_GOOGLE, proposal.ID, time.Now())
	linker.HandleCallback(db, models.SOCIAL_PROVIDER_GOOGLE, "code-1", state, "")

	if n := socialCount(t, db, person.ID); n != 1 {
		t.Fatalf("esperava 1 vínculo, achou %d", n)
	}
	var account models.SocialAccount
	if err := db.Where("person_id = ?", person.ID).First(&account).Error; err != nil {
		t.Fatal(err)
	}
	if account.ProviderUserID != "g-novo" {
		t.Fatalf("vínculo antigo não foi trocado: %+v", account)
	}
}

func TestCallbackExpiredState(t *testing.T) {
	linker, db := testLinker(t)
	proposal, person := seedProposalWithPerson(t, db)

	linker.RegisterProvider(&fakeProvider{
		name:  models.SOCIAL_PROVIDER_GOOGLE,
		token: Token{AccessToken: "tok"},
	})

	issued := time.Now().Add(-16 * time.Minute)
	state := SignState([]byte("segredo-do-state"), models.SOCIAL_PROVIDER_GOOGLE, proposal.ID, issued)
	redirect := linker.HandleCallback(db, models.SOCIAL_PROVIDER_GOOGLE, "code-1", state, "")

	if !strings.Contains(redirect, "erro=invalid_state") {
		t.Fatalf("redirect = %s", redirect)
	}
	if n := socialCount(t, db, person.ID); n != 0 {
		t.Fatalf("state expirado não pode criar vínculo, achou %d", n)
	}
}

func TestCallbackFailureRedirects(t *testing.T) {
	linker, db := testLinker(t)
	proposal, person := seedProposalWithPerson(t, db)

	validState := func() string {
		return SignState([]byte("segredo-do-state"), models.SOCIAL_PROVIDER_GOOGLE, proposal.ID, time.Now())
	}
	otherState := SignState([]byte("segredo-do-state"), models.SOCIAL_PROVIDER_FACEBOOK, proposal.ID, time.Now())

	cases := []struct {
		name     string
		provider string
		state    string
		oauthErr string
		exchange error
		reason   string
	}{
		{"negado no provedor", models.SOCIAL_PROVIDER_GOOGLE, validState(), "access_denied", nil, "erro=oauth_denied"},
		{"state adulterado", models.SOCIAL_PROVIDER_GOOGLE, validState() + "x", "", nil, "erro=invalid_state"},
		{"state de outro provedor", models.SOCIAL_PROVIDER_GOOGLE, otherState, "", nil, "erro=invalid_state"},
		{"provedor sem credenciais", models.SOCIAL_PROVIDER_FACEBOOK, otherState, "", nil, "erro=provider_disabled"},
		{"troca de código falha", models.SOCIAL_PROVIDER_GOOGLE, validState(), "", errors.New("boom"), "erro=exchange_failed"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			linker.RegisterProvider(&fakeProvider{
				name:        models.SOCIAL_PROVIDER_GOOGLE,
				exchangeErr: c.exchange,
				token:       Token{AccessToken: "tok"},
			})
			redirect := linker.HandleCallback(db, c.provider, "code-1", c.state, c.oauthErr)
			if !strings.Contains(redirect, c.reason) {
				t.Fatalf("redirect = %s, esperava %s", redirect, c.reason)
			}
			if n := socialCount(t, db, person.ID); n != 0 {
				t.Fatalf("fracasso não pode deixar vínculo, achou %d", n)
			}
		})
	}
}

func TestCallbackProfileFailureStillLinks(t *testing.T) {
	linker, db := testLinker(t)
	proposal, person := seedProposalWithPerson(t, db)

	linker.RegisterProvider(&fakeProvider{
		name:       models.SOCIAL_PROVIDER_GOOGLE,
		token:      Token{AccessToken: "tok-acesso"},
		profileErr: errors.New("perfil indisponível"),
	})

	state := SignState([]byte("segredo-do-state"), models.SOCIAL_PROVIDER_GOOGLE, proposal.ID, time.Now())
	redirect := linker.HandleCallback(db, models.SOCIAL_PROVIDER_GOOGLE, "code-1", state, "")

	if !strings.Contains(redirect, "?social=google") {
		t.Fatalf("redirect = %s", redirect)
	}
	var account models.SocialAccount
	if err := db.Where("person_id = ?", person.ID).First(&account).Error; err != nil {
		t.Fatal(err)
	}
	if account.ProviderUserID != "" || account.AccessTokenCipher == "" {
		t.Fatalf("account=%+v", account)
	}
}

/************************************************
/**** MARK: DISCONNECT ****/
/************************************************/

func TestDisconnect(t *testing.T) {
	linker, db := testLinker(t)
	proposal, person := seedProposalWithPerson(t, db)

	account := models.SocialAccount{
		PersonID:          person.ID,
		Provider:          models.SOCIAL_PROVIDER_GOOGLE,
		AccessTokenCipher: "cifra",
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatal(err)
	}

	if err := linker.Disconnect(db, models.SOCIAL_PROVIDER_GOOGLE, proposal.PublicToken); err != nil {
		t.Fatal(err)
	}
	if n := socialCount(t, db, person.ID); n != 0 {
		t.Fatalf("vínculo sobrou após disconnect: %d", n)
	}

	var audit models.AuditLog
	if err := db.Where("action = ?", models.AUDIT_ACTION_SOCIAL_UNLINKED).First(&audit).Error; err != nil {
		t.Fatal(err)
	}

	// desconectar de novo sem vínculo
	if err := linker.Disconnect(db, models.SOCIAL_PROVIDER_GOOGLE, proposal.PublicToken); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
