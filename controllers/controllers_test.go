package controllers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filiacao/clicksign"
	"filiacao/config"
	"filiacao/controllers"
	dbpkg "filiacao/db"
	"filiacao/jobs"
	"filiacao/lifecycle"
	"filiacao/models"
	"filiacao/router"
	"filiacao/social"
	"filiacao/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

const testWebhookSecret = "segredo-webhook"

func apiConfig() config.Configuration {
	var cfg config.Configuration
	cfg.PublicBaseURL = "https://filiacao.example.org"
	cfg.Security.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x2a}, 32))
	cfg.Security.SearchHashKey = "hash-key"
	cfg.Security.WebhookSecret = testWebhookSecret
	cfg.Security.OAuthStateSecret = "segredo-do-state"
	cfg.Drafts.TtlDays = 30
	cfg.Sla.Days = 7
	cfg.Sla.DueSoonHours = 24
	return cfg
}

// newAPI sobe a API inteira (rotas reais, banco em memória) para os testes
// de ponta a ponta dos handlers.
func newAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.LogMode(false)
	// :memory: é por conexão, então o pool precisa ficar em uma só
	db.DB().SetMaxOpenConns(1)
	dbpkg.AutoMigrate(db)
	t.Cleanup(func() { db.Close() })

	cfg := apiConfig()
	svc, err := lifecycle.NewService(cfg, jobs.NewOutboxGateway(5, 30))
	if err != nil {
		t.Fatal(err)
	}
	reconciler := &clicksign.Reconciler{Lifecycle: svc, Secret: cfg.Security.WebhookSecret}
	controllers.Setup(svc, reconciler, social.NewLinker(svc, cfg))

	engine := gin.New()
	router.Initialize(engine, db)
	return engine, db
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("resposta não é JSON: %v (%s)", err, w.Body.String())
	}
	return out
}

func seedAdmin(t *testing.T, db *gorm.DB, name, role string, status int) (models.AdminUser, string) {
	t.Helper()
	rawToken := tools.NewAccessToken()
	admin := models.AdminUser{
		Name:      name,
		Email:     name + "@partido.org.br",
		Role:      role,
		Status:    status,
		TokenHash: tools.HashToken(rawToken),
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatal(err)
	}
	return admin, rawToken
}

// submitDraft percorre o fluxo público inteiro e devolve o corpo do submit.
func submitDraft(t *testing.T, engine *gin.Engine) map[string]any {
	t.Helper()

	created := decode(t, doJSON(t, engine, "POST", "/api/drafts", "", nil))
	draftID := int64(created["draft_id"].(float64))
	token := created["token"].(string)

	patch := map[string]any{
		"full_name": "Maria da Silva",
		"cpf":       "123.456.789-01",
		"email":     "maria@example.org",
	}
	if w := doJSON(t, engine, "PATCH", fmt.Sprintf("/api/drafts/%d", draftID), token, patch); w.Code != 200 {
		t.Fatalf("patch draft: %d (%s)", w.Code, w.Body.String())
	}

	w := doJSON(t, engine, "POST", fmt.Sprintf("/api/drafts/%d/submit", draftID), token, nil)
	if w.Code != 200 {
		t.Fatalf("submit draft: %d (%s)", w.Code, w.Body.String())
	}
	return decode(t, w)
}

func TestDraftFlowOverHTTP(t *testing.T) {
	engine, _ := newAPI(t)

	created := decode(t, doJSON(t, engine, "POST", "/api/drafts", "", nil))
	draftID := int64(created["draft_id"].(float64))
	token, _ := created["token"].(string)
	if token == "" {
		t.Fatal("token cru ausente na criação do rascunho")
	}

	t.Run("token errado nao autentica", func(t *testing.T) {
		w := doJSON(t, engine, "GET", fmt.Sprintf("/api/drafts/%d", draftID), "token-qualquer", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("esperava 401, veio %d", w.Code)
		}
	})

	t.Run("sem dados obrigatorios nao envia", func(t *testing.T) {
		w := doJSON(t, engine, "POST", fmt.Sprintf("/api/drafts/%d/submit", draftID), token, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("esperava 400, veio %d (%s)", w.Code, w.Body.String())
		}
	})

	patch := map[string]any{
		"full_name": "Maria da Silva",
		"cpf":       "123.456.789-01",
		"email":     "maria@example.org",
	}
	if w := doJSON(t, engine, "PATCH", fmt.Sprintf("/api/drafts/%d", draftID), token, patch); w.Code != 200 {
		t.Fatalf("patch: %d (%s)", w.Code, w.Body.String())
	}

	submitted := decode(t, doJSON(t, engine, "POST", fmt.Sprintf("/api/drafts/%d/submit", draftID), token, nil))
	if submitted["status"] != models.PROPOSAL_STATUS_SUBMITTED {
		t.Fatalf("status após envio: %v", submitted["status"])
	}
	protocol, _ := submitted["protocol"].(string)
	if protocol == "" {
		t.Fatal("protocolo ausente")
	}

	t.Run("rascunho morre depois do envio", func(t *testing.T) {
		w := doJSON(t, engine, "GET", fmt.Sprintf("/api/drafts/%d", draftID), token, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("esperava 404, veio %d", w.Code)
		}
	})

	t.Run("acompanhamento publico sem PII", func(t *testing.T) {
		publicToken := submitted["public_token"].(string)
		w := doJSON(t, engine, "GET", "/api/filiacao/acompanhar/"+publicToken, "", nil)
		if w.Code != 200 {
			t.Fatalf("tracking: %d (%s)", w.Code, w.Body.String())
		}
		view := decode(t, w)
		if view["protocolo"] != protocol || view["status"] != models.PROPOSAL_STATUS_SUBMITTED {
			t.Fatalf("view inesperada: %v", view)
		}
		if bytes.Contains(w.Body.Bytes(), []byte("maria@example.org")) {
			t.Fatal("email vazou na tela pública")
		}
	})
}

func TestAdminGuards(t *testing.T) {
	engine, db := newAPI(t)

	_, analystToken := seedAdmin(t, db, "ana", models.ADMIN_ROLE_ANALYST, models.ADMIN_STATUS_ACTIVE)
	_, blockedToken := seedAdmin(t, db, "bia", models.ADMIN_ROLE_ANALYST, models.ADMIN_STATUS_BLOCKED)
	_, managerToken := seedAdmin(t, db, "caio", models.ADMIN_ROLE_MANAGER, models.ADMIN_STATUS_ACTIVE)

	t.Run("sem token", func(t *testing.T) {
		if w := doJSON(t, engine, "GET", "/api/proposals", "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("esperava 401, veio %d", w.Code)
		}
	})
	t.Run("token invalido", func(t *testing.T) {
		if w := doJSON(t, engine, "GET", "/api/proposals", "token-falso", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("esperava 401, veio %d", w.Code)
		}
	})
	t.Run("analista bloqueado", func(t *testing.T) {
		if w := doJSON(t, engine, "GET", "/api/proposals", blockedToken, nil); w.Code != http.StatusForbidden {
			t.Fatalf("esperava 403, veio %d", w.Code)
		}
	})
	t.Run("analista acessa propostas", func(t *testing.T) {
		if w := doJSON(t, engine, "GET", "/api/proposals", analystToken, nil); w.Code != 200 {
			t.Fatalf("esperava 200, veio %d (%s)", w.Code, w.Body.String())
		}
	})
	t.Run("gestao exige manager", func(t *testing.T) {
		body := map[string]any{"name": "novo", "email": "novo@partido.org.br"}
		if w := doJSON(t, engine, "POST", "/api/analysts", analystToken, body); w.Code != http.StatusForbidden {
			t.Fatalf("esperava 403, veio %d", w.Code)
		}
		w := doJSON(t, engine, "POST", "/api/analysts", managerToken, body)
		if w.Code != 200 {
			t.Fatalf("esperava 200, veio %d (%s)", w.Code, w.Body.String())
		}
		out := decode(t, w)
		if out["token"] == "" || out["token"] == nil {
			t.Fatal("token do novo analista ausente")
		}
		// email duplicado
		if w := doJSON(t, engine, "POST", "/api/analysts", managerToken, body); w.Code != http.StatusConflict {
			t.Fatalf("esperava 409, veio %d", w.Code)
		}
	})
}

func TestProposalActionsOverHTTP(t *testing.T) {
	engine, db := newAPI(t)

	analyst, token := seedAdmin(t, db, "ana", models.ADMIN_ROLE_ANALYST, models.ADMIN_STATUS_ACTIVE)
	submitDraft(t, engine)

	listed := decode(t, doJSON(t, engine, "GET", "/api/proposals", token, nil))
	proposals := listed["proposals"].([]any)
	if len(proposals) != 1 {
		t.Fatalf("esperava 1 proposta, veio %d", len(proposals))
	}
	proposalID := int64(proposals[0].(map[string]any)["id"].(float64))

	t.Run("id invalido", func(t *testing.T) {
		if w := doJSON(t, engine, "GET", "/api/proposals/abc", token, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("esperava 400, veio %d", w.Code)
		}
	})

	t.Run("atribuir e analisar", func(t *testing.T) {
		w := doJSON(t, engine, "POST", fmt.Sprintf("/api/proposals/%d/assign", proposalID), token,
			map[string]any{"analyst_id": analyst.ID})
		if w.Code != 200 {
			t.Fatalf("assign: %d (%s)", w.Code, w.Body.String())
		}

		out := decode(t, doJSON(t, engine, "POST", fmt.Sprintf("/api/proposals/%d/start-review", proposalID), token, nil))
		if out["status"] != models.PROPOSAL_STATUS_UNDER_REVIEW {
			t.Fatalf("status após start-review: %v", out["status"])
		}
	})

	t.Run("visao completa traz contato decifrado", func(t *testing.T) {
		out := decode(t, doJSON(t, engine, "GET", fmt.Sprintf("/api/proposals/%d", proposalID), token, nil))
		contact, _ := out["contact"].(map[string]any)
		if contact == nil || contact["email"] != "maria@example.org" {
			t.Fatalf("contato decifrado ausente: %v", out["contact"])
		}
	})

	t.Run("aprovar agenda contrato", func(t *testing.T) {
		out := decode(t, doJSON(t, engine, "POST", fmt.Sprintf("/api/proposals/%d/approve", proposalID), token, nil))
		if out["status"] != models.PROPOSAL_STATUS_PENDING_SIGNATURE {
			t.Fatalf("status após approve: %v", out["status"])
		}
		var n int
		db.Model(&models.Job{}).Where("kind = ?", models.JOB_KIND_PDF_RENDER).Count(&n)
		if n != 1 {
			t.Fatalf("esperava 1 job de render, veio %d", n)
		}
	})

	t.Run("acao fora de ordem", func(t *testing.T) {
		w := doJSON(t, engine, "POST", fmt.Sprintf("/api/proposals/%d/approve", proposalID), token, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("esperava 400, veio %d (%s)", w.Code, w.Body.String())
		}
	})

	t.Run("filtro por analista", func(t *testing.T) {
		out := decode(t, doJSON(t, engine, "GET", fmt.Sprintf("/api/proposals?analyst_id=%d", analyst.ID), token, nil))
		if int(out["total"].(float64)) != 1 {
			t.Fatalf("filtro analyst_id: %v", out["total"])
		}
		out = decode(t, doJSON(t, engine, "GET", "/api/proposals?analyst_id=999", token, nil))
		if int(out["total"].(float64)) != 0 {
			t.Fatalf("filtro analyst_id inexistente: %v", out["total"])
		}
	})
}

func TestProposalDueSoonFilter(t *testing.T) {
	engine, db := newAPI(t)
	_, token := seedAdmin(t, db, "ana", models.ADMIN_ROLE_ANALYST, models.ADMIN_STATUS_ACTIVE)
	submitDraft(t, engine)

	countDueSoon := func() int {
		out := decode(t, doJSON(t, engine, "GET", "/api/proposals?due_soon=1", token, nil))
		return int(out["total"].(float64))
	}

	if n := countDueSoon(); n != 0 {
		t.Fatalf("sem prazo calculado, esperava 0, veio %d", n)
	}

	// vence dentro da janela de 24h
	soon := time.Now().UTC().Truncate(time.Second).Add(2 * time.Hour)
	if err := db.Model(&models.Proposal{}).Update("sla_due_at", soon).Error; err != nil {
		t.Fatal(err)
	}
	if n := countDueSoon(); n != 1 {
		t.Fatalf("vencendo em 2h, esperava 1, veio %d", n)
	}

	// vencimento longe não entra
	far := time.Now().UTC().Truncate(time.Second).Add(100 * time.Hour)
	if err := db.Model(&models.Proposal{}).Update("sla_due_at", far).Error; err != nil {
		t.Fatal(err)
	}
	if n := countDueSoon(); n != 0 {
		t.Fatalf("vencendo em 100h, esperava 0, veio %d", n)
	}

	// estourada sai do filtro (é caso do breached=1)
	breached := time.Now().UTC().Truncate(time.Second)
	if err := db.Model(&models.Proposal{}).
		Updates(map[string]any{"sla_due_at": soon, "sla_breached_at": breached}).Error; err != nil {
		t.Fatal(err)
	}
	if n := countDueSoon(); n != 0 {
		t.Fatalf("estourada, esperava 0, veio %d", n)
	}
	out := decode(t, doJSON(t, engine, "GET", "/api/proposals?breached=1", token, nil))
	if int(out["total"].(float64)) != 1 {
		t.Fatalf("breached=1 deveria achar a proposta")
	}
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestClicksignWebhookOverHTTP(t *testing.T) {
	engine, _ := newAPI(t)

	body := []byte(`{"event":{"name":"close","envelope_id":"env-desconhecido"},"eventId":"ev-http-1"}`)

	t.Run("assinatura invalida", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/webhooks/clicksign", bytes.NewReader(body))
		req.Header.Set("Content-Hmac", "sha256=deadbeef")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("esperava 401, veio %d", w.Code)
		}
	})

	deliver := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/webhooks/clicksign", bytes.NewReader(body))
		req.Header.Set("Content-Hmac", signBody(body))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	t.Run("entrega valida", func(t *testing.T) {
		w := deliver()
		if w.Code != 200 {
			t.Fatalf("esperava 200, veio %d (%s)", w.Code, w.Body.String())
		}
		out := decode(t, w)
		if out["ok"] != true {
			t.Fatalf("resposta: %v", out)
		}
	})

	t.Run("reentrega e idempotente", func(t *testing.T) {
		out := decode(t, deliver())
		if out["duplicated"] != true {
			t.Fatalf("esperava duplicated, veio %v", out)
		}
	})
}
