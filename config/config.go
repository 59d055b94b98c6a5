package config

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"os"
)

// OAuthProvider guarda as credenciais de um provedor social.
// Qualquer campo vazio desabilita o provedor.
type OAuthProvider struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
}

type Configuration struct {
	ApiPort string `json:"api_port"`
	LogPath string `json:"log_path"`

	Database string `json:"database"` // "sqlite3" ou "postgres"
	DbHost   string `json:"db_host"`
	DbPort   string `json:"db_port"`
	DbUser   string `json:"db_user"`
	DbName   string `json:"db_name"`
	DbPass   string `json:"db_pass"`

	// URL base pública (links de acompanhamento enviados ao filiado)
	PublicBaseURL string `json:"public_base_url"`

	Security struct {
		// Chave AES-256 (32 bytes) em base64 para criptografia de PII
		EncryptionKey string `json:"encryption_key"`
		// Chave do hash de busca (HMAC), separada da chave de criptografia
		SearchHashKey string `json:"search_hash_key"`
		// Segredo compartilhado do webhook da Clicksign (vazio = aceita sem assinatura)
		WebhookSecret string `json:"webhook_secret"`
		// Segredo do state assinado do OAuth social
		OAuthStateSecret string `json:"oauth_state_secret"`
	} `json:"security"`

	Sla struct {
		Days              int  `json:"days"`
		DueSoonHours      int  `json:"due_soon_hours"`
		AutoAssignEnabled bool `json:"auto_assign_enabled"`
	} `json:"sla"`

	Drafts struct {
		TtlDays int `json:"ttl_days"`
	} `json:"drafts"`

	// Diretório local onde os contratos renderizados são gravados
	Storage struct {
		Dir string `json:"dir"`
	} `json:"storage"`

	Social struct {
		StateTtlMinutes int                      `json:"state_ttl_minutes"`
		ErrorRedirect   string                   `json:"error_redirect"`
		Providers       map[string]OAuthProvider `json:"providers"`
	} `json:"social"`

	Clicksign struct {
		BaseURL     string `json:"base_url"`
		AccessToken string `json:"access_token"`
	} `json:"clicksign"`

	// Credenciais da Cloud API usadas nas notificações por WhatsApp
	WhatsApp struct {
		AccessToken   string `json:"access_token"`
		ApiVersion    string `json:"api_version"`
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"whatsapp"`

	Jobs struct {
		MaxAttempts    int `json:"max_attempts"`
		BackoffBaseSec int `json:"backoff_base_sec"`
	} `json:"jobs"`
}

func Get(path string) Configuration {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	var c Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		log.Fatal(err)
	}

	// defaults (pra evitar nil/zero chato)
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.ApiPort
	}
	if c.Sla.Days <= 0 {
		c.Sla.Days = 7
	}
	if c.Sla.DueSoonHours <= 0 {
		c.Sla.DueSoonHours = 24
	}
	if c.Drafts.TtlDays <= 0 {
		c.Drafts.TtlDays = 7
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Social.StateTtlMinutes <= 0 {
		c.Social.StateTtlMinutes = 15
	}
	if c.Social.ErrorRedirect == "" {
		c.Social.ErrorRedirect = c.PublicBaseURL + "/filiacao/erro"
	}
	if c.Clicksign.BaseURL == "" {
		c.Clicksign.BaseURL = "https://app.clicksign.com"
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}
	if c.Jobs.BackoffBaseSec <= 0 {
		c.Jobs.BackoffBaseSec = 30
	}

	// overrides por env (deploys sem arquivo completo)
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.Security.WebhookSecret = v
	}
	if v := os.Getenv("CLICKSIGN_ACCESS_TOKEN"); v != "" {
		c.Clicksign.AccessToken = v
	}
	if v := os.Getenv("WHATSAPP_ACCESS_TOKEN"); v != "" {
		c.WhatsApp.AccessToken = v
	}

	return c
}

// EncryptionKeyBytes decodifica a chave AES do config.
// Retorna false se ausente ou com tamanho errado (32 bytes).
func (c Configuration) EncryptionKeyBytes() ([]byte, bool) {
	if c.Security.EncryptionKey == "" {
		return nil, false
	}
	key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, false
	}
	return key, true
}
