package clicksign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fala com a API da Clicksign (criação e cancelamento de envelope).
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CreatedEnvelope é o retorno da criação: o id no provedor e o link que o
// signatário recebe.
type CreatedEnvelope struct {
	ExternalID string
	SignURL    string
}

// CreateEnvelope registra o contrato e o signatário num envelope novo.
func (c *Client) CreateEnvelope(ctx context.Context, documentKey, signerName, signerEmail string) (CreatedEnvelope, error) {
	if c.AccessToken == "" {
		return CreatedEnvelope{}, fmt.Errorf("clicksign access token not set")
	}

	reqBody := map[string]any{
		"envelope": map[string]any{
			"document_key": documentKey,
			"signers": []map[string]any{
				{"name": signerName, "email": signerEmail, "sign_as": "sign"},
			},
		},
	}
	b, _ := json.Marshal(reqBody)

	url := c.BaseURL + "/api/v1/envelopes"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return CreatedEnvelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return CreatedEnvelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return CreatedEnvelope{}, fmt.Errorf("clicksign create envelope: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Envelope struct {
			ID      string `json:"id"`
			SignURL string `json:"sign_url"`
		} `json:"envelope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CreatedEnvelope{}, err
	}
	if parsed.Envelope.ID == "" {
		return CreatedEnvelope{}, fmt.Errorf("clicksign create envelope: resposta sem id")
	}
	return CreatedEnvelope{ExternalID: parsed.Envelope.ID, SignURL: parsed.Envelope.SignURL}, nil
}

// CancelEnvelope cancela um envelope no provedor. Implementa
// lifecycle.EnvelopeCanceler.
func (c *Client) CancelEnvelope(ctx context.Context, externalID string) error {
	if c.AccessToken == "" {
		return fmt.Errorf("clicksign access token not set")
	}

	url := c.BaseURL + "/api/v1/envelopes/" + externalID + "/cancel"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("clicksign cancel envelope: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
