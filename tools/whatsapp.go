package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WhatsAppClient envia mensagens de texto via WhatsApp Cloud API.
type WhatsAppClient struct {
	AccessToken   string
	ApiVersion    string
	PhoneNumberID string
}

func (w WhatsAppClient) SendText(ctx context.Context, to string, text string) error {
	if strings.TrimSpace(w.AccessToken) == "" || strings.TrimSpace(w.PhoneNumberID) == "" {
		return fmt.Errorf("whatsapp client not configured")
	}

	version := strings.TrimSpace(w.ApiVersion)
	if version == "" {
		version = "v20.0"
	}

	url := fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", version, w.PhoneNumberID)

	reqBody := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	}

	b, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
