package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// TextSender é o envio de texto por WhatsApp (tools.WhatsAppClient em
// produção, fake nos testes).
type TextSender interface {
	SendText(ctx context.Context, to string, text string) error
}

// notificationTemplates são as mensagens enviadas ao filiado. Rendeiro
// simples: {{chave}} vira o valor de template_data.
var notificationTemplates = map[string]string{
	"filiacao_recebida":   "Recebemos sua proposta de filiação. Protocolo {{protocolo}}. Acompanhe em {{link}}",
	"filiacao_pendencias": "Sua proposta {{protocolo}} tem pendências: {{pendencias}}. Veja em {{link}}",
	"filiacao_recusada":   "Sua proposta de filiação {{protocolo}} foi indeferida. Motivo: {{motivo}}",
	"filiacao_aprovada":   "Sua filiação foi aprovada! Protocolo {{protocolo}}.",
	"assinatura_link":     "Seu contrato de filiação está pronto para assinatura: {{url}}",
}

func renderTemplate(key string, data map[string]string) string {
	text, ok := notificationTemplates[key]
	if !ok {
		return ""
	}
	for k, v := range data {
		text = strings.ReplaceAll(text, "{{"+k+"}}", v)
	}
	return text
}

// notificationPayload é o corpo do NOTIFICATION_SEND enfileirado pelo
// lifecycle.
type notificationPayload struct {
	NotificationID int64             `json:"notification_id"`
	ProposalID     int64             `json:"proposal_id"`
	Channel        string            `json:"channel"`
	To             string            `json:"to"`
	TemplateKey    string            `json:"template_key"`
	TemplateData   map[string]string `json:"template_data"`
}

// NotificationSender entrega as notificações enfileiradas. WhatsApp sai
// pela Cloud API; email fica com o provedor transacional externo, aqui só
// registramos a entrega.
type NotificationSender struct {
	WhatsApp TextSender
}

func (n *NotificationSender) Handle(ctx context.Context, db *gorm.DB, job *models.Job) error {
	var payload notificationPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("notification payload: %w", err)
	}

	text := renderTemplate(payload.TemplateKey, payload.TemplateData)
	if text == "" {
		return n.markNotification(db, payload.NotificationID, models.NOTIFICATION_STATUS_FAILED, nil)
	}

	switch payload.Channel {
	case models.NOTIFICATION_CHANNEL_WHATSAPP:
		if n.WhatsApp == nil {
			return fmt.Errorf("whatsapp sender não configurado")
		}
		if err := n.WhatsApp.SendText(ctx, payload.To, text); err != nil {
			return err
		}
	case models.NOTIFICATION_CHANNEL_EMAIL, models.NOTIFICATION_CHANNEL_SMS:
		log.Printf("notificação %s (%s) proposta %d: %s", payload.TemplateKey, payload.Channel, payload.ProposalID, text)
	default:
		return fmt.Errorf("canal desconhecido: %s", payload.Channel)
	}

	t := time.Now()
	return n.markNotification(db, payload.NotificationID, models.NOTIFICATION_STATUS_SENT, &t)
}

func (n *NotificationSender) markNotification(db *gorm.DB, id int64, status string, sentAt *time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]any{"status": status}
	if sentAt != nil {
		updates["sent_at"] = sentAt
	}
	return db.Model(&models.Notification{}).Where("id = ?", id).Updates(updates).Error
}
