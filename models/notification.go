package models

import "time"

/************************************************
/**** MARK: NOTIFICATION CHANNELS ****/
/************************************************/
const NOTIFICATION_CHANNEL_EMAIL = "EMAIL"
const NOTIFICATION_CHANNEL_SMS = "SMS"
const NOTIFICATION_CHANNEL_WHATSAPP = "WHATSAPP"

/************************************************
/**** MARK: NOTIFICATION STATUS ****/
/************************************************/
const NOTIFICATION_STATUS_QUEUED = "QUEUED"
const NOTIFICATION_STATUS_SENT = "SENT"
const NOTIFICATION_STATUS_FAILED = "FAILED"

// Notification registra cada decisão de notificar o filiado (canal, template
// e dados). O envio em si acontece no worker; aqui fica o rastro.
type Notification struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;index" json:"proposal_id"`

	Channel      string `gorm:"not null" json:"channel"`
	TemplateKey  string `gorm:"not null" json:"template_key"`
	TemplateData string `gorm:"type:text" json:"template_data"`
	Status       string `gorm:"not null;default:'QUEUED';index" json:"status"`

	SentAt *time.Time `json:"sent_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
