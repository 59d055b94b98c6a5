package models

import "time"

/************************************************
/**** MARK: JOB KINDS ****/
/************************************************/
const JOB_KIND_OCR = "OCR"
const JOB_KIND_PDF_RENDER = "PDF_RENDER"
const JOB_KIND_SIGNATURE_CREATE = "SIGNATURE_CREATE"
const JOB_KIND_NOTIFICATION_SEND = "NOTIFICATION_SEND"

/************************************************
/**** MARK: JOB STATUS ****/
/************************************************/
const JOB_STATUS_PENDING = "pending"
const JOB_STATUS_PROCESSING = "processing"
const JOB_STATUS_DONE = "done"
const JOB_STATUS_FAILED = "failed"

// Job é a fila durável (outbox) dos trabalhos em background. O gateway só
// enfileira; quem executa são os workers. Linhas concluídas são removidas
// pelo reaper: a fila não guarda resultado indefinidamente.
type Job struct {
	ID        int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Kind      string `gorm:"not null;index" json:"kind"`
	Payload   string `gorm:"type:text" json:"payload"`
	RequestID string `gorm:"not null;index" json:"request_id"`
	Status    string `gorm:"not null;default:'pending';index" json:"status"`

	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int        `gorm:"not null;default:5" json:"max_attempts"`
	BackoffSec  int        `gorm:"not null;default:30" json:"backoff_sec"`
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	LastError   string     `gorm:"type:text" json:"last_error"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
