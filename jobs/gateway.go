package jobs

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"filiacao/models"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Options parametriza um enqueue. RequestID vazio gera um novo; os campos
// de retry zerados caem nos defaults do gateway.
type Options struct {
	RequestID   string
	MaxAttempts int
	BackoffSec  int
}

// Gateway enfileira trabalho em background (fire-and-forget). A entrega é
// at-least-once: idempotência é responsabilidade de quem consome.
type Gateway interface {
	Enqueue(tx *gorm.DB, kind string, payload any, opts Options) (string, error)
}

// OutboxGateway grava o job na tabela jobs dentro da transação do chamador,
// então o enqueue comita (ou não) junto com a transição que o disparou.
type OutboxGateway struct {
	DefaultMaxAttempts int
	DefaultBackoffSec  int
}

func NewOutboxGateway(maxAttempts, backoffSec int) *OutboxGateway {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoffSec <= 0 {
		backoffSec = 30
	}
	return &OutboxGateway{DefaultMaxAttempts: maxAttempts, DefaultBackoffSec: backoffSec}
}

func (g *OutboxGateway) Enqueue(tx *gorm.DB, kind string, payload any, opts Options) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("enqueue %s: nil db", kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: marshal payload: %w", kind, err)
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = g.DefaultMaxAttempts
	}
	backoff := opts.BackoffSec
	if backoff <= 0 {
		backoff = g.DefaultBackoffSec
	}

	now := time.Now()
	job := models.Job{
		Kind:        kind,
		Payload:     string(body),
		RequestID:   requestID,
		Status:      models.JOB_STATUS_PENDING,
		MaxAttempts: maxAttempts,
		BackoffSec:  backoff,
		ScheduledAt: &now,
	}
	if err := tx.Create(&job).Error; err != nil {
		return "", fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return requestID, nil
}

// Enqueued é o registro de um enqueue capturado pelo MemoryGateway.
type Enqueued struct {
	Kind      string
	Payload   string
	RequestID string
}

// MemoryGateway captura enqueues em memória (testes e modo dev sem fila).
type MemoryGateway struct {
	mu    sync.Mutex
	Calls []Enqueued
}

func (g *MemoryGateway) Enqueue(tx *gorm.DB, kind string, payload any, opts Options) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	g.mu.Lock()
	g.Calls = append(g.Calls, Enqueued{Kind: kind, Payload: string(body), RequestID: requestID})
	g.mu.Unlock()
	return requestID, nil
}

// ByKind filtra as chamadas capturadas por tipo de job.
func (g *MemoryGateway) ByKind(kind string) []Enqueued {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Enqueued
	for _, c := range g.Calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
