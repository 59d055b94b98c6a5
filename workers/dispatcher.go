package workers

import (
	"context"
	"log"
	"time"

	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// HandlerFunc executa um job já reivindicado. Erro agenda retry; depois de
// MaxAttempts o job vai pra failed com o último erro gravado.
type HandlerFunc func(ctx context.Context, db *gorm.DB, job *models.Job) error

// Dispatcher consome a tabela jobs. Só reivindica os tipos que tem handler
// registrado: OCR, por exemplo, fica pendente para o serviço de documentos
// que consome a mesma fila.
type Dispatcher struct {
	Interval time.Duration
	Timeout  time.Duration

	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Interval: 2 * time.Second,
		Timeout:  60 * time.Second,
		handlers: map[string]HandlerFunc{},
	}
}

func (d *Dispatcher) Handle(kind string, fn HandlerFunc) {
	d.handlers[kind] = fn
}

func (d *Dispatcher) kinds() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	return out
}

// Start dispara o loop de consumo em background.
func (d *Dispatcher) Start(db *gorm.DB) {
	go func() {
		ticker := time.NewTicker(d.Interval)
		defer ticker.Stop()

		for range ticker.C {
			d.RunOnce(db, time.Now())
		}
	}()
}

// RunOnce processa uma leva de jobs vencidos. Separado do ticker para os
// testes dirigirem o relógio.
func (d *Dispatcher) RunOnce(db *gorm.DB, now time.Time) {
	kinds := d.kinds()
	if len(kinds) == 0 {
		return
	}

	var due []models.Job
	if err := db.
		Where("status = ?", models.JOB_STATUS_PENDING).
		Where("kind in (?)", kinds).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at asc, id asc").
		Limit(50).
		Find(&due).Error; err != nil {
		log.Printf("dispatcher: query error: %v", err)
		return
	}

	for _, job := range due {
		// lock otimista: só executa quem conseguir virar o status
		res := db.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.JOB_STATUS_PENDING).
			Update("status", models.JOB_STATUS_PROCESSING)
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		d.execute(db, job, now)
	}
}

func (d *Dispatcher) execute(db *gorm.DB, job models.Job, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()

	err := d.handlers[job.Kind](ctx, db, &job)
	if err == nil {
		t := now
		_ = db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":       models.JOB_STATUS_DONE,
			"processed_at": &t,
			"last_error":   "",
		}).Error
		return
	}

	log.Printf("dispatcher: job %d (%s) falhou: %v", job.ID, job.Kind, err)

	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		t := now
		_ = db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":       models.JOB_STATUS_FAILED,
			"attempts":     attempts,
			"processed_at": &t,
			"last_error":   err.Error(),
		}).Error
		return
	}

	next := now.Add(backoffDelay(job.BackoffSec, attempts))
	_ = db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]any{
		"status":       models.JOB_STATUS_PENDING,
		"attempts":     attempts,
		"scheduled_at": &next,
		"last_error":   err.Error(),
	}).Error
}

// backoffDelay dobra a espera a cada tentativa, com teto de uma hora.
func backoffDelay(baseSec, attempt int) time.Duration {
	if baseSec <= 0 {
		baseSec = 30
	}
	delay := time.Duration(baseSec) * time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= time.Hour {
			return time.Hour
		}
	}
	return delay
}
