package workers

import (
	"log"
	"time"

	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// JOB_RETENTION é quanto tempo jobs concluídos ficam na tabela antes do
// reaper passar.
const JOB_RETENTION = 7 * 24 * time.Hour

// StartMaintenance roda as limpezas periódicas: rascunhos vencidos e jobs
// já processados.
func StartMaintenance(db *gorm.DB) {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			now := time.Now()
			SweepExpiredDrafts(db, now)
			ReapCompletedJobs(db, now)
		}
	}()
}

// SweepExpiredDrafts apaga rascunhos cujo prazo venceu. Rascunho expirado
// já não autentica; a varredura só tira o lixo do banco.
func SweepExpiredDrafts(db *gorm.DB, now time.Time) {
	res := db.Where("expires_at IS NOT NULL AND expires_at < ?", now).Delete(&models.Draft{})
	if res.Error != nil {
		log.Printf("maintenance: sweep drafts: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("maintenance: %d rascunhos expirados removidos", res.RowsAffected)
	}
}

// ReapCompletedJobs remove jobs done/failed antigos. Failed também sai: o
// last_error já foi olhado (ou não) dentro da janela de retenção.
func ReapCompletedJobs(db *gorm.DB, now time.Time) {
	cutoff := now.Add(-JOB_RETENTION)
	res := db.
		Where("status in (?)", []string{models.JOB_STATUS_DONE, models.JOB_STATUS_FAILED}).
		Where("processed_at IS NOT NULL AND processed_at < ?", cutoff).
		Delete(&models.Job{})
	if res.Error != nil {
		log.Printf("maintenance: reap jobs: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("maintenance: %d jobs antigos removidos", res.RowsAffected)
	}
}
