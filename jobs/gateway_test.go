package jobs

import (
	"testing"

	"filiacao/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.LogMode(false)
	// sqlite em memória vive por conexão; trava o pool numa só
	db.DB().SetMaxOpenConns(1)
	db.AutoMigrate(&models.Job{})
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOutboxGatewayEnqueue(t *testing.T) {
	db := openTestDB(t)
	g := NewOutboxGateway(5, 30)

	t.Run("fresh request id when none supplied", func(t *testing.T) {
		reqID, err := g.Enqueue(db, models.JOB_KIND_OCR, map[string]any{"proposal_id": 1}, Options{})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if reqID == "" {
			t.Fatal("expected generated request id")
		}

		var job models.Job
		if err := db.Where("request_id = ?", reqID).First(&job).Error; err != nil {
			t.Fatalf("job row not found: %v", err)
		}
		if job.Kind != models.JOB_KIND_OCR {
			t.Fatalf("kind=%s", job.Kind)
		}
		if job.Status != models.JOB_STATUS_PENDING {
			t.Fatalf("status=%s", job.Status)
		}
		if job.MaxAttempts != 5 || job.BackoffSec != 30 {
			t.Fatalf("retry policy not stamped: max=%d backoff=%d", job.MaxAttempts, job.BackoffSec)
		}
		if job.ScheduledAt == nil {
			t.Fatal("scheduled_at not set")
		}
	})

	t.Run("caller-supplied request id preserved", func(t *testing.T) {
		reqID, err := g.Enqueue(db, models.JOB_KIND_PDF_RENDER, map[string]any{"proposal_id": 2}, Options{RequestID: "req-fixo"})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if reqID != "req-fixo" {
			t.Fatalf("request id overridden: %s", reqID)
		}
	})

	t.Run("options override retry policy", func(t *testing.T) {
		reqID, err := g.Enqueue(db, models.JOB_KIND_SIGNATURE_CREATE, nil, Options{MaxAttempts: 2, BackoffSec: 10})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		var job models.Job
		if err := db.Where("request_id = ?", reqID).First(&job).Error; err != nil {
			t.Fatal(err)
		}
		if job.MaxAttempts != 2 || job.BackoffSec != 10 {
			t.Fatalf("max=%d backoff=%d", job.MaxAttempts, job.BackoffSec)
		}
	})

	t.Run("enqueue inside rolled-back tx leaves no row", func(t *testing.T) {
		tx := db.Begin()
		reqID, err := g.Enqueue(tx, models.JOB_KIND_NOTIFICATION_SEND, map[string]any{"to": "x"}, Options{})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		tx.Rollback()

		var count int
		db.Model(&models.Job{}).Where("request_id = ?", reqID).Count(&count)
		if count != 0 {
			t.Fatalf("job survived rollback")
		}
	})
}

func TestMemoryGateway(t *testing.T) {
	g := &MemoryGateway{}
	if _, err := g.Enqueue(nil, models.JOB_KIND_OCR, map[string]any{"a": 1}, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Enqueue(nil, models.JOB_KIND_PDF_RENDER, nil, Options{RequestID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if len(g.ByKind(models.JOB_KIND_OCR)) != 1 {
		t.Fatal("expected one OCR call")
	}
	pdf := g.ByKind(models.JOB_KIND_PDF_RENDER)
	if len(pdf) != 1 || pdf[0].RequestID != "r1" {
		t.Fatalf("pdf calls: %+v", pdf)
	}
}
