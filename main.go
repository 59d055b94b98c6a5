package main

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"filiacao/clicksign"
	"filiacao/config"
	"filiacao/controllers"
	"filiacao/db"
	"filiacao/jobs"
	"filiacao/lifecycle"
	"filiacao/models"
	"filiacao/router"
	"filiacao/social"
	"filiacao/tools"
	"filiacao/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env é opcional (em produção as variáveis vêm do ambiente)
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.json"
	}
	cfg := config.Get(configPath)

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err == nil {
		if f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db.SetConfigurations(cfg)
	database, err := db.Connect()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	gateway := jobs.NewOutboxGateway(cfg.Jobs.MaxAttempts, cfg.Jobs.BackoffBaseSec)

	service, err := lifecycle.NewService(cfg, gateway)
	if err != nil {
		log.Fatal(err)
	}

	signer := clicksign.NewClient(cfg.Clicksign.BaseURL, cfg.Clicksign.AccessToken)
	service.Canceler = signer

	reconciler := &clicksign.Reconciler{
		Lifecycle: service,
		Secret:    cfg.Security.WebhookSecret,
	}

	linker := social.NewLinker(service, cfg)

	controllers.Setup(service, reconciler, linker)

	// Workers de background: consumidor do outbox, SLA e limpezas.
	// Jobs de OCR ficam de fora de propósito, quem consome é o serviço de
	// documentos.
	notifier := &workers.NotificationSender{
		WhatsApp: tools.WhatsAppClient{
			AccessToken:   cfg.WhatsApp.AccessToken,
			ApiVersion:    cfg.WhatsApp.ApiVersion,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		},
	}
	renderer := &workers.ContractRenderer{
		Lifecycle: service,
		Store:     workers.LocalStore{Dir: cfg.Storage.Dir},
		Jobs:      gateway,
	}
	creator := &workers.SignatureCreator{
		Lifecycle: service,
		Provider:  signer,
	}

	dispatcher := workers.NewDispatcher()
	dispatcher.Handle(models.JOB_KIND_NOTIFICATION_SEND, notifier.Handle)
	dispatcher.Handle(models.JOB_KIND_PDF_RENDER, renderer.Handle)
	dispatcher.Handle(models.JOB_KIND_SIGNATURE_CREATE, creator.Handle)
	dispatcher.Start(database)

	workers.NewSlaScheduler(service).Start(database)
	workers.StartMaintenance(database)

	r := gin.New()
	router.Initialize(r, database)

	log.Printf("Filiacao API listening on :%s", cfg.ApiPort)
	log.Fatal(r.Run(":" + cfg.ApiPort))
}
