package router

import (
	"log"

	"filiacao/controllers"
	"filiacao/db"
	"filiacao/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// Initialize amarra todas as rotas e middlewares.
// Três camadas: rotas públicas (candidato), rotas administrativas (token de
// analista + conta ativa) e rotas de gestão (somente MANAGER).
func Initialize(r *gin.Engine, database *gorm.DB) {
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(db.SetDBtoContext(database))

	api := r.Group("/api")

	// Rascunhos (candidato, autenticado pelo token do próprio rascunho)
	api.POST("/drafts", Logger(), controllers.CreateDraft)
	api.GET("/drafts/:id", Logger(), controllers.GetDraft)
	api.PATCH("/drafts/:id", Logger(), controllers.UpdateDraft)
	api.POST("/drafts/:id/submit", Logger(), controllers.SubmitDraft)

	// Acompanhamento público (token do protocolo)
	api.GET("/filiacao/acompanhar/:token", Logger(), controllers.GetTracking)

	// Webhook da Clicksign (autenticado por HMAC do corpo)
	api.POST("/webhooks/clicksign", controllers.ClicksignWebhook)

	// Vínculo de redes sociais (o state assinado carrega a autenticação)
	api.GET("/social/:provider/authorize", Logger(), controllers.SocialAuthorize)
	api.GET("/social/:provider/callback", Logger(), controllers.SocialCallback)
	api.DELETE("/social/:provider", Logger(), controllers.SocialDisconnect)

	// Back-office (token de analista + conta ativa)
	admin := api.Group("")
	admin.Use(controllers.AuthRequired())
	admin.Use(Authorizer())

	admin.GET("/proposals", Logger(), controllers.GetProposals)
	admin.GET("/proposals/:id", Logger(), controllers.GetProposalByID)
	admin.POST("/proposals/:id/assign", Logger(), controllers.AssignProposal)
	admin.POST("/proposals/:id/start-review", Logger(), controllers.StartReview)
	admin.POST("/proposals/:id/request-changes", Logger(), controllers.RequestChanges)
	admin.POST("/proposals/:id/approve", Logger(), controllers.ApproveProposal)
	admin.POST("/proposals/:id/reject", Logger(), controllers.RejectProposal)
	admin.POST("/proposals/:id/resend-signature", Logger(), controllers.ResendSignature)
	admin.POST("/proposals/:id/export", Logger(), controllers.ExportProposalPDF)
	admin.POST("/proposals/:id/homologate", Logger(), controllers.HomologateProposal)
	admin.POST("/proposals/:id/cancel", Logger(), controllers.CancelProposal)

	// Gestão de analistas (somente MANAGER)
	manager := admin.Group("")
	manager.Use(Adminizer())

	manager.GET("/analysts", Logger(), controllers.GetAnalysts)
	manager.POST("/analysts", Logger(), controllers.CreateAnalyst)
	manager.PUT("/analysts/:id/status", Logger(), controllers.SetAnalystStatus)

	log.Printf("Routes initialized")
}
