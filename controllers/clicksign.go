package controllers

import (
	"net/http"

	dbpkg "filiacao/db"

	"github.com/gin-gonic/gin"
)

// ClicksignWebhook recebe os eventos de assinatura. Assinatura HMAC do
// corpo cru no header Content-Hmac; payload inválido ou evento desconhecido
// não derruba o webhook, vira anotação de auditoria.
func ClicksignWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		RespondError(c, "corpo ilegível", http.StatusBadRequest)
		return
	}

	if !webhookReconciler.VerifySignature(c.GetHeader("Content-Hmac"), rawBody) {
		RespondError(c, "assinatura inválida", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	result, err := webhookReconciler.Process(db, rawBody)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, result)
}
