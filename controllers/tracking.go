package controllers

import (
	"net/http"

	dbpkg "filiacao/db"

	"github.com/gin-gonic/gin"
)

// GetTracking é a tela pública de acompanhamento: protocolo, status,
// pendências e linha do tempo, nada de PII.
func GetTracking(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	token := c.Param("token")
	if token == "" {
		RespondError(c, "token é obrigatório", http.StatusBadRequest)
		return
	}

	view, err := lifecycleService.Tracking(db, token)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, view)
}
