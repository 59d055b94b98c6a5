package controllers

import (
	"errors"
	"net/http"

	"filiacao/clicksign"
	"filiacao/lifecycle"
	"filiacao/social"

	"github.com/gin-gonic/gin"
)

var (
	lifecycleService  *lifecycle.Service
	webhookReconciler *clicksign.Reconciler
	socialLinker      *social.Linker
)

// Setup injeta os serviços usados pelos handlers. Chamado uma vez no boot
// (e nos testes).
func Setup(svc *lifecycle.Service, rec *clicksign.Reconciler, linker *social.Linker) {
	lifecycleService = svc
	webhookReconciler = rec
	socialLinker = linker
}

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}

// RespondServiceError traduz os erros sentinela do lifecycle para HTTP. O
// texto do erro volta pro cliente; detalhes internos ficam no 500 genérico.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		RespondError(c, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrValidation):
		RespondError(c, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrUnauthorized):
		RespondError(c, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, lifecycle.ErrConflict):
		RespondError(c, err.Error(), http.StatusConflict)
	default:
		RespondError(c, "erro interno", http.StatusInternalServerError)
	}
}
