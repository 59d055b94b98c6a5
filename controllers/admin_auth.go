package controllers

import (
	"net/http"

	dbpkg "filiacao/db"
	"filiacao/models"
	"filiacao/tools"

	"github.com/gin-gonic/gin"
)

const ctxAdminKey = "auth_admin"

// AuthRequired autentica as rotas administrativas: Bearer token → hash →
// AdminUser. A emissão do token é operacional (fora da API).
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			RespondError(c, "não autorizado", http.StatusUnauthorized)
			c.Abort()
			return
		}

		db := dbpkg.DBInstance(c)
		if db == nil {
			RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
			c.Abort()
			return
		}

		var admin models.AdminUser
		if err := db.Where("token_hash = ?", tools.HashToken(token)).First(&admin).Error; err != nil {
			RespondError(c, "não autorizado", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ctxAdminKey, admin)
		c.Next()
	}
}

// GetAdminLogged devolve o admin carregado pelo AuthRequired.
func GetAdminLogged(c *gin.Context) (models.AdminUser, bool) {
	v, ok := c.Get(ctxAdminKey)
	if !ok {
		return models.AdminUser{}, false
	}
	admin, ok := v.(models.AdminUser)
	return admin, ok
}

func actorID(c *gin.Context) *int64 {
	admin, ok := GetAdminLogged(c)
	if !ok {
		return nil
	}
	return &admin.ID
}
