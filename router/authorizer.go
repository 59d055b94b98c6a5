package router

import (
	"net/http"

	"filiacao/controllers"
	"filiacao/models"

	"github.com/gin-gonic/gin"
)

// Authorizer bloqueia o acesso de analistas com a conta bloqueada.
func Authorizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := controllers.GetAdminLogged(c)
		if !ok {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		if admin.Status == models.ADMIN_STATUS_BLOCKED {
			controllers.RespondError(c, "sem acesso ao back-office", http.StatusForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
