package router

import (
	"net/http"

	"filiacao/controllers"
	"filiacao/models"

	"github.com/gin-gonic/gin"
)

// Adminizer bloqueia o acesso quando o usuário não é gestor.
func Adminizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := controllers.GetAdminLogged(c)
		if !ok {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}
		if admin.Role != models.ADMIN_ROLE_MANAGER {
			controllers.RespondError(c, "manager required", http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
