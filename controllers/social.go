package controllers

import (
	"net/http"

	dbpkg "filiacao/db"

	"github.com/gin-gonic/gin"
)

// SocialAuthorize inicia o vínculo: redireciona para a tela de autorização
// do provedor com o state assinado.
func SocialAuthorize(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	provider := c.Param("provider")
	publicToken := c.Query("token")
	if publicToken == "" {
		RespondError(c, "token é obrigatório", http.StatusBadRequest)
		return
	}

	target, err := socialLinker.AuthorizeURL(db, provider, publicToken)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// SocialCallback é o retorno do provedor. Nunca responde erro: o navegador
// do filiado sempre acaba num redirect (sucesso ou código de motivo).
func SocialCallback(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	provider := c.Param("provider")

	target := socialLinker.HandleCallback(
		db,
		provider,
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
	)
	c.Redirect(http.StatusFound, target)
}

// SocialDisconnect remove o vínculo social da proposta.
func SocialDisconnect(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	provider := c.Param("provider")
	publicToken := c.Query("token")
	if publicToken == "" {
		RespondError(c, "token é obrigatório", http.StatusBadRequest)
		return
	}

	if err := socialLinker.Disconnect(db, provider, publicToken); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"disconnected": provider})
}
