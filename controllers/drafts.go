package controllers

import (
	"encoding/json"
	"net/http"

	dbpkg "filiacao/db"

	"github.com/gin-gonic/gin"
)

// CreateDraft abre um rascunho de filiação. O token cru só aparece nesta
// resposta; guarde-o, é ele que autentica os PATCHs seguintes.
func CreateDraft(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	draft, rawToken, err := lifecycleService.CreateDraft(db)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondSuccess(c, gin.H{
		"draft_id":   draft.ID,
		"token":      rawToken,
		"expires_at": draft.ExpiresAt,
	})
}

// GetDraft devolve os dados parciais do rascunho.
func GetDraft(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	token, ok := BearerToken(c)
	if !ok {
		RespondError(c, "token do rascunho é obrigatório", http.StatusUnauthorized)
		return
	}

	draft, err := lifecycleService.AuthenticateDraft(db, id, token)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(draft.Data), &data); err != nil {
		data = map[string]any{}
	}
	RespondSuccess(c, gin.H{
		"draft_id":   draft.ID,
		"data":       data,
		"expires_at": draft.ExpiresAt,
	})
}

// UpdateDraft aplica um patch raso nos dados do rascunho (campo null apaga).
func UpdateDraft(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	token, ok := BearerToken(c)
	if !ok {
		RespondError(c, "token do rascunho é obrigatório", http.StatusUnauthorized)
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		RespondError(c, "JSON inválido", http.StatusBadRequest)
		return
	}

	draft, err := lifecycleService.UpdateDraft(db, id, token, patch)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(draft.Data), &data); err != nil {
		data = map[string]any{}
	}
	RespondSuccess(c, gin.H{"draft_id": draft.ID, "data": data})
}

// SubmitDraft converte o rascunho em proposta. O rascunho morre; a resposta
// traz o protocolo e o link de acompanhamento.
func SubmitDraft(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	token, ok := BearerToken(c)
	if !ok {
		RespondError(c, "token do rascunho é obrigatório", http.StatusUnauthorized)
		return
	}

	proposal, err := lifecycleService.SubmitDraft(db, id, token)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondSuccess(c, gin.H{
		"protocol":     proposal.Protocol,
		"status":       proposal.Status,
		"public_token": proposal.PublicToken,
		"tracking_url": lifecycleService.TrackingURL(proposal),
	})
}
