package controllers

import (
	"net/http"

	dbpkg "filiacao/db"
	"filiacao/models"
	"filiacao/tools"

	"github.com/gin-gonic/gin"
)

// GetAnalysts lista o time do back-office com a carga aberta de cada um.
func GetAnalysts(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	var analysts []models.AdminUser
	if err := db.Order("id asc").Find(&analysts).Error; err != nil {
		RespondServiceError(c, err)
		return
	}

	type entry struct {
		models.AdminUser
		OpenProposals int `json:"open_proposals"`
	}
	out := make([]entry, 0, len(analysts))
	for _, a := range analysts {
		var n int
		db.Model(&models.Proposal{}).
			Where("assigned_analyst_id = ?", a.ID).
			Where("status in (?)", models.WorkloadStatuses()).
			Count(&n)
		out = append(out, entry{AdminUser: a, OpenProposals: n})
	}
	RespondSuccess(c, out)
}

// CreateAnalyst cadastra um analista/gestor. O token de acesso só aparece
// nesta resposta; o banco guarda o hash.
func CreateAnalyst(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		RespondError(c, "name é obrigatório", http.StatusBadRequest)
		return
	}
	if !tools.ValidateEmail(body.Email) {
		RespondError(c, "email inválido", http.StatusBadRequest)
		return
	}
	role := body.Role
	if role == "" {
		role = models.ADMIN_ROLE_ANALYST
	}
	if role != models.ADMIN_ROLE_ANALYST && role != models.ADMIN_ROLE_MANAGER {
		RespondError(c, "role inválida", http.StatusBadRequest)
		return
	}

	rawToken := tools.NewAccessToken()
	analyst := models.AdminUser{
		Name:      body.Name,
		Email:     body.Email,
		Role:      role,
		TokenHash: tools.HashToken(rawToken),
	}
	if err := db.Create(&analyst).Error; err != nil {
		RespondError(c, "email já cadastrado", http.StatusConflict)
		return
	}

	RespondSuccess(c, gin.H{"analyst": analyst, "token": rawToken})
}

// SetAnalystStatus bloqueia/desbloqueia um analista. Bloqueado não autentica
// e sai da distribuição automática.
func SetAnalystStatus(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var body struct {
		Blocked *bool `json:"blocked"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Blocked == nil {
		RespondError(c, "blocked é obrigatório", http.StatusBadRequest)
		return
	}

	status := models.ADMIN_STATUS_ACTIVE
	if *body.Blocked {
		status = models.ADMIN_STATUS_BLOCKED
	}

	res := db.Model(&models.AdminUser{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		RespondServiceError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		RespondError(c, "analista não encontrado", http.StatusNotFound)
		return
	}
	RespondSuccess(c, gin.H{"id": id, "blocked": *body.Blocked})
}
