package controllers

import (
	"net/http"
	"strconv"
	"time"

	dbpkg "filiacao/db"
	"filiacao/models"

	"github.com/gin-gonic/gin"
)

// GetProposals lista propostas para o back-office. Filtros: status,
// analyst_id, breached=1 (SLA estourado), due_soon=1 (vence dentro da
// janela configurada). Paginação por limit/offset.
func GetProposals(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	query := db.Model(&models.Proposal{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if analyst := c.Query("analyst_id"); analyst != "" {
		id, err := strconv.ParseInt(analyst, 10, 64)
		if err != nil {
			RespondError(c, "analyst_id inválido", http.StatusBadRequest)
			return
		}
		query = query.Where("assigned_analyst_id = ?", id)
	}
	if c.Query("breached") == "1" {
		query = query.Where("sla_breached_at IS NOT NULL")
	}
	if c.Query("due_soon") == "1" {
		horizon := time.Now().Add(time.Duration(lifecycleService.Config().Sla.DueSoonHours) * time.Hour)
		query = query.Where("sla_breached_at IS NULL AND sla_due_at IS NOT NULL AND sla_due_at <= ?", horizon)
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	var total int
	if err := query.Count(&total).Error; err != nil {
		RespondServiceError(c, err)
		return
	}

	var proposals []models.Proposal
	if err := query.Order("submitted_at desc, id desc").Limit(limit).Offset(offset).Find(&proposals).Error; err != nil {
		RespondServiceError(c, err)
		return
	}

	RespondSuccess(c, gin.H{"total": total, "proposals": proposals})
}

// GetProposalByID devolve a visão completa do analista: proposta, pessoa,
// endereço, documentos, envelopes, razão de status e contato decifrado.
func GetProposalByID(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	proposal, err := lifecycleService.FindProposal(db, id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	var person models.Person
	hasPerson := db.Where("proposal_id = ?", proposal.ID).First(&person).Error == nil
	var address models.Address
	db.Where("proposal_id = ?", proposal.ID).First(&address)
	var documents []models.DocumentFile
	db.Where("proposal_id = ?", proposal.ID).Order("id asc").Find(&documents)
	var envelopes []models.SignatureEnvelope
	db.Where("proposal_id = ?", proposal.ID).Order("id desc").Find(&envelopes)
	var history []models.StatusHistory
	db.Where("proposal_id = ?", proposal.ID).Order("id asc").Find(&history)
	var socials []models.SocialAccount
	if hasPerson {
		db.Where("person_id = ?", person.ID).Find(&socials)
	}

	payload := gin.H{
		"proposal":  proposal,
		"address":   address,
		"documents": documents,
		"envelopes": envelopes,
		"history":   history,
		"social":    socials,
	}
	if hasPerson {
		payload["person"] = person
		email, phone, err := lifecycleService.DecryptContact(&person)
		if err == nil {
			payload["contact"] = gin.H{"email": email, "phone": phone}
		}
	}
	RespondSuccess(c, payload)
}

/************************************************
/**** MARK: AÇÕES DO ANALISTA ****/
/************************************************/

func AssignProposal(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var body struct {
		AnalystID int64 `json:"analyst_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.AnalystID <= 0 {
		RespondError(c, "analyst_id é obrigatório", http.StatusBadRequest)
		return
	}

	proposal, err := lifecycleService.Assign(db, id, body.AnalystID, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func StartReview(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	proposal, err := lifecycleService.StartReview(db, id, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func RequestChanges(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var body struct {
		MissingItems []string `json:"missing_items"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.MissingItems) == 0 {
		RespondError(c, "missing_items é obrigatório", http.StatusBadRequest)
		return
	}

	proposal, err := lifecycleService.RequestChanges(db, id, body.MissingItems, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func ApproveProposal(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	proposal, err := lifecycleService.Approve(db, id, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func RejectProposal(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Reason == "" {
		RespondError(c, "reason é obrigatório", http.StatusBadRequest)
		return
	}

	proposal, err := lifecycleService.Reject(db, id, body.Reason, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func ResendSignature(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	proposal, err := lifecycleService.ResendSignatureLink(db, id, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func ExportProposalPDF(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	requestID, err := lifecycleService.ExportPDF(db, id, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"request_id": requestID})
}

func HomologateProposal(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	proposal, err := lifecycleService.Homologate(db, id, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}

func CancelProposal(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Reason == "" {
		RespondError(c, "reason é obrigatório", http.StatusBadRequest)
		return
	}

	proposal, err := lifecycleService.Cancel(db, id, body.Reason, actorID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondSuccess(c, proposal)
}
