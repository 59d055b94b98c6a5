package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filiacao/jobs"
	"filiacao/lifecycle"
	"filiacao/models"

	"github.com/jinzhu/gorm"
)

// FileStore grava o PDF renderizado. Em produção é o LocalStore; um
// adaptador de bucket entra aqui sem mexer no renderer.
type FileStore interface {
	Save(key string, data []byte) error
}

// LocalStore grava sob um diretório da configuração.
type LocalStore struct {
	Dir string
}

func (s LocalStore) Save(key string, data []byte) error {
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type renderPayload struct {
	ProposalID int64  `json:"proposal_id"`
	Purpose    string `json:"purpose"`
}

// ContractRenderer materializa o PDF_RENDER: monta o contrato de filiação
// em PDF, grava no storage e registra o DocumentFile. Quando o propósito é
// o contrato de assinatura, encadeia o SIGNATURE_CREATE.
type ContractRenderer struct {
	Lifecycle *lifecycle.Service
	Store     FileStore
	Jobs      jobs.Gateway
}

func (r *ContractRenderer) Handle(ctx context.Context, db *gorm.DB, job *models.Job) error {
	var payload renderPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("render payload: %w", err)
	}

	proposal, err := r.Lifecycle.FindProposal(db, payload.ProposalID)
	if err != nil {
		return err
	}
	var person models.Person
	if err := db.Where("proposal_id = ?", proposal.ID).First(&person).Error; err != nil {
		return err
	}
	var address models.Address
	if err := db.Where("proposal_id = ?", proposal.ID).First(&address).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}

	pdf := buildContractPDF(contractLines(proposal, &person, &address))

	key := fmt.Sprintf("contratos/%s.pdf", proposal.Protocol)
	if payload.Purpose == "export" {
		key = fmt.Sprintf("exports/%s-%d.pdf", proposal.Protocol, time.Now().Unix())
	}
	if err := r.Store.Save(key, pdf); err != nil {
		return err
	}

	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	doc := models.DocumentFile{
		ProposalID:  proposal.ID,
		Kind:        models.DOCUMENT_KIND_CONTRATO_PDF,
		StorageKey:  key,
		FileName:    filepath.Base(key),
		ContentType: "application/pdf",
		SizeBytes:   int64(len(pdf)),
	}
	if err := tx.Create(&doc).Error; err != nil {
		tx.Rollback()
		return err
	}

	meta := map[string]any{"document_id": doc.ID, "purpose": payload.Purpose, "storage_key": key}
	if err := r.Lifecycle.WriteAudit(tx, models.AUDIT_ACTION_CONTRACT_RENDERED, "Proposal", proposal.ID, nil, "", meta); err != nil {
		tx.Rollback()
		return err
	}

	if payload.Purpose != "export" {
		next := map[string]any{"proposal_id": proposal.ID, "document_id": doc.ID}
		if _, err := r.Jobs.Enqueue(tx, models.JOB_KIND_SIGNATURE_CREATE, next, jobs.Options{RequestID: job.RequestID}); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

func contractLines(p *models.Proposal, person *models.Person, addr *models.Address) []string {
	lines := []string{
		"CONTRATO DE FILIACAO",
		"",
		fmt.Sprintf("Protocolo: %s", p.Protocol),
		fmt.Sprintf("Tipo: %s", p.Type),
		fmt.Sprintf("Filiado: %s", person.FullName),
	}
	if person.Birthdate != "" {
		lines = append(lines, fmt.Sprintf("Nascimento: %s", person.Birthdate))
	}
	if addr.City != "" {
		lines = append(lines, fmt.Sprintf("Endereco: %s, %s - %s/%s", addr.Street, addr.Number, addr.City, addr.State))
	}
	if p.SubmittedAt != nil {
		lines = append(lines, fmt.Sprintf("Proposta recebida em: %s", p.SubmittedAt.Format("02/01/2006")))
	}
	lines = append(lines,
		"",
		"O filiado declara verdadeiras as informacoes prestadas e adere ao",
		"estatuto e ao programa da entidade.",
	)
	return lines
}

/************************************************
/**** MARK: PDF ****/
/************************************************/

// buildContractPDF monta um PDF de página única direto no formato do
// arquivo. O contrato é texto corrido em Helvetica; não vale uma
// dependência de geração de PDF só para isso.
func buildContractPDF(lines []string) []byte {
	var content bytes.Buffer
	content.WriteString("BT\n/F1 11 Tf\n14 TL\n50 792 Td\n")
	for _, line := range lines {
		content.WriteString("(" + escapePDFText(line) + ") Tj\nT*\n")
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

// escapePDFText escapa os delimitadores de string e rebaixa o texto para
// Latin-1 (WinAnsi); runas fora da página viram '?'.
func escapePDFText(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(byte(r))
		default:
			if r < 256 {
				b.WriteByte(byte(r))
			} else {
				b.WriteByte('?')
			}
		}
	}
	return b.String()
}
