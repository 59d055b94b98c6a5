package models

import "time"

/************************************************
/**** MARK: DOCUMENT KIND ****/
/************************************************/
const DOCUMENT_KIND_RG = "RG"
const DOCUMENT_KIND_CPF = "CPF"
const DOCUMENT_KIND_COMPROVANTE = "COMPROVANTE_RESIDENCIA"
const DOCUMENT_KIND_FOTO = "FOTO"
const DOCUMENT_KIND_CONTRATO_PDF = "CONTRATO_PDF"

// DocumentFile referencia um arquivo enviado pelo filiado (ou o PDF do
// contrato gerado). O conteúdo fica no storage externo; aqui só a chave.
type DocumentFile struct {
	ID         int64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ProposalID int64 `gorm:"not null;index" json:"proposal_id"`

	Kind        string `gorm:"not null" json:"kind"`
	StorageKey  string `gorm:"not null" json:"storage_key"`
	FileName    string `gorm:"default:''" json:"file_name"`
	ContentType string `gorm:"default:''" json:"content_type"`
	SizeBytes   int64  `gorm:"default:0" json:"size_bytes"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
