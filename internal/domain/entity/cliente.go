package entity

import "time"

// Cliente destinatário do documento (leitura; cadastro é de outro subsistema).
type Cliente struct {
	ID           string
	TenantID     string
	Nome         string
	Documento    string // CPF ou CNPJ
	Logradouro   string
	Municipio    string
	CodigoMunicipio string
	UF           string
	CEP          string
	CriadoEm     time.Time
	AtualizadoEm time.Time
}
