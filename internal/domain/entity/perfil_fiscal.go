package entity

import "time"

// PerfilFiscal dados do emitente por tenant (farmácia/empresa).
// Criado no onboarding, alterado pela configuração; nunca apagado, apenas
// desativado — documentos já emitidos continuam referenciando o perfil.
type PerfilFiscal struct {
	ID              string
	TenantID        string
	RazaoSocial     string
	NomeFantasia    string
	CNPJ            string // somente dígitos ou com pontuação; normalizado no uso
	IE              string // inscrição estadual
	Regime          string // CRT: 1=Simples, 2=Presumido, 3=Real
	UF              string // código IBGE (cUF)
	CodigoMunicipio string // cMunFG
	Logradouro      string
	Municipio       string
	CEP             string
	Ambiente        string // "1" produção, "2" homologação
	CertBlob        []byte // bundle A1 (.pfx) cifrado com a chave mestra (AES-256-GCM)
	CertSenha       string // senha do .pfx informada pelo tenant
	CSCID           string // identificador do CSC (QR da NFC-e); vazio = sem credencial
	CSCToken        string // token do CSC; nunca logado
	Ativo           bool
	CriadoEm        time.Time
	AtualizadoEm    time.Time
}

// TemCertificado informa se há bundle A1 armazenado.
func (p *PerfilFiscal) TemCertificado() bool {
	return len(p.CertBlob) > 0
}

// TemCSC informa se as credenciais do código de segurança estão configuradas.
func (p *PerfilFiscal) TemCSC() bool {
	return p.CSCID != "" && p.CSCToken != ""
}
