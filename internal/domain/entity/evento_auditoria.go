package entity

import "time"

// Operações auditadas do ciclo de vida fiscal.
const (
	AuditoriaCriacao      = "fiscal.criacao"
	AuditoriaAutorizacao  = "fiscal.autorizacao"
	AuditoriaDenegacao    = "fiscal.denegacao"
	AuditoriaCancelamento = "fiscal.cancelamento"
	AuditoriaCorrecao     = "fiscal.correcao"
	AuditoriaSincronizacao = "fiscal.sincronizacao"
)

// EventoAuditoria trilha de auditoria de toda transição de estado fiscal.
type EventoAuditoria struct {
	ID         string
	TenantID   string
	UserID     string
	Operacao   string
	RegistroID string // ID do documento fiscal
	Antes      string // estado anterior (status ou snapshot resumido)
	Depois     string
	OcorridoEm time.Time
}
