package repository

import (
	"context"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
)

// AuditoriaRepository trilha de auditoria append-only das operações fiscais.
type AuditoriaRepository interface {
	Registrar(ctx context.Context, ev *entity.EventoAuditoria) error
	ListarPorDocumento(ctx context.Context, tenantID, documentoID string) ([]entity.EventoAuditoria, error)
}
