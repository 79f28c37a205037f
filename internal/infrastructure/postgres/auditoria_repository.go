package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
)

var _ repository.AuditoriaRepository = (*AuditoriaRepo)(nil)

// AuditoriaRepo implementação de AuditoriaRepository (pool ou tx).
// Tabela append-only: não há update nem delete.
type AuditoriaRepo struct {
	q Querier
}

// NewAuditoriaRepository constrói o adaptador.
func NewAuditoriaRepository(q Querier) *AuditoriaRepo {
	return &AuditoriaRepo{q: q}
}

// Registrar grava um evento de auditoria.
func (r *AuditoriaRepo) Registrar(ctx context.Context, ev *entity.EventoAuditoria) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	query := `
		INSERT INTO eventos_auditoria (id, tenant_id, user_id, operacao, registro_id, antes, depois, ocorrido_em)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		ev.ID, ev.TenantID, nullIfEmpty(ev.UserID), ev.Operacao, ev.RegistroID,
		nullIfEmpty(ev.Antes), nullIfEmpty(ev.Depois), ev.OcorridoEm,
	)
	if err != nil {
		return fmt.Errorf("insert evento auditoria: %w", err)
	}
	return nil
}

// ListarPorDocumento devolve a trilha do documento em ordem cronológica.
func (r *AuditoriaRepo) ListarPorDocumento(ctx context.Context, tenantID, documentoID string) ([]entity.EventoAuditoria, error) {
	query := `
		SELECT id, tenant_id, COALESCE(user_id, ''), operacao, registro_id,
		       COALESCE(antes, ''), COALESCE(depois, ''), ocorrido_em
		FROM eventos_auditoria
		WHERE tenant_id = $1 AND registro_id = $2
		ORDER BY ocorrido_em`
	rows, err := r.q.Query(ctx, query, tenantID, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar auditoria: %w", err)
	}
	defer rows.Close()

	var out []entity.EventoAuditoria
	for rows.Next() {
		var ev entity.EventoAuditoria
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.UserID, &ev.Operacao,
			&ev.RegistroID, &ev.Antes, &ev.Depois, &ev.OcorridoEm); err != nil {
			return nil, fmt.Errorf("scan evento: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
