package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
)

var _ repository.ClienteRepository = (*ClienteRepo)(nil)

// ClienteRepo implementação de ClienteRepository (pool ou tx).
type ClienteRepo struct {
	q Querier
}

// NewClienteRepository constrói o adaptador.
func NewClienteRepository(q Querier) *ClienteRepo {
	return &ClienteRepo{q: q}
}

// GetByID busca um cliente do tenant.
func (r *ClienteRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Cliente, error) {
	query := `
		SELECT id, tenant_id, nome, documento, COALESCE(logradouro, ''), COALESCE(municipio, ''),
		       COALESCE(codigo_municipio, ''), COALESCE(uf, ''), COALESCE(cep, ''),
		       created_at, updated_at
		FROM clientes
		WHERE tenant_id = $1 AND id = $2`
	var c entity.Cliente
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID, &c.TenantID, &c.Nome, &c.Documento, &c.Logradouro, &c.Municipio,
		&c.CodigoMunicipio, &c.UF, &c.CEP, &c.CriadoEm, &c.AtualizadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: cliente %s", fiscal.ErrValidacao, id)
	}
	if err != nil {
		return nil, fmt.Errorf("buscar cliente: %w", err)
	}
	return &c, nil
}
