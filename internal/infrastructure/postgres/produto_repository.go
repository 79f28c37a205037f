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

var _ repository.ProdutoRepository = (*ProdutoRepo)(nil)

// ProdutoRepo implementação de ProdutoRepository (pool ou tx).
type ProdutoRepo struct {
	q Querier
}

// NewProdutoRepository constrói o adaptador.
func NewProdutoRepository(q Querier) *ProdutoRepo {
	return &ProdutoRepo{q: q}
}

const colunasProduto = `id, tenant_id, sku, nome, ncm, cfop, unidade, preco, created_at, updated_at`

// GetByID busca um produto do tenant.
func (r *ProdutoRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Produto, error) {
	query := `SELECT ` + colunasProduto + ` FROM produtos WHERE tenant_id = $1 AND id = $2`
	var p entity.Produto
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(
		&p.ID, &p.TenantID, &p.SKU, &p.Nome, &p.NCM, &p.CFOP, &p.Unidade, &p.Preco,
		&p.CriadoEm, &p.AtualizadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: produto %s", fiscal.ErrValidacao, id)
	}
	if err != nil {
		return nil, fmt.Errorf("buscar produto: %w", err)
	}
	return &p, nil
}

// GetByIDs busca vários produtos de uma vez, indexados por ID.
// IDs inexistentes simplesmente não aparecem no mapa; o chamador decide.
func (r *ProdutoRepo) GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]entity.Produto, error) {
	if len(ids) == 0 {
		return map[string]entity.Produto{}, nil
	}
	query := `SELECT ` + colunasProduto + ` FROM produtos WHERE tenant_id = $1 AND id = ANY($2)`
	rows, err := r.q.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("buscar produtos: %w", err)
	}
	defer rows.Close()

	out := make(map[string]entity.Produto, len(ids))
	for rows.Next() {
		var p entity.Produto
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Nome, &p.NCM, &p.CFOP,
			&p.Unidade, &p.Preco, &p.CriadoEm, &p.AtualizadoEm); err != nil {
			return nil, fmt.Errorf("scan produto: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
