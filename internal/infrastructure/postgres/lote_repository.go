package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
)

var _ repository.LoteEstoqueRepository = (*LoteEstoqueRepo)(nil)

// LoteEstoqueRepo implementação de LoteEstoqueRepository (pool ou tx).
// BaixarFEFO pressupõe transação: os locks de linha só valem dentro de uma tx.
type LoteEstoqueRepo struct {
	q Querier
}

// NewLoteEstoqueRepository constrói o adaptador.
func NewLoteEstoqueRepository(q Querier) *LoteEstoqueRepo {
	return &LoteEstoqueRepo{q: q}
}

// BaixarFEFO consome a quantidade do produto lote a lote, na ordem de
// validade (vence primeiro, sai primeiro). FOR UPDATE trava as linhas na
// mesma ordem em toda emissão concorrente, o que também evita deadlock.
// Estoque insuficiente devolve erro e o rollback da tx desfaz baixas parciais.
func (r *LoteEstoqueRepo) BaixarFEFO(ctx context.Context, tenantID, produtoID, loteID string, qtd decimal.Decimal) ([]repository.BaixaLote, error) {
	query := `
		SELECT id, quantidade
		FROM lotes_estoque
		WHERE tenant_id = $1 AND produto_id = $2 AND quantidade > 0
		  AND ($3::text IS NULL OR id = $3)
		ORDER BY validade, id
		FOR UPDATE`
	rows, err := r.q.Query(ctx, query, tenantID, produtoID, nullIfEmpty(loteID))
	if err != nil {
		return nil, fmt.Errorf("travar lotes: %w", err)
	}

	type saldo struct {
		id   string
		qtd  decimal.Decimal
	}
	var lotes []saldo
	for rows.Next() {
		var s saldo
		if err := rows.Scan(&s.id, &s.qtd); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan lote: %w", err)
		}
		lotes = append(lotes, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	restante := qtd
	var baixas []repository.BaixaLote
	for _, l := range lotes {
		if !restante.IsPositive() {
			break
		}
		consumo := decimal.Min(restante, l.qtd)
		tag, err := r.q.Exec(ctx, `
			UPDATE lotes_estoque SET quantidade = quantidade - $2, updated_at = now()
			WHERE id = $1 AND quantidade >= $2`, l.id, consumo)
		if err != nil {
			return nil, fmt.Errorf("baixar lote %s: %w", l.id, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("lote %s sem saldo para baixa", l.id)
		}
		baixas = append(baixas, repository.BaixaLote{LoteID: l.id, Quantidade: consumo})
		restante = restante.Sub(consumo)
	}
	if restante.IsPositive() {
		return nil, fmt.Errorf("estoque insuficiente do produto %s: faltam %s", produtoID, restante.String())
	}
	return baixas, nil
}

// Repor devolve a quantidade ao lote (estorno de cancelamento).
func (r *LoteEstoqueRepo) Repor(ctx context.Context, tenantID, loteID string, qtd decimal.Decimal) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE lotes_estoque SET quantidade = quantidade + $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`, tenantID, loteID, qtd)
	if err != nil {
		return fmt.Errorf("repor lote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lote %s não encontrado para reposição", loteID)
	}
	return nil
}

// RegistrarBaixa grava o vínculo documento/item/lote da baixa aplicada.
func (r *LoteEstoqueRepo) RegistrarBaixa(ctx context.Context, b *entity.BaixaEstoque) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO baixas_estoque (id, tenant_id, documento_id, item_id, lote_id, quantidade, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`
	_, err := r.q.Exec(ctx, query, b.ID, b.TenantID, b.DocumentoID, b.ItemID, b.LoteID, b.Quantidade)
	if err != nil {
		return fmt.Errorf("insert baixa: %w", err)
	}
	return nil
}

// ListarBaixasPorDocumento devolve as baixas aplicadas pela autorização.
func (r *LoteEstoqueRepo) ListarBaixasPorDocumento(ctx context.Context, tenantID, documentoID string) ([]entity.BaixaEstoque, error) {
	query := `
		SELECT id, tenant_id, documento_id, item_id, lote_id, quantidade, created_at
		FROM baixas_estoque
		WHERE tenant_id = $1 AND documento_id = $2
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, tenantID, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar baixas: %w", err)
	}
	defer rows.Close()

	var out []entity.BaixaEstoque
	for rows.Next() {
		var b entity.BaixaEstoque
		if err := rows.Scan(&b.ID, &b.TenantID, &b.DocumentoID, &b.ItemID, &b.LoteID,
			&b.Quantidade, &b.CriadaEm); err != nil {
			return nil, fmt.Errorf("scan baixa: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListarPorProduto devolve os lotes do produto na ordem FEFO.
func (r *LoteEstoqueRepo) ListarPorProduto(ctx context.Context, tenantID, produtoID string) ([]entity.LoteEstoque, error) {
	query := `
		SELECT id, tenant_id, produto_id, numero_lote, validade, quantidade, created_at, updated_at
		FROM lotes_estoque
		WHERE tenant_id = $1 AND produto_id = $2
		ORDER BY validade, id`
	rows, err := r.q.Query(ctx, query, tenantID, produtoID)
	if err != nil {
		return nil, fmt.Errorf("listar lotes: %w", err)
	}
	defer rows.Close()

	var out []entity.LoteEstoque
	for rows.Next() {
		var l entity.LoteEstoque
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ProdutoID, &l.NumeroLote,
			&l.Validade, &l.Quantidade, &l.CriadoEm, &l.AtualizadoEm); err != nil {
			return nil, fmt.Errorf("scan lote: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
