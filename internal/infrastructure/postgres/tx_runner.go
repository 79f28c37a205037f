package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/application/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
)

var _ appfiscal.TxRunner = (*TxRunner)(nil)

// TxRunner executa callbacks dentro de uma transação PostgreSQL, com os
// repositórios atados à tx. Usado nos pontos em que documento, estoque e
// auditoria precisam mudar juntos ou não mudar.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constrói o runner com o pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia a transação, executa fn e faz Commit ou Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	docRepo repository.DocumentoFiscalRepository,
	loteRepo repository.LoteEstoqueRepository,
	audRepo repository.AuditoriaRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	docRepo := NewDocumentoFiscalRepository(tx)
	loteRepo := NewLoteEstoqueRepository(tx)
	audRepo := NewAuditoriaRepository(tx)

	if err := fn(docRepo, loteRepo, audRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
