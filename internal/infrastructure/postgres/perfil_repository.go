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

var _ repository.PerfilFiscalRepository = (*PerfilFiscalRepo)(nil)

// PerfilFiscalRepo implementação de PerfilFiscalRepository (pool ou tx).
type PerfilFiscalRepo struct {
	q Querier
}

// NewPerfilFiscalRepository constrói o adaptador.
func NewPerfilFiscalRepository(q Querier) *PerfilFiscalRepo {
	return &PerfilFiscalRepo{q: q}
}

// GetByTenant devolve o perfil ativo do tenant. O blob do certificado sai
// cifrado do banco; a decifra acontece só no CertificadoService.
func (r *PerfilFiscalRepo) GetByTenant(ctx context.Context, tenantID string) (*entity.PerfilFiscal, error) {
	query := `
		SELECT id, tenant_id, razao_social, COALESCE(nome_fantasia, ''), cnpj, ie, regime,
		       uf, codigo_municipio, COALESCE(logradouro, ''), COALESCE(municipio, ''),
		       COALESCE(cep, ''), ambiente, cert_blob, COALESCE(cert_senha, ''),
		       COALESCE(csc_id, ''), COALESCE(csc_token, ''), ativo, created_at, updated_at
		FROM perfis_fiscais
		WHERE tenant_id = $1 AND ativo`
	var p entity.PerfilFiscal
	err := r.q.QueryRow(ctx, query, tenantID).Scan(
		&p.ID, &p.TenantID, &p.RazaoSocial, &p.NomeFantasia, &p.CNPJ, &p.IE, &p.Regime,
		&p.UF, &p.CodigoMunicipio, &p.Logradouro, &p.Municipio, &p.CEP, &p.Ambiente,
		&p.CertBlob, &p.CertSenha, &p.CSCID, &p.CSCToken, &p.Ativo,
		&p.CriadoEm, &p.AtualizadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fiscal.ErrPerfilAusente
	}
	if err != nil {
		return nil, fmt.Errorf("buscar perfil fiscal: %w", err)
	}
	return &p, nil
}
