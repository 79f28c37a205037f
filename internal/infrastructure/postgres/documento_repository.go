package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
)

var _ repository.DocumentoFiscalRepository = (*DocumentoFiscalRepo)(nil)

// DocumentoFiscalRepo implementação de DocumentoFiscalRepository (pool ou tx).
type DocumentoFiscalRepo struct {
	q Querier
}

// NewDocumentoFiscalRepository constrói o adaptador.
func NewDocumentoFiscalRepository(q Querier) *DocumentoFiscalRepo {
	return &DocumentoFiscalRepo{q: q}
}

const colunasDocumento = `
	id, tenant_id, fatura_id, modelo, serie, numero, chave, status,
	protocolo, autorizada_em, motivo_sefaz, cliente_id, natureza_operacao,
	forma_pagamento, valor_produtos, valor_desconto, valor_frete, valor_total,
	total_tributos, xml_assinado, digest_value, qr_code, estoque_pendente,
	created_at, updated_at`

// Criar grava o documento e seus itens. Roda dentro de uma transação do
// TxRunner quando precisa ser atômico com a auditoria.
func (r *DocumentoFiscalRepo) Criar(ctx context.Context, doc *entity.DocumentoFiscal) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	query := `
		INSERT INTO documentos_fiscais (` + colunasDocumento + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.TenantID, nullIfEmpty(doc.FaturaID), doc.Modelo, doc.Serie, doc.Numero,
		doc.Chave, string(doc.Status), nullIfEmpty(doc.Protocolo), doc.AutorizadaEm,
		nullIfEmpty(doc.MotivoSefaz), nullIfEmpty(doc.ClienteID), doc.NaturezaOperacao,
		doc.FormaPagamento, doc.ValorProdutos, doc.ValorDesconto, doc.ValorFrete,
		doc.ValorTotal, doc.TotalTributos, nullIfEmpty(doc.XMLAssinado),
		nullIfEmpty(doc.DigestValue), nullIfEmpty(doc.QRCode), doc.EstoquePendente,
		doc.CriadoEm, doc.AtualizadoEm,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("chave de acesso já registrada: %w", err)
		}
		return fmt.Errorf("insert documento: %w", err)
	}
	for i := range doc.Itens {
		if err := r.criarItem(ctx, doc.ID, &doc.Itens[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *DocumentoFiscalRepo) criarItem(ctx context.Context, docID string, item *entity.ItemDocumento) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.DocumentoID = docID
	query := `
		INSERT INTO itens_documento (
			id, documento_id, produto_id, lote_id, descricao, ncm, cfop, unidade,
			quantidade, valor_unitario, desconto, valor_bruto,
			icms_codigo, icms_base, icms_aliquota, icms_valor,
			pis_codigo, pis_base, pis_aliquota, pis_valor,
			cofins_codigo, cofins_base, cofins_aliquota, cofins_valor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`
	t := item.Tributos
	_, err := r.q.Exec(ctx, query,
		item.ID, item.DocumentoID, item.ProdutoID, nullIfEmpty(item.LoteID),
		item.Descricao, item.NCM, item.CFOP, item.Unidade,
		item.Quantidade, item.ValorUnitario, item.Desconto, item.ValorBruto,
		t.ICMS.Codigo, t.ICMS.Base, t.ICMS.Aliquota, t.ICMS.Valor,
		t.PIS.Codigo, t.PIS.Base, t.PIS.Aliquota, t.PIS.Valor,
		t.COFINS.Codigo, t.COFINS.Base, t.COFINS.Aliquota, t.COFINS.Valor,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetByID carrega o documento e seus itens.
func (r *DocumentoFiscalRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.DocumentoFiscal, error) {
	return r.getPor(ctx, "id = $2", tenantID, id)
}

// GetByChave carrega o documento pela chave de acesso.
func (r *DocumentoFiscalRepo) GetByChave(ctx context.Context, tenantID, chave string) (*entity.DocumentoFiscal, error) {
	return r.getPor(ctx, "chave = $2", tenantID, chave)
}

func (r *DocumentoFiscalRepo) getPor(ctx context.Context, cond, tenantID, valor string) (*entity.DocumentoFiscal, error) {
	query := `SELECT ` + colunasDocumento + `
		FROM documentos_fiscais
		WHERE tenant_id = $1 AND ` + cond
	doc, err := scanDocumento(r.q.QueryRow(ctx, query, tenantID, valor))
	if err != nil {
		return nil, err
	}
	itens, err := r.listarItens(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Itens = itens
	return doc, nil
}

func (r *DocumentoFiscalRepo) listarItens(ctx context.Context, docID string) ([]entity.ItemDocumento, error) {
	query := `
		SELECT id, documento_id, produto_id, COALESCE(lote_id, ''), descricao, ncm, cfop, unidade,
		       quantidade, valor_unitario, desconto, valor_bruto,
		       icms_codigo, icms_base, icms_aliquota, icms_valor,
		       pis_codigo, pis_base, pis_aliquota, pis_valor,
		       cofins_codigo, cofins_base, cofins_aliquota, cofins_valor
		FROM itens_documento
		WHERE documento_id = $1
		ORDER BY id`
	rows, err := r.q.Query(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("listar itens: %w", err)
	}
	defer rows.Close()

	var itens []entity.ItemDocumento
	for rows.Next() {
		var it entity.ItemDocumento
		t := &it.Tributos
		err := rows.Scan(
			&it.ID, &it.DocumentoID, &it.ProdutoID, &it.LoteID,
			&it.Descricao, &it.NCM, &it.CFOP, &it.Unidade,
			&it.Quantidade, &it.ValorUnitario, &it.Desconto, &it.ValorBruto,
			&t.ICMS.Codigo, &t.ICMS.Base, &t.ICMS.Aliquota, &t.ICMS.Valor,
			&t.PIS.Codigo, &t.PIS.Base, &t.PIS.Aliquota, &t.PIS.Valor,
			&t.COFINS.Codigo, &t.COFINS.Base, &t.COFINS.Aliquota, &t.COFINS.Valor,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		itens = append(itens, it)
	}
	return itens, rows.Err()
}

// Atualizar grava o estado mutável: status, protocolo, motivo, QR e flags.
// O XML assinado só é gravado se ainda não havia um (retenção imutável).
func (r *DocumentoFiscalRepo) Atualizar(ctx context.Context, doc *entity.DocumentoFiscal) error {
	query := `
		UPDATE documentos_fiscais
		SET status           = $3,
		    protocolo        = COALESCE($4, protocolo),
		    autorizada_em    = COALESCE($5, autorizada_em),
		    motivo_sefaz     = COALESCE($6, motivo_sefaz),
		    xml_assinado     = COALESCE(xml_assinado, $7),
		    digest_value     = COALESCE(digest_value, $8),
		    qr_code          = COALESCE($9, qr_code),
		    estoque_pendente = $10,
		    updated_at       = now()
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		doc.TenantID, doc.ID, string(doc.Status),
		nullIfEmpty(doc.Protocolo), doc.AutorizadaEm, nullIfEmpty(doc.MotivoSefaz),
		nullIfEmpty(doc.XMLAssinado), nullIfEmpty(doc.DigestValue),
		nullIfEmpty(doc.QRCode), doc.EstoquePendente,
	)
	if err != nil {
		return fmt.Errorf("update documento: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fiscal.ErrDocumentoNaoEncontrado
	}
	return nil
}

// ListarPendentes devolve documentos aguardando SEFAZ ou com estoque pendente,
// mais antigos primeiro, para o ciclo de sincronização.
func (r *DocumentoFiscalRepo) ListarPendentes(ctx context.Context, tenantID string, limite int) ([]entity.DocumentoFiscal, error) {
	if limite <= 0 {
		limite = 50
	}
	query := `SELECT ` + colunasDocumento + `
		FROM documentos_fiscais
		WHERE tenant_id = $1 AND (status = $2 OR estoque_pendente)
		ORDER BY created_at
		LIMIT $3`
	rows, err := r.q.Query(ctx, query, tenantID, string(fiscal.StatusPendente), limite)
	if err != nil {
		return nil, fmt.Errorf("listar pendentes: %w", err)
	}
	defer rows.Close()

	var docs []entity.DocumentoFiscal
	for rows.Next() {
		doc, err := scanDocumento(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// RegistrarResposta acrescenta uma resposta da SEFAZ ao histórico append-only.
func (r *DocumentoFiscalRepo) RegistrarResposta(ctx context.Context, resp *entity.RespostaSefaz) error {
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	query := `
		INSERT INTO respostas_sefaz (id, documento_id, operacao, cstat, motivo, protocolo, payload, recebida_em)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		resp.ID, resp.DocumentoID, resp.Operacao, resp.CStat, resp.Motivo,
		nullIfEmpty(resp.Protocolo), resp.Payload, resp.RecebidaEm,
	)
	if err != nil {
		return fmt.Errorf("insert resposta sefaz: %w", err)
	}
	return nil
}

// ListarRespostas devolve o histórico de respostas em ordem de recebimento.
func (r *DocumentoFiscalRepo) ListarRespostas(ctx context.Context, tenantID, documentoID string) ([]entity.RespostaSefaz, error) {
	query := `
		SELECT r.id, r.documento_id, r.operacao, r.cstat, r.motivo, COALESCE(r.protocolo, ''), r.payload, r.recebida_em
		FROM respostas_sefaz r
		JOIN documentos_fiscais d ON d.id = r.documento_id
		WHERE d.tenant_id = $1 AND r.documento_id = $2
		ORDER BY r.recebida_em`
	rows, err := r.q.Query(ctx, query, tenantID, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar respostas: %w", err)
	}
	defer rows.Close()

	var out []entity.RespostaSefaz
	for rows.Next() {
		var resp entity.RespostaSefaz
		if err := rows.Scan(&resp.ID, &resp.DocumentoID, &resp.Operacao, &resp.CStat,
			&resp.Motivo, &resp.Protocolo, &resp.Payload, &resp.RecebidaEm); err != nil {
			return nil, fmt.Errorf("scan resposta: %w", err)
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// RegistrarCorrecao acrescenta uma carta de correção; a unicidade da
// sequência por documento é garantida por constraint.
func (r *DocumentoFiscalRepo) RegistrarCorrecao(ctx context.Context, c *entity.Correcao) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO correcoes (id, documento_id, sequencia, texto, protocolo, registrada_em)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, c.ID, c.DocumentoID, c.Sequencia, c.Texto,
		nullIfEmpty(c.Protocolo), c.RegistradaEm)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sequência de correção já registrada: %w", err)
		}
		return fmt.Errorf("insert correção: %w", err)
	}
	return nil
}

// ListarCorrecoes devolve as cartas de correção em ordem de sequência.
func (r *DocumentoFiscalRepo) ListarCorrecoes(ctx context.Context, tenantID, documentoID string) ([]entity.Correcao, error) {
	query := `
		SELECT c.id, c.documento_id, c.sequencia, c.texto, COALESCE(c.protocolo, ''), c.registrada_em
		FROM correcoes c
		JOIN documentos_fiscais d ON d.id = c.documento_id
		WHERE d.tenant_id = $1 AND c.documento_id = $2
		ORDER BY c.sequencia`
	rows, err := r.q.Query(ctx, query, tenantID, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar correções: %w", err)
	}
	defer rows.Close()

	var out []entity.Correcao
	for rows.Next() {
		var c entity.Correcao
		if err := rows.Scan(&c.ID, &c.DocumentoID, &c.Sequencia, &c.Texto,
			&c.Protocolo, &c.RegistradaEm); err != nil {
			return nil, fmt.Errorf("scan correção: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanDocumento mapeia uma linha de documentos_fiscais na entidade.
func scanDocumento(row pgx.Row) (*entity.DocumentoFiscal, error) {
	var doc entity.DocumentoFiscal
	var status string
	var faturaID, protocolo, motivo, clienteID, xmlAssinado, digest, qrCode *string
	err := row.Scan(
		&doc.ID, &doc.TenantID, &faturaID, &doc.Modelo, &doc.Serie, &doc.Numero,
		&doc.Chave, &status, &protocolo, &doc.AutorizadaEm, &motivo, &clienteID,
		&doc.NaturezaOperacao, &doc.FormaPagamento, &doc.ValorProdutos,
		&doc.ValorDesconto, &doc.ValorFrete, &doc.ValorTotal, &doc.TotalTributos,
		&xmlAssinado, &digest, &qrCode, &doc.EstoquePendente,
		&doc.CriadoEm, &doc.AtualizadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fiscal.ErrDocumentoNaoEncontrado
	}
	if err != nil {
		return nil, fmt.Errorf("scan documento: %w", err)
	}
	doc.Status = fiscal.Status(status)
	doc.FaturaID = deref(faturaID)
	doc.Protocolo = deref(protocolo)
	doc.MotivoSefaz = deref(motivo)
	doc.ClienteID = deref(clienteID)
	doc.XMLAssinado = deref(xmlAssinado)
	doc.DigestValue = deref(digest)
	doc.QRCode = deref(qrCode)
	return &doc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
