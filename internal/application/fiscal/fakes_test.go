package fiscal_test

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
)

// bancoFake implementa todos os repositórios em memória, compartilhando o
// mesmo estado — o suficiente para exercitar a orquestração dos casos de uso
// sem Postgres.
type bancoFake struct {
	perfil   *entity.PerfilFiscal
	serie    *entity.SerieFiscal
	produtos map[string]entity.Produto
	clientes map[string]*entity.Cliente
	lotes    []*entity.LoteEstoque

	documentos []*entity.DocumentoFiscal
	respostas  []entity.RespostaSefaz
	correcoes  []entity.Correcao
	baixas     []entity.BaixaEstoque
	auditoria  []entity.EventoAuditoria

	// trilha de cada Atualizar, na ordem, para inspecionar estados
	// intermediários persistidos entre transações
	atualizacoes []entity.DocumentoFiscal

	falhaBaixa bool // força erro em BaixarFEFO (simula falha pós-autorização)
	seq        int
}

// Assinaturas colidem entre interfaces (GetByID devolve tipos distintos), então
// o bancoFake implementa direto as portas de documento, perfil, estoque e
// auditoria; séries, produtos e clientes ganham wrappers dedicados abaixo.
var _ repository.DocumentoFiscalRepository = (*bancoFake)(nil)
var _ repository.PerfilFiscalRepository = (*bancoFake)(nil)
var _ repository.LoteEstoqueRepository = (*bancoFake)(nil)
var _ repository.AuditoriaRepository = (*bancoFake)(nil)
var _ repository.SerieFiscalRepository = seriesFake{}
var _ repository.ProdutoRepository = produtosFake{}
var _ repository.ClienteRepository = clientesFake{}

func (b *bancoFake) proximoID(prefixo string) string {
	b.seq++
	return fmt.Sprintf("%s-%d", prefixo, b.seq)
}

// ── DocumentoFiscalRepository ────────────────────────────────────────────────

func (b *bancoFake) Criar(_ context.Context, doc *entity.DocumentoFiscal) error {
	for _, d := range b.documentos {
		if d.TenantID == doc.TenantID && d.Chave == doc.Chave {
			return errors.New("chave duplicada")
		}
	}
	doc.ID = b.proximoID("doc")
	for i := range doc.Itens {
		doc.Itens[i].ID = b.proximoID("item")
		doc.Itens[i].DocumentoID = doc.ID
	}
	copia := *doc
	b.documentos = append(b.documentos, &copia)
	return nil
}

func (b *bancoFake) GetByID(_ context.Context, tenantID, id string) (*entity.DocumentoFiscal, error) {
	for _, d := range b.documentos {
		if d.TenantID == tenantID && d.ID == id {
			copia := *d
			return &copia, nil
		}
	}
	return nil, fiscal.ErrDocumentoNaoEncontrado
}

func (b *bancoFake) GetByChave(_ context.Context, tenantID, chave string) (*entity.DocumentoFiscal, error) {
	for _, d := range b.documentos {
		if d.TenantID == tenantID && d.Chave == chave {
			copia := *d
			return &copia, nil
		}
	}
	return nil, fiscal.ErrDocumentoNaoEncontrado
}

func (b *bancoFake) Atualizar(_ context.Context, doc *entity.DocumentoFiscal) error {
	for i, d := range b.documentos {
		if d.TenantID == doc.TenantID && d.ID == doc.ID {
			copia := *doc
			if d.XMLAssinado != "" {
				copia.XMLAssinado = d.XMLAssinado // imutável após a criação
			}
			b.documentos[i] = &copia
			b.atualizacoes = append(b.atualizacoes, copia)
			return nil
		}
	}
	return fiscal.ErrDocumentoNaoEncontrado
}

func (b *bancoFake) ListarPendentes(_ context.Context, tenantID string, limite int) ([]entity.DocumentoFiscal, error) {
	var out []entity.DocumentoFiscal
	for _, d := range b.documentos {
		if d.TenantID != tenantID {
			continue
		}
		if d.Status == fiscal.StatusPendente || d.EstoquePendente {
			out = append(out, *d)
		}
		if len(out) == limite {
			break
		}
	}
	return out, nil
}

func (b *bancoFake) RegistrarResposta(_ context.Context, r *entity.RespostaSefaz) error {
	r.ID = b.proximoID("resp")
	b.respostas = append(b.respostas, *r)
	return nil
}

func (b *bancoFake) ListarRespostas(_ context.Context, _, documentoID string) ([]entity.RespostaSefaz, error) {
	var out []entity.RespostaSefaz
	for _, r := range b.respostas {
		if r.DocumentoID == documentoID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *bancoFake) RegistrarCorrecao(_ context.Context, c *entity.Correcao) error {
	for _, existente := range b.correcoes {
		if existente.DocumentoID == c.DocumentoID && existente.Sequencia == c.Sequencia {
			return errors.New("sequência duplicada")
		}
	}
	c.ID = b.proximoID("cce")
	b.correcoes = append(b.correcoes, *c)
	return nil
}

func (b *bancoFake) ListarCorrecoes(_ context.Context, _, documentoID string) ([]entity.Correcao, error) {
	var out []entity.Correcao
	for _, c := range b.correcoes {
		if c.DocumentoID == documentoID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ── SerieFiscalRepository (wrapper) ──────────────────────────────────────────

type seriesFake struct{ b *bancoFake }

func (s seriesFake) Reservar(_ context.Context, tenantID, modelo string, serie int) (int64, error) {
	sf := s.b.serie
	if sf == nil || sf.TenantID != tenantID || sf.Modelo != modelo || sf.Serie != serie || !sf.Ativa {
		return 0, fiscal.ErrSerieInativa
	}
	n := sf.ProximoNumero
	sf.ProximoNumero++
	return n, nil
}

func (s seriesFake) GetAtiva(_ context.Context, tenantID, modelo string) (*entity.SerieFiscal, error) {
	sf := s.b.serie
	if sf == nil || sf.TenantID != tenantID || sf.Modelo != modelo || !sf.Ativa {
		return nil, fiscal.ErrSerieInativa
	}
	copia := *sf
	return &copia, nil
}

func (s seriesFake) Criar(_ context.Context, sf *entity.SerieFiscal) error {
	s.b.serie = sf
	return nil
}

func (s seriesFake) Encerrar(_ context.Context, tenantID, modelo string, serie int) error {
	sf := s.b.serie
	if sf != nil && sf.TenantID == tenantID && sf.Modelo == modelo && sf.Serie == serie {
		sf.Ativa = false
		return nil
	}
	return fiscal.ErrSerieInativa
}

// ── PerfilFiscalRepository / ProdutoRepository / ClienteRepository ───────────

func (b *bancoFake) GetByTenant(_ context.Context, tenantID string) (*entity.PerfilFiscal, error) {
	if b.perfil == nil || b.perfil.TenantID != tenantID {
		return nil, fiscal.ErrPerfilAusente
	}
	copia := *b.perfil
	return &copia, nil
}

func (b *bancoFake) GetByIDs(_ context.Context, tenantID string, ids []string) (map[string]entity.Produto, error) {
	out := make(map[string]entity.Produto, len(ids))
	for _, id := range ids {
		if p, ok := b.produtos[id]; ok && p.TenantID == tenantID {
			out[id] = p
		}
	}
	return out, nil
}

// ── LoteEstoqueRepository ────────────────────────────────────────────────────

func (b *bancoFake) BaixarFEFO(_ context.Context, tenantID, produtoID, loteID string, qtd decimal.Decimal) ([]repository.BaixaLote, error) {
	if b.falhaBaixa {
		return nil, errors.New("estoque indisponível")
	}
	candidatos := make([]*entity.LoteEstoque, 0, len(b.lotes))
	for _, l := range b.lotes {
		if l.TenantID != tenantID || l.ProdutoID != produtoID {
			continue
		}
		if loteID != "" && l.ID != loteID {
			continue
		}
		candidatos = append(candidatos, l)
	}
	sort.Slice(candidatos, func(i, j int) bool {
		if !candidatos[i].Validade.Equal(candidatos[j].Validade) {
			return candidatos[i].Validade.Before(candidatos[j].Validade)
		}
		return candidatos[i].ID < candidatos[j].ID
	})

	restante := qtd
	var baixas []repository.BaixaLote
	for _, l := range candidatos {
		if !restante.IsPositive() {
			break
		}
		tira := decimal.Min(restante, l.Quantidade)
		if !tira.IsPositive() {
			continue
		}
		l.Quantidade = l.Quantidade.Sub(tira)
		restante = restante.Sub(tira)
		baixas = append(baixas, repository.BaixaLote{LoteID: l.ID, Quantidade: tira})
	}
	if restante.IsPositive() {
		// Sem baixa parcial: desfaz o que tirou, como a transação real faria.
		for _, bl := range baixas {
			for _, l := range b.lotes {
				if l.ID == bl.LoteID {
					l.Quantidade = l.Quantidade.Add(bl.Quantidade)
				}
			}
		}
		return nil, errors.New("estoque insuficiente")
	}
	return baixas, nil
}

func (b *bancoFake) Repor(_ context.Context, tenantID, loteID string, qtd decimal.Decimal) error {
	for _, l := range b.lotes {
		if l.TenantID == tenantID && l.ID == loteID {
			l.Quantidade = l.Quantidade.Add(qtd)
			return nil
		}
	}
	return errors.New("lote não encontrado")
}

func (b *bancoFake) RegistrarBaixa(_ context.Context, bx *entity.BaixaEstoque) error {
	bx.ID = b.proximoID("bx")
	b.baixas = append(b.baixas, *bx)
	return nil
}

func (b *bancoFake) ListarBaixasPorDocumento(_ context.Context, tenantID, documentoID string) ([]entity.BaixaEstoque, error) {
	var out []entity.BaixaEstoque
	for _, bx := range b.baixas {
		if bx.TenantID == tenantID && bx.DocumentoID == documentoID {
			out = append(out, bx)
		}
	}
	return out, nil
}

func (b *bancoFake) ListarPorProduto(_ context.Context, tenantID, produtoID string) ([]entity.LoteEstoque, error) {
	var out []entity.LoteEstoque
	for _, l := range b.lotes {
		if l.TenantID == tenantID && l.ProdutoID == produtoID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// ── AuditoriaRepository ──────────────────────────────────────────────────────

func (b *bancoFake) Registrar(_ context.Context, ev *entity.EventoAuditoria) error {
	ev.ID = b.proximoID("aud")
	b.auditoria = append(b.auditoria, *ev)
	return nil
}

func (b *bancoFake) ListarPorDocumento(_ context.Context, tenantID, documentoID string) ([]entity.EventoAuditoria, error) {
	var out []entity.EventoAuditoria
	for _, ev := range b.auditoria {
		if ev.TenantID == tenantID && ev.RegistroID == documentoID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type produtosFake struct{ b *bancoFake }

func (p produtosFake) GetByID(_ context.Context, tenantID, id string) (*entity.Produto, error) {
	if prod, ok := p.b.produtos[id]; ok && prod.TenantID == tenantID {
		copia := prod
		return &copia, nil
	}
	return nil, fmt.Errorf("%w: produto %s", fiscal.ErrValidacao, id)
}

func (p produtosFake) GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]entity.Produto, error) {
	return p.b.GetByIDs(ctx, tenantID, ids)
}

type clientesFake struct{ b *bancoFake }

func (c clientesFake) GetByID(_ context.Context, tenantID, id string) (*entity.Cliente, error) {
	if cl, ok := c.b.clientes[id]; ok && cl.TenantID == tenantID {
		copia := *cl
		return &copia, nil
	}
	return nil, fmt.Errorf("%w: cliente %s", fiscal.ErrValidacao, id)
}

// txRunnerFake entrega os próprios repositórios em memória; não há transação
// real, então efeitos parciais de um fn com erro podem vazar — os testes só
// verificam caminhos em que isso não importa.
type txRunnerFake struct{ b *bancoFake }

func (tx txRunnerFake) Run(_ context.Context, fn func(
	repository.DocumentoFiscalRepository,
	repository.LoteEstoqueRepository,
	repository.AuditoriaRepository,
) error) error {
	return fn(tx.b, tx.b, tx.b)
}

// ── Colaboradores de infraestrutura ──────────────────────────────────────────

type gatewayFake struct {
	autorizar    *infranfe.ResultadoSefaz
	autorizarErr error
	consultar    *infranfe.ResultadoSefaz
	cancelar     *infranfe.ResultadoSefaz
	correcao     *infranfe.ResultadoSefaz

	chamadasAutorizar int
	chamadasCancelar  int
}

var _ infranfe.SefazGateway = (*gatewayFake)(nil)

func (g *gatewayFake) Autorizar(_ context.Context, _ []byte, _ string) (*infranfe.ResultadoSefaz, error) {
	g.chamadasAutorizar++
	if g.autorizarErr != nil {
		return nil, g.autorizarErr
	}
	return g.autorizar, nil
}

func (g *gatewayFake) ConsultarProtocolo(_ context.Context, _ string) (*infranfe.ResultadoSefaz, error) {
	if g.consultar == nil {
		return nil, fiscal.ErrTransitorio
	}
	return g.consultar, nil
}

func (g *gatewayFake) Cancelar(_ context.Context, _, _, _ string) (*infranfe.ResultadoSefaz, error) {
	g.chamadasCancelar++
	if g.cancelar == nil {
		return nil, fiscal.ErrTransitorio
	}
	return g.cancelar, nil
}

func (g *gatewayFake) RegistrarCorrecao(_ context.Context, _, _ string, _ int) (*infranfe.ResultadoSefaz, error) {
	if g.correcao == nil {
		return nil, fiscal.ErrTransitorio
	}
	return g.correcao, nil
}

type construtorFake struct{}

func (construtorFake) Build(ctx *infranfe.DocumentoBuildContext) ([]byte, error) {
	return []byte(`<NFe><infNFe Id="NFe` + ctx.Documento.Chave + `"/></NFe>`), nil
}

type assinadorFake struct{ err error }

func (a assinadorFake) Assinar(xmlBytes []byte, _ string, _ tls.Certificate) (*infranfe.ResultadoAssinatura, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &infranfe.ResultadoAssinatura{
		XMLAssinado: append(xmlBytes, []byte("<!--assinado-->")...),
		DigestB64:   "ZGlnZXN0LWZha2U=",
	}, nil
}

type certificadosFake struct{ err error }

func (c certificadosFake) Carregar(_ *entity.PerfilFiscal) (tls.Certificate, error) {
	return tls.Certificate{}, c.err
}

type qrcodeFake struct{}

func (qrcodeFake) Montar(p infranfe.QRCodeParams) (string, error) {
	return "https://homologacao.nfce.fazenda.sp.gov.br/qrcode?p=" + p.Chave, nil
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

func novoBancoFake(modelo string) *bancoFake {
	agora := time.Now()
	return &bancoFake{
		perfil: &entity.PerfilFiscal{
			ID:              "perfil-1",
			TenantID:        "tenant-1",
			RazaoSocial:     "Farmácia Modelo LTDA",
			CNPJ:            "12345678000195",
			IE:              "111222333444",
			Regime:          "3",
			UF:              "35",
			CodigoMunicipio: "3550308",
			Municipio:       "São Paulo",
			CEP:             "01001000",
			Ambiente:        "2",
			Ativo:           true,
		},
		serie: &entity.SerieFiscal{
			ID:            "serie-1",
			TenantID:      "tenant-1",
			Modelo:        modelo,
			Serie:         1,
			ProximoNumero: 42,
			Ativa:         true,
		},
		produtos: map[string]entity.Produto{
			"prod-1": {
				ID:       "prod-1",
				TenantID: "tenant-1",
				SKU:      "DIP500",
				Nome:     "Dipirona 500mg 10cp",
				NCM:      "30049099",
				CFOP:     "5102",
				Unidade:  "CX",
				Preco:    decimal.RequireFromString("33.37"),
			},
		},
		clientes: map[string]*entity.Cliente{
			"cli-1": {
				ID:              "cli-1",
				TenantID:        "tenant-1",
				Nome:            "José da Silva",
				Documento:       "52998224725",
				Municipio:       "São Paulo",
				CodigoMunicipio: "3550308",
				UF:              "SP",
				CEP:             "04001000",
			},
		},
		lotes: []*entity.LoteEstoque{
			{
				ID:         "lote-a",
				TenantID:   "tenant-1",
				ProdutoID:  "prod-1",
				NumeroLote: "L2024A",
				Validade:   agora.AddDate(0, 2, 0),
				Quantidade: decimal.NewFromInt(2),
			},
			{
				ID:         "lote-b",
				TenantID:   "tenant-1",
				ProdutoID:  "prod-1",
				NumeroLote: "L2024B",
				Validade:   agora.AddDate(0, 6, 0),
				Quantidade: decimal.NewFromInt(10),
			},
		},
	}
}

func loteQuantidade(b *bancoFake, loteID string) decimal.Decimal {
	for _, l := range b.lotes {
		if l.ID == loteID {
			return l.Quantidade
		}
	}
	return decimal.Zero
}
