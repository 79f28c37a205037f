package fiscal

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/application/dto"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	domfiscal "github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/logger"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// EmitirDocumentoUseCase emite NF-e/NFC-e: valida, reserva número, calcula
// tributos, monta e assina o XML, transmite e aplica o desfecho.
//
// Ordem de efeitos, fixa: nada é persistido antes da assinatura sair completa;
// a reserva de número roda em auto-commit (falha depois dela deixa lacuna,
// nunca número duplicado); a baixa de estoque só acontece após a autorização,
// e falha de estoque nunca desfaz o estado fiscal.
type EmitirDocumentoUseCase struct {
	txRunner    TxRunner
	perfilRepo  repository.PerfilFiscalRepository
	serieRepo   repository.SerieFiscalRepository
	docRepo     repository.DocumentoFiscalRepository
	produtoRepo repository.ProdutoRepository
	clienteRepo repository.ClienteRepository
	builder     ConstrutorXML
	certs       CarregadorCertificado
	assinador   Assinador
	qrcode      MontadorQRCode
	gateway     infranfe.SefazGateway
	simulacao   bool
	log         *logger.Logger

	agora    func() time.Time
	codigoNF func() int
}

// NewEmitirDocumentoUseCase constrói o caso de uso.
func NewEmitirDocumentoUseCase(
	txRunner TxRunner,
	perfilRepo repository.PerfilFiscalRepository,
	serieRepo repository.SerieFiscalRepository,
	docRepo repository.DocumentoFiscalRepository,
	produtoRepo repository.ProdutoRepository,
	clienteRepo repository.ClienteRepository,
	builder ConstrutorXML,
	certs CarregadorCertificado,
	assinador Assinador,
	qrcode MontadorQRCode,
	gateway infranfe.SefazGateway,
	simulacao bool,
	log *logger.Logger,
) *EmitirDocumentoUseCase {
	return &EmitirDocumentoUseCase{
		txRunner:    txRunner,
		perfilRepo:  perfilRepo,
		serieRepo:   serieRepo,
		docRepo:     docRepo,
		produtoRepo: produtoRepo,
		clienteRepo: clienteRepo,
		builder:     builder,
		certs:       certs,
		assinador:   assinador,
		qrcode:      qrcode,
		gateway:     gateway,
		simulacao:   simulacao,
		log:         log,
		agora:       time.Now,
		codigoNF:    func() int { return rand.IntN(100_000_000) },
	}
}

// Emitir executa o fluxo completo de emissão para o tenant.
func (uc *EmitirDocumentoUseCase) Emitir(ctx context.Context, tenantID, userID string, in dto.EmitirDocumentoRequest) (*dto.DocumentoResponse, error) {
	// ── 1. Validação do rascunho: nada persistido se falhar aqui ─────────────
	if !nfe.ValidDocumentModels[in.Modelo] {
		return nil, fmt.Errorf("%w: modelo %q", domfiscal.ErrValidacao, in.Modelo)
	}
	if len(in.Itens) == 0 {
		return nil, domfiscal.ErrSemItens
	}
	if in.FormaPagamento != "" && !nfe.ValidPaymentCodes[in.FormaPagamento] {
		return nil, fmt.Errorf("%w: forma de pagamento %q", domfiscal.ErrValidacao, in.FormaPagamento)
	}
	if in.Modelo == nfe.ModeloNFe && in.ClienteID == "" {
		return nil, fmt.Errorf("%w: NF-e exige destinatário identificado", domfiscal.ErrIdentidadeFiscal)
	}

	perfil, err := uc.perfilRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// Simulação só existe para tenant sem certificado: quem tem A1 produziria
	// XML assinado de verdade com autorização fictícia do simulador.
	if uc.simulacao && perfil.TemCertificado() {
		return nil, fmt.Errorf("%w: tenant com certificado configurado não emite em modo simulação",
			domfiscal.ErrConfiguracao)
	}

	var cliente *entity.Cliente
	if in.ClienteID != "" {
		cliente, err = uc.clienteRepo.GetByID(ctx, tenantID, in.ClienteID)
		if err != nil {
			return nil, err
		}
		if err := nfe.ValidarDocumentoFiscal(cliente.Documento); err != nil {
			return nil, fmt.Errorf("%w: cliente %s: %v", domfiscal.ErrIdentidadeFiscal, cliente.ID, err)
		}
	}

	itens, totais, err := uc.montarItens(ctx, tenantID, perfil, in)
	if err != nil {
		return nil, err
	}

	// ── 2. Reserva de número (auto-commit, nunca devolvido) ──────────────────
	serie, err := uc.serieRepo.GetAtiva(ctx, tenantID, in.Modelo)
	if err != nil {
		return nil, err
	}
	numero, err := uc.serieRepo.Reservar(ctx, tenantID, in.Modelo, serie.Serie)
	if err != nil {
		return nil, err
	}

	emissao := uc.agora()
	cNF := uc.codigoNF()
	if int64(cNF) == numero {
		// cNF não pode coincidir com nNF (regra da SEFAZ).
		cNF = (cNF + 1) % 100_000_000
	}
	chave, _, err := nfe.Derivar(nfe.CamposChave{
		UF:          perfil.UF,
		Emissao:     emissao,
		CNPJ:        perfil.CNPJ,
		Modelo:      in.Modelo,
		Serie:       serie.Serie,
		Numero:      numero,
		TipoEmissao: nfe.EmissaoNormal,
		CodigoNF:    cNF,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domfiscal.ErrValidacao, err)
	}

	doc := &entity.DocumentoFiscal{
		TenantID:         tenantID,
		FaturaID:         in.FaturaID,
		Modelo:           in.Modelo,
		Serie:            serie.Serie,
		Numero:           numero,
		Chave:            chave,
		Status:           domfiscal.StatusRascunho,
		ClienteID:        in.ClienteID,
		NaturezaOperacao: naturezaOuPadrao(in.NaturezaOperacao),
		FormaPagamento:   formaOuPadrao(in.FormaPagamento),
		ValorProdutos:    totais.produtos,
		ValorDesconto:    totais.desconto,
		ValorFrete:       in.ValorFrete.Round(2),
		ValorTotal:       totais.produtos.Add(in.ValorFrete.Round(2)).Sub(totais.desconto),
		TotalTributos:    totais.tributos,
		Itens:            itens,
		CriadoEm:         emissao,
		AtualizadoEm:     emissao,
	}

	// ── 3. XML + assinatura: falha aqui não persiste nada ────────────────────
	xmlBytes, err := uc.builder.Build(&infranfe.DocumentoBuildContext{
		Documento: doc,
		Perfil:    perfil,
		Cliente:   cliente,
		Itens:     itens,
	})
	if err != nil {
		return nil, err
	}

	if err := uc.assinar(doc, perfil, xmlBytes); err != nil {
		return nil, err
	}

	if doc.Modelo == nfe.ModeloNFCe {
		docConsumidor := ""
		if cliente != nil {
			docConsumidor = cliente.Documento
		}
		qr, err := uc.qrcode.Montar(infranfe.QRCodeParams{
			Chave:         doc.Chave,
			Ambiente:      perfil.Ambiente,
			DocConsumidor: docConsumidor,
			EmissaoEm:     emissao,
			ValorTotal:    doc.ValorTotal,
			ValorICMS:     totais.icms,
			DigestB64:     doc.DigestValue,
			CSCID:         perfil.CSCID,
			CSCToken:      perfil.CSCToken,
		})
		if err != nil {
			return nil, err
		}
		doc.QRCode = qr
	}

	// ── 4. Persistência PENDENTE + auditoria, atômica ────────────────────────
	doc.Status = domfiscal.StatusPendente
	err = uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
		_ repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
		if err := docRepo.Criar(ctx, doc); err != nil {
			return err
		}
		return audRepo.Registrar(ctx, uc.evento(tenantID, userID, entity.AuditoriaCriacao, doc.ID,
			string(domfiscal.StatusRascunho), string(domfiscal.StatusPendente)))
	})
	if err != nil {
		return nil, err
	}

	// ── 5. Transmissão e desfecho ────────────────────────────────────────────
	res, err := uc.gateway.Autorizar(ctx, []byte(doc.XMLAssinado), doc.Chave)
	if err != nil {
		// Transitório: o documento fica PENDENTE para a sincronização.
		uc.log.Warn().Str("chave", doc.Chave).Err(err).
			Msg("transmissão falhou; documento permanece pendente")
		return dto.NovoDocumentoResponse(doc), nil
	}
	return uc.aplicarDesfecho(ctx, tenantID, userID, doc, res, "autorizacao")
}

// totaisEmissao agregados de somas já arredondadas por linha.
type totaisEmissao struct {
	produtos decimal.Decimal
	desconto decimal.Decimal
	tributos decimal.Decimal
	icms     decimal.Decimal
}

// montarItens resolve produtos, calcula tributos linha a linha e acumula os
// agregados. Arredondamento acontece por linha; os totais são somas.
func (uc *EmitirDocumentoUseCase) montarItens(ctx context.Context, tenantID string, perfil *entity.PerfilFiscal, in dto.EmitirDocumentoRequest) ([]entity.ItemDocumento, totaisEmissao, error) {
	ids := make([]string, 0, len(in.Itens))
	for _, it := range in.Itens {
		ids = append(ids, it.ProdutoID)
	}
	produtos, err := uc.produtoRepo.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, totaisEmissao{}, err
	}

	var itens []entity.ItemDocumento
	var t totaisEmissao
	for i, it := range in.Itens {
		produto, ok := produtos[it.ProdutoID]
		if !ok {
			return nil, totaisEmissao{}, fmt.Errorf("%w: produto %s não encontrado",
				domfiscal.ErrValidacao, it.ProdutoID)
		}
		if !it.Quantidade.IsPositive() {
			return nil, totaisEmissao{}, fmt.Errorf("%w: quantidade do item %d deve ser positiva",
				domfiscal.ErrValidacao, i+1)
		}
		if it.Desconto.IsNegative() {
			return nil, totaisEmissao{}, fmt.Errorf("%w: desconto do item %d negativo",
				domfiscal.ErrValidacao, i+1)
		}

		valorUnitario := it.ValorUnitario
		if valorUnitario.IsZero() {
			valorUnitario = produto.Preco
		}
		bruto := it.Quantidade.Mul(valorUnitario).Round(2)
		if it.Desconto.GreaterThan(bruto) {
			return nil, totaisEmissao{}, fmt.Errorf("%w: desconto do item %d maior que o valor bruto",
				domfiscal.ErrValidacao, i+1)
		}

		tributos, err := domfiscal.CalcularTributos(perfil.Regime, perfil.UF, bruto, it.Desconto.Round(2))
		if err != nil {
			return nil, totaisEmissao{}, err
		}

		itens = append(itens, entity.ItemDocumento{
			ProdutoID:     produto.ID,
			LoteID:        it.LoteID,
			Descricao:     produto.Nome,
			NCM:           produto.NCM,
			CFOP:          produto.CFOP,
			Unidade:       produto.Unidade,
			Quantidade:    it.Quantidade.Round(4),
			ValorUnitario: valorUnitario.Round(4),
			Desconto:      it.Desconto.Round(2),
			ValorBruto:    bruto,
			Tributos:      tributos,
		})
		t.produtos = t.produtos.Add(bruto)
		t.desconto = t.desconto.Add(it.Desconto.Round(2))
		t.tributos = t.tributos.Add(tributos.Total())
		t.icms = t.icms.Add(tributos.ICMS.Valor)
	}
	return itens, t, nil
}

// assinar aplica a assinatura real quando há certificado. Sem certificado, em
// modo simulação, o XML segue sem assinatura com digest local — distinguível e
// restrito a homologação pela carga de configuração.
func (uc *EmitirDocumentoUseCase) assinar(doc *entity.DocumentoFiscal, perfil *entity.PerfilFiscal, xmlBytes []byte) error {
	if !perfil.TemCertificado() {
		if !uc.simulacao {
			return domfiscal.ErrSemCertificado
		}
		digest := sha256.Sum256(xmlBytes)
		doc.XMLAssinado = string(xmlBytes)
		doc.DigestValue = base64.StdEncoding.EncodeToString(digest[:])
		return nil
	}

	cert, err := uc.certs.Carregar(perfil)
	if err != nil {
		return err
	}
	res, err := uc.assinador.Assinar(xmlBytes, doc.Chave, cert)
	if err != nil {
		return err
	}
	doc.XMLAssinado = string(res.XMLAssinado)
	doc.DigestValue = res.DigestB64
	return nil
}

// aplicarDesfecho traduz a resposta da SEFAZ na transição de estado local e
// nos efeitos colaterais (histórico, auditoria, estoque).
func (uc *EmitirDocumentoUseCase) aplicarDesfecho(ctx context.Context, tenantID, userID string, doc *entity.DocumentoFiscal, res *infranfe.ResultadoSefaz, operacao string) (*dto.DocumentoResponse, error) {
	resposta := &entity.RespostaSefaz{
		DocumentoID: doc.ID,
		Operacao:    operacao,
		CStat:       res.CStat,
		Motivo:      res.Motivo,
		Protocolo:   res.Protocolo,
		Payload:     res.Payload,
		RecebidaEm:  uc.agora(),
	}

	switch infranfe.Classificar(res.CStat) {
	case infranfe.DesfechoAutorizado:
		if err := domfiscal.ValidarTransicao(doc.Status, domfiscal.StatusAutorizada); err != nil {
			return nil, err
		}
		autorizadaEm := uc.agora()
		anterior := doc.Status
		doc.Status = domfiscal.StatusAutorizada
		doc.Protocolo = res.Protocolo
		doc.AutorizadaEm = &autorizadaEm
		doc.MotivoSefaz = res.Motivo
		// A flag nasce ligada junto com a autorização: se o processo cair
		// antes da baixa, a sincronização ainda enxerga a pendência. Só a
		// transação de estoque completa desliga.
		doc.EstoquePendente = true

		err := uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
			_ repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
			if err := docRepo.Atualizar(ctx, doc); err != nil {
				return err
			}
			if err := docRepo.RegistrarResposta(ctx, resposta); err != nil {
				return err
			}
			return audRepo.Registrar(ctx, uc.evento(tenantID, userID, entity.AuditoriaAutorizacao,
				doc.ID, string(anterior), string(doc.Status)))
		})
		if err != nil {
			return nil, err
		}

		// Baixa de estoque depois do estado fiscal, nunca antes. Falha aqui
		// deixa estoque_pendente ligado e não desfaz a autorização.
		uc.baixarEstoque(ctx, tenantID, doc)
		return dto.NovoDocumentoResponse(doc), nil

	case infranfe.DesfechoDenegado, infranfe.DesfechoRejeitado:
		if err := domfiscal.ValidarTransicao(doc.Status, domfiscal.StatusDenegada); err != nil {
			return nil, err
		}
		anterior := doc.Status
		doc.Status = domfiscal.StatusDenegada
		doc.MotivoSefaz = res.Motivo

		err := uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
			_ repository.LoteEstoqueRepository, audRepo repository.AuditoriaRepository) error {
			if err := docRepo.Atualizar(ctx, doc); err != nil {
				return err
			}
			if err := docRepo.RegistrarResposta(ctx, resposta); err != nil {
				return err
			}
			return audRepo.Registrar(ctx, uc.evento(tenantID, userID, entity.AuditoriaDenegacao,
				doc.ID, string(anterior), string(doc.Status)))
		})
		if err != nil {
			return nil, err
		}
		// O motivo sobe verbatim; o estado terminal já está persistido.
		return dto.NovoDocumentoResponse(doc), fmt.Errorf("%w: %s", domfiscal.ErrDenegada, res.Motivo)

	default: // pendente ou transitório: permanece PENDENTE
		_ = uc.docRepo.RegistrarResposta(ctx, resposta)
		uc.log.Info().Str("chave", doc.Chave).Str("cstat", res.CStat).
			Msg("documento permanece pendente")
		return dto.NovoDocumentoResponse(doc), nil
	}
}

// baixarEstoque aplica a baixa FEFO de todos os itens em uma transação. Erro
// não sobe: o documento fica com estoque_pendente e a sincronização reexecuta.
func (uc *EmitirDocumentoUseCase) baixarEstoque(ctx context.Context, tenantID string, doc *entity.DocumentoFiscal) {
	err := uc.txRunner.Run(ctx, func(docRepo repository.DocumentoFiscalRepository,
		loteRepo repository.LoteEstoqueRepository, _ repository.AuditoriaRepository) error {
		for i := range doc.Itens {
			item := &doc.Itens[i]
			baixas, err := loteRepo.BaixarFEFO(ctx, tenantID, item.ProdutoID, item.LoteID, item.Quantidade)
			if err != nil {
				return err
			}
			for _, b := range baixas {
				if err := loteRepo.RegistrarBaixa(ctx, &entity.BaixaEstoque{
					TenantID:    tenantID,
					DocumentoID: doc.ID,
					ItemID:      item.ID,
					LoteID:      b.LoteID,
					Quantidade:  b.Quantidade,
				}); err != nil {
					return err
				}
			}
		}
		doc.EstoquePendente = false
		return docRepo.Atualizar(ctx, doc)
	})
	if err != nil {
		// estoque_pendente já foi persistido junto com a autorização; basta
		// refletir na cópia em memória e deixar a sincronização reexecutar.
		doc.EstoquePendente = true
		uc.log.Warn().Str("documento", doc.ID).Err(err).
			Msg("baixa de estoque falhou; documento segue com estoque pendente")
	}
}

func (uc *EmitirDocumentoUseCase) evento(tenantID, userID, operacao, registroID, antes, depois string) *entity.EventoAuditoria {
	return &entity.EventoAuditoria{
		TenantID:   tenantID,
		UserID:     userID,
		Operacao:   operacao,
		RegistroID: registroID,
		Antes:      antes,
		Depois:     depois,
		OcorridoEm: uc.agora(),
	}
}

func naturezaOuPadrao(s string) string {
	if s == "" {
		return "VENDA"
	}
	return s
}

func formaOuPadrao(s string) string {
	if s == "" {
		return nfe.PagamentoDinheiro
	}
	return s
}
