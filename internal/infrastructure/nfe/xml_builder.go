package nfe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// Namespace oficial do leiaute NF-e/NFC-e 4.00 (Portal Fiscal).
const (
	NsNFe         = "http://www.portalfiscal.inf.br/nfe"
	VersaoLeiaute = "4.00"

	semGTIN      = "SEM GTIN"
	verProc      = "medmanager-fiscal 1.0"
	formatoDhEmi = "2006-01-02T15:04:05-07:00"
)

// DocumentoBuildContext reúne tudo que o builder precisa para serializar um
// documento. Cliente nil significa consumidor não identificado (só NFC-e).
type DocumentoBuildContext struct {
	Documento *entity.DocumentoFiscal
	Perfil    *entity.PerfilFiscal
	Cliente   *entity.Cliente
	Itens     []entity.ItemDocumento
}

// XMLBuilderService serializa o documento no leiaute 4.00, sem assinatura.
// A saída é determinística: o mesmo contexto produz exatamente os mesmos bytes
// (pré-requisito para o digest da assinatura ser reproduzível).
type XMLBuilderService struct{}

// NewXMLBuilderService cria o serviço.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build gera os bytes do <NFe> com o <infNFe Id="NFe..."> preenchido.
// Ordem dos grupos fixada pelo leiaute: ide, emit, dest, det, total, transp,
// pag, infAdic. Grupos opcionais ausentes são omitidos, nunca vazios.
func (s *XMLBuilderService) Build(ctx *DocumentoBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Documento == nil || ctx.Perfil == nil {
		return nil, fmt.Errorf("nfe: faltam documento ou perfil no contexto")
	}
	doc := ctx.Documento
	if len(ctx.Itens) == 0 {
		return nil, fiscal.ErrSemItens
	}
	if len(doc.Chave) != 44 || !nfe.Validar(doc.Chave) {
		return nil, fmt.Errorf("nfe: chave de acesso inválida %q", doc.Chave)
	}
	nfce := doc.Modelo == nfe.ModeloNFCe
	if ctx.Cliente == nil && !nfce {
		return nil, fmt.Errorf("%w: NF-e modelo 55 exige destinatário identificado", fiscal.ErrIdentidadeFiscal)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "NFe"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NsNFe}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// Id do infNFe é a âncora da Reference na assinatura: "NFe" + chave.
	inf := xml.StartElement{
		Name: xml.Name{Local: "infNFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "NFe" + doc.Chave},
			{Name: xml.Name{Local: "versao"}, Value: VersaoLeiaute},
		},
	}
	_ = enc.EncodeToken(inf)

	s.writeIde(enc, ctx, nfce)
	s.writeEmit(enc, ctx.Perfil)
	if ctx.Cliente != nil {
		s.writeDest(enc, ctx.Cliente)
	}
	for i, item := range ctx.Itens {
		s.writeDet(enc, i+1, item, ctx.Perfil.Regime)
	}
	s.writeTotal(enc, doc, ctx.Itens)
	s.writeTransp(enc)
	s.writePag(enc, doc)

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "infNFe"}})
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeIde grupo de identificação. cNF e cDV saem da própria chave, nunca de
// estado à parte, para que chave e XML não possam divergir.
func (s *XMLBuilderService) writeIde(enc *xml.Encoder, ctx *DocumentoBuildContext, nfce bool) {
	doc := ctx.Documento
	perfil := ctx.Perfil

	tpImp := "1" // DANFE retrato
	indFinal := "0"
	indPres := "9"
	if nfce {
		tpImp = "4" // DANFE NFC-e
		indFinal = "1"
		indPres = "1" // operação presencial
	}

	write(enc, "ide", func() {
		write(enc, "cUF", perfil.UF)
		write(enc, "cNF", doc.Chave[35:43])
		write(enc, "natOp", doc.NaturezaOperacao)
		write(enc, "mod", doc.Modelo)
		write(enc, "serie", strconv.Itoa(doc.Serie))
		write(enc, "nNF", strconv.FormatInt(doc.Numero, 10))
		write(enc, "dhEmi", doc.CriadoEm.Format(formatoDhEmi))
		write(enc, "tpNF", "1") // saída
		write(enc, "idDest", "1")
		write(enc, "cMunFG", perfil.CodigoMunicipio)
		write(enc, "tpImp", tpImp)
		write(enc, "tpEmis", nfe.EmissaoNormal)
		write(enc, "cDV", string(doc.Chave[43]))
		write(enc, "tpAmb", perfil.Ambiente)
		write(enc, "finNFe", "1")
		write(enc, "indFinal", indFinal)
		write(enc, "indPres", indPres)
		write(enc, "procEmi", "0")
		write(enc, "verProc", verProc)
	})
}

func (s *XMLBuilderService) writeEmit(enc *xml.Encoder, p *entity.PerfilFiscal) {
	write(enc, "emit", func() {
		write(enc, "CNPJ", somenteDigitos(p.CNPJ))
		write(enc, "xNome", nfe.NormalizarTexto(p.RazaoSocial))
		if p.NomeFantasia != "" {
			write(enc, "xFant", nfe.NormalizarTexto(p.NomeFantasia))
		}
		write(enc, "enderEmit", func() {
			write(enc, "xLgr", nfe.NormalizarTexto(p.Logradouro))
			write(enc, "cMun", p.CodigoMunicipio)
			write(enc, "xMun", nfe.NormalizarTexto(p.Municipio))
			if p.CEP != "" {
				write(enc, "CEP", somenteDigitos(p.CEP))
			}
		})
		write(enc, "IE", somenteDigitos(p.IE))
		write(enc, "CRT", p.Regime)
	})
}

// writeDest destinatário. O elemento CPF/CNPJ sai do comprimento do documento;
// indIEDest 9 (não contribuinte) cobre o varejo farmacêutico.
func (s *XMLBuilderService) writeDest(enc *xml.Encoder, c *entity.Cliente) {
	docNum := somenteDigitos(c.Documento)
	write(enc, "dest", func() {
		if len(docNum) == 14 {
			write(enc, "CNPJ", docNum)
		} else {
			write(enc, "CPF", docNum)
		}
		write(enc, "xNome", nfe.NormalizarTexto(c.Nome))
		if c.Logradouro != "" {
			write(enc, "enderDest", func() {
				write(enc, "xLgr", nfe.NormalizarTexto(c.Logradouro))
				if c.CodigoMunicipio != "" {
					write(enc, "cMun", c.CodigoMunicipio)
				}
				write(enc, "xMun", nfe.NormalizarTexto(c.Municipio))
				if c.CEP != "" {
					write(enc, "CEP", somenteDigitos(c.CEP))
				}
			})
		}
		write(enc, "indIEDest", "9")
	})
}

// writeDet uma linha do documento: produto + detalhamento tributário.
// Quantidade e valor unitário com 4 casas; valores monetários com 2.
func (s *XMLBuilderService) writeDet(enc *xml.Encoder, nItem int, item entity.ItemDocumento, regime string) {
	det := xml.StartElement{
		Name: xml.Name{Local: "det"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "nItem"}, Value: strconv.Itoa(nItem)}},
	}
	_ = enc.EncodeToken(det)

	write(enc, "prod", func() {
		write(enc, "cProd", item.ProdutoID)
		write(enc, "cEAN", semGTIN)
		write(enc, "xProd", nfe.NormalizarTexto(item.Descricao))
		write(enc, "NCM", item.NCM)
		write(enc, "CFOP", item.CFOP)
		write(enc, "uCom", item.Unidade)
		write(enc, "qCom", item.Quantidade.StringFixed(4))
		write(enc, "vUnCom", item.ValorUnitario.StringFixed(4))
		write(enc, "vProd", item.ValorBruto.StringFixed(2))
		write(enc, "cEANTrib", semGTIN)
		write(enc, "uTrib", item.Unidade)
		write(enc, "qTrib", item.Quantidade.StringFixed(4))
		write(enc, "vUnTrib", item.ValorUnitario.StringFixed(4))
		if item.Desconto.IsPositive() {
			write(enc, "vDesc", item.Desconto.StringFixed(2))
		}
		write(enc, "indTot", "1")
	})

	write(enc, "imposto", func() {
		s.writeICMS(enc, item.Tributos.ICMS, regime)
		write(enc, "PIS", func() {
			write(enc, "PISAliq", func() {
				write(enc, "CST", item.Tributos.PIS.Codigo)
				write(enc, "vBC", item.Tributos.PIS.Base.StringFixed(2))
				write(enc, "pPIS", item.Tributos.PIS.Aliquota.StringFixed(4))
				write(enc, "vPIS", item.Tributos.PIS.Valor.StringFixed(2))
			})
		})
		write(enc, "COFINS", func() {
			write(enc, "COFINSAliq", func() {
				write(enc, "CST", item.Tributos.COFINS.Codigo)
				write(enc, "vBC", item.Tributos.COFINS.Base.StringFixed(2))
				write(enc, "pCOFINS", item.Tributos.COFINS.Aliquota.StringFixed(4))
				write(enc, "vCOFINS", item.Tributos.COFINS.Valor.StringFixed(2))
			})
		})
	})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "det"}})
}

// writeICMS escolhe o grupo pelo regime: ICMSSN102 no Simples (CSOSN, sem
// valor destacado), ICMS00 nos regimes normais (CST 00, tributação integral).
func (s *XMLBuilderService) writeICMS(enc *xml.Encoder, t fiscal.Tributo, regime string) {
	write(enc, "ICMS", func() {
		if regime == nfe.RegimeSimples {
			write(enc, "ICMSSN102", func() {
				write(enc, "orig", "0")
				write(enc, "CSOSN", t.Codigo)
			})
			return
		}
		write(enc, "ICMS00", func() {
			write(enc, "orig", "0")
			write(enc, "CST", t.Codigo)
			write(enc, "modBC", "3") // valor da operação
			write(enc, "vBC", t.Base.StringFixed(2))
			write(enc, "pICMS", t.Aliquota.StringFixed(4))
			write(enc, "vICMS", t.Valor.StringFixed(2))
		})
	})
}

// writeTotal agregados do ICMSTot. Somas de valores já arredondados por linha;
// nenhum re-arredondamento acontece aqui.
func (s *XMLBuilderService) writeTotal(enc *xml.Encoder, doc *entity.DocumentoFiscal, itens []entity.ItemDocumento) {
	var vBC, vICMS, vPIS, vCOFINS decimal.Decimal
	for _, item := range itens {
		if item.Tributos.ICMS.Valor.IsPositive() {
			vBC = vBC.Add(item.Tributos.ICMS.Base)
		}
		vICMS = vICMS.Add(item.Tributos.ICMS.Valor)
		vPIS = vPIS.Add(item.Tributos.PIS.Valor)
		vCOFINS = vCOFINS.Add(item.Tributos.COFINS.Valor)
	}
	write(enc, "total", func() {
		write(enc, "ICMSTot", func() {
			write(enc, "vBC", vBC.StringFixed(2))
			write(enc, "vICMS", vICMS.StringFixed(2))
			write(enc, "vProd", doc.ValorProdutos.StringFixed(2))
			write(enc, "vFrete", doc.ValorFrete.StringFixed(2))
			write(enc, "vDesc", doc.ValorDesconto.StringFixed(2))
			write(enc, "vPIS", vPIS.StringFixed(2))
			write(enc, "vCOFINS", vCOFINS.StringFixed(2))
			write(enc, "vNF", doc.ValorTotal.StringFixed(2))
			write(enc, "vTotTrib", doc.TotalTributos.StringFixed(2))
		})
	})
}

func (s *XMLBuilderService) writeTransp(enc *xml.Encoder) {
	write(enc, "transp", func() {
		write(enc, "modFrete", "9") // sem ocorrência de transporte
	})
}

func (s *XMLBuilderService) writePag(enc *xml.Encoder, doc *entity.DocumentoFiscal) {
	tPag := doc.FormaPagamento
	if tPag == "" {
		tPag = nfe.PagamentoDinheiro
	}
	write(enc, "pag", func() {
		write(enc, "detPag", func() {
			write(enc, "tPag", tPag)
			write(enc, "vPag", doc.ValorTotal.StringFixed(2))
		})
	})
}

// write emite <local>...</local>. O segundo argumento pode ser o texto do
// elemento ou uma func() que escreve os filhos.
func write(enc *xml.Encoder, local string, content interface{}) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
	switch v := content.(type) {
	case string:
		_ = enc.EncodeToken(xml.CharData(v))
	case func():
		v()
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func somenteDigitos(s string) string {
	var out []byte
	for _, b := range []byte(s) {
		if b >= '0' && b <= '9' {
			out = append(out, b)
		}
	}
	return string(out)
}
