package nfe

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// Estruturas de decodificação do leiaute 4.00 (subconjunto que o motor emite).

type nfeXML struct {
	XMLName xml.Name  `xml:"NFe"`
	InfNFe  infNFeXML `xml:"infNFe"`
}

type infNFeXML struct {
	ID     string   `xml:"Id,attr"`
	Versao string   `xml:"versao,attr"`
	Ide    ideXML   `xml:"ide"`
	Emit   emitXML  `xml:"emit"`
	Dest   *destXML `xml:"dest"`
	Det    []detXML `xml:"det"`
	Total  totalXML `xml:"total"`
	Pag    pagXML   `xml:"pag"`
}

type ideXML struct {
	CUF   string `xml:"cUF"`
	CNF   string `xml:"cNF"`
	NatOp string `xml:"natOp"`
	Mod   string `xml:"mod"`
	Serie string `xml:"serie"`
	NNF   string `xml:"nNF"`
	DhEmi string `xml:"dhEmi"`
	CDV   string `xml:"cDV"`
	TpAmb string `xml:"tpAmb"`
}

type emitXML struct {
	CNPJ  string `xml:"CNPJ"`
	XNome string `xml:"xNome"`
	CRT   string `xml:"CRT"`
}

type destXML struct {
	CNPJ  string        `xml:"CNPJ"`
	CPF   string        `xml:"CPF"`
	XNome string        `xml:"xNome"`
	Ender *enderDestXML `xml:"enderDest"`
}

type enderDestXML struct {
	XLgr string `xml:"xLgr"`
	CMun string `xml:"cMun"`
	XMun string `xml:"xMun"`
	CEP  string `xml:"CEP"`
}

type detXML struct {
	NItem   string     `xml:"nItem,attr"`
	Prod    prodXML    `xml:"prod"`
	Imposto impostoXML `xml:"imposto"`
}

type prodXML struct {
	CProd  string `xml:"cProd"`
	XProd  string `xml:"xProd"`
	NCM    string `xml:"NCM"`
	CFOP   string `xml:"CFOP"`
	UCom   string `xml:"uCom"`
	QCom   string `xml:"qCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
	VDesc  string `xml:"vDesc"`
}

type impostoXML struct {
	ICMS   icmsXML   `xml:"ICMS"`
	PIS    pisXML    `xml:"PIS"`
	COFINS cofinsXML `xml:"COFINS"`
}

type icmsXML struct {
	ICMS00    *icms00XML    `xml:"ICMS00"`
	ICMSSN102 *icmsSN102XML `xml:"ICMSSN102"`
}

type icms00XML struct {
	CST   string `xml:"CST"`
	VBC   string `xml:"vBC"`
	PICMS string `xml:"pICMS"`
	VICMS string `xml:"vICMS"`
}

type icmsSN102XML struct {
	CSOSN string `xml:"CSOSN"`
}

type pisXML struct {
	Aliq pisAliqXML `xml:"PISAliq"`
}

type pisAliqXML struct {
	CST  string `xml:"CST"`
	VBC  string `xml:"vBC"`
	PPIS string `xml:"pPIS"`
	VPIS string `xml:"vPIS"`
}

type cofinsXML struct {
	Aliq cofinsAliqXML `xml:"COFINSAliq"`
}

type cofinsAliqXML struct {
	CST     string `xml:"CST"`
	VBC     string `xml:"vBC"`
	PCOFINS string `xml:"pCOFINS"`
	VCOFINS string `xml:"vCOFINS"`
}

type totalXML struct {
	ICMSTot icmsTotXML `xml:"ICMSTot"`
}

type icmsTotXML struct {
	VICMS    string `xml:"vICMS"`
	VProd    string `xml:"vProd"`
	VFrete   string `xml:"vFrete"`
	VDesc    string `xml:"vDesc"`
	VPIS     string `xml:"vPIS"`
	VCOFINS  string `xml:"vCOFINS"`
	VNF      string `xml:"vNF"`
	VTotTrib string `xml:"vTotTrib"`
}

type pagXML struct {
	DetPag detPagXML `xml:"detPag"`
}

type detPagXML struct {
	TPag string `xml:"tPag"`
	VPag string `xml:"vPag"`
}

// ItemParseado linha recuperada do XML, com o detalhamento tributário completo.
type ItemParseado struct {
	ProdutoID     string
	Descricao     string
	NCM           string
	CFOP          string
	Unidade       string
	Quantidade    decimal.Decimal
	ValorUnitario decimal.Decimal
	Desconto      decimal.Decimal
	ValorBruto    decimal.Decimal
	Tributos      fiscal.TributosItem
}

// EnderecoParseado endereço do destinatário quando presente no XML.
type EnderecoParseado struct {
	Logradouro string
	CodigoMun  string
	Municipio  string
	CEP        string
}

// DocumentoParseado visão estruturada de um XML emitido, para validação e
// consulta. Carrega tudo que o builder serializa; o XML retido continua
// guardado verbatim.
type DocumentoParseado struct {
	Chave            string
	Modelo           string
	Serie            int
	Numero           int64
	Ambiente         string
	NaturezaOperacao string
	EmissaoEm        time.Time

	CNPJEmitente     string
	DocDestinatario  string // vazio em NFC-e de consumidor não identificado
	NomeDestinatario string
	EnderecoDest     *EnderecoParseado

	Itens []ItemParseado

	ValorProdutos decimal.Decimal
	ValorFrete    decimal.Decimal
	ValorDesconto decimal.Decimal
	ValorTotal    decimal.Decimal
	ValorICMS     decimal.Decimal
	ValorPIS      decimal.Decimal
	ValorCOFINS   decimal.Decimal
	TotalTributos decimal.Decimal

	FormaPagamento string
	ValorPago      decimal.Decimal
}

// XMLParserService decodifica e valida XMLs do leiaute 4.00.
type XMLParserService struct{}

// NewXMLParserService cria o serviço.
func NewXMLParserService() *XMLParserService {
	return &XMLParserService{}
}

// Parse decodifica os bytes e valida a coerência interna: Id com prefixo NFe,
// chave com DV correto e componentes da chave batendo com os campos do ide.
func (s *XMLParserService) Parse(data []byte) (*DocumentoParseado, error) {
	var raw nfeXML
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", fiscal.ErrXMLMalformado, err)
	}
	inf := raw.InfNFe
	if inf.Versao != VersaoLeiaute {
		return nil, fmt.Errorf("%w: versão %q, esperada %s", fiscal.ErrXMLMalformado, inf.Versao, VersaoLeiaute)
	}
	if !strings.HasPrefix(inf.ID, "NFe") {
		return nil, fmt.Errorf("%w: Id %q sem prefixo NFe", fiscal.ErrXMLMalformado, inf.ID)
	}
	chave := strings.TrimPrefix(inf.ID, "NFe")
	if !nfe.Validar(chave) {
		return nil, fmt.Errorf("%w: chave de acesso com DV inválido", fiscal.ErrXMLMalformado)
	}
	if len(inf.Det) == 0 {
		return nil, fmt.Errorf("%w: documento sem itens", fiscal.ErrXMLMalformado)
	}

	serie, err := strconv.Atoi(inf.Ide.Serie)
	if err != nil {
		return nil, fmt.Errorf("%w: série %q", fiscal.ErrXMLMalformado, inf.Ide.Serie)
	}
	numero, err := strconv.ParseInt(inf.Ide.NNF, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: nNF %q", fiscal.ErrXMLMalformado, inf.Ide.NNF)
	}
	emissao, err := time.Parse(formatoDhEmi, inf.Ide.DhEmi)
	if err != nil {
		return nil, fmt.Errorf("%w: dhEmi %q", fiscal.ErrXMLMalformado, inf.Ide.DhEmi)
	}

	// A chave deve concordar com os campos declarados no ide e no emit.
	if chave[0:2] != inf.Ide.CUF ||
		chave[6:20] != inf.Emit.CNPJ ||
		chave[20:22] != inf.Ide.Mod ||
		chave[22:25] != fmt.Sprintf("%03d", serie) ||
		chave[25:34] != fmt.Sprintf("%09d", numero) ||
		chave[35:43] != inf.Ide.CNF ||
		string(chave[43]) != inf.Ide.CDV {
		return nil, fmt.Errorf("%w: chave diverge dos campos do documento", fiscal.ErrXMLMalformado)
	}

	itens, err := parseItens(inf.Det)
	if err != nil {
		return nil, err
	}

	tot := inf.Total.ICMSTot
	out := &DocumentoParseado{
		Chave:            chave,
		Modelo:           inf.Ide.Mod,
		Serie:            serie,
		Numero:           numero,
		Ambiente:         inf.Ide.TpAmb,
		NaturezaOperacao: inf.Ide.NatOp,
		EmissaoEm:        emissao,
		CNPJEmitente:     inf.Emit.CNPJ,
		Itens:            itens,
		FormaPagamento:   inf.Pag.DetPag.TPag,
	}
	totais := []struct {
		campo   string
		bruto   string
		destino *decimal.Decimal
	}{
		{"vProd", tot.VProd, &out.ValorProdutos},
		{"vFrete", tot.VFrete, &out.ValorFrete},
		{"vDesc", tot.VDesc, &out.ValorDesconto},
		{"vNF", tot.VNF, &out.ValorTotal},
		{"vICMS", tot.VICMS, &out.ValorICMS},
		{"vPIS", tot.VPIS, &out.ValorPIS},
		{"vCOFINS", tot.VCOFINS, &out.ValorCOFINS},
		{"vTotTrib", tot.VTotTrib, &out.TotalTributos},
		{"vPag", inf.Pag.DetPag.VPag, &out.ValorPago},
	}
	for _, c := range totais {
		if *c.destino, err = parseValor(c.campo, c.bruto); err != nil {
			return nil, err
		}
	}
	if inf.Dest != nil {
		out.DocDestinatario = inf.Dest.CNPJ
		if out.DocDestinatario == "" {
			out.DocDestinatario = inf.Dest.CPF
		}
		out.NomeDestinatario = inf.Dest.XNome
		if inf.Dest.Ender != nil {
			out.EnderecoDest = &EnderecoParseado{
				Logradouro: inf.Dest.Ender.XLgr,
				CodigoMun:  inf.Dest.Ender.CMun,
				Municipio:  inf.Dest.Ender.XMun,
				CEP:        inf.Dest.Ender.CEP,
			}
		}
	}
	return out, nil
}

func parseItens(dets []detXML) ([]ItemParseado, error) {
	itens := make([]ItemParseado, 0, len(dets))
	for _, det := range dets {
		item := ItemParseado{
			ProdutoID: det.Prod.CProd,
			Descricao: det.Prod.XProd,
			NCM:       det.Prod.NCM,
			CFOP:      det.Prod.CFOP,
			Unidade:   det.Prod.UCom,
		}
		var err error
		if item.Quantidade, err = parseValor("qCom", det.Prod.QCom); err != nil {
			return nil, err
		}
		if item.ValorUnitario, err = parseValor("vUnCom", det.Prod.VUnCom); err != nil {
			return nil, err
		}
		if item.Desconto, err = parseValor("vDesc", det.Prod.VDesc); err != nil {
			return nil, err
		}
		if item.ValorBruto, err = parseValor("vProd", det.Prod.VProd); err != nil {
			return nil, err
		}
		if item.Tributos, err = parseTributos(det.Imposto); err != nil {
			return nil, err
		}
		itens = append(itens, item)
	}
	return itens, nil
}

// parseTributos reconstrói o TributosItem da linha. No Simples (ICMSSN102) o
// ICMS sai com CSOSN e valores zerados, a mesma forma que o cálculo produz.
func parseTributos(imp impostoXML) (fiscal.TributosItem, error) {
	var t fiscal.TributosItem
	var err error

	switch {
	case imp.ICMS.ICMS00 != nil:
		g := imp.ICMS.ICMS00
		t.ICMS.Codigo = g.CST
		if t.ICMS.Base, err = parseValor("vBC", g.VBC); err != nil {
			return t, err
		}
		if t.ICMS.Aliquota, err = parseValor("pICMS", g.PICMS); err != nil {
			return t, err
		}
		if t.ICMS.Valor, err = parseValor("vICMS", g.VICMS); err != nil {
			return t, err
		}
	case imp.ICMS.ICMSSN102 != nil:
		t.ICMS.Codigo = imp.ICMS.ICMSSN102.CSOSN
	default:
		return t, fmt.Errorf("%w: grupo ICMS ausente no det", fiscal.ErrXMLMalformado)
	}

	t.PIS.Codigo = imp.PIS.Aliq.CST
	if t.PIS.Base, err = parseValor("vBC", imp.PIS.Aliq.VBC); err != nil {
		return t, err
	}
	if t.PIS.Aliquota, err = parseValor("pPIS", imp.PIS.Aliq.PPIS); err != nil {
		return t, err
	}
	if t.PIS.Valor, err = parseValor("vPIS", imp.PIS.Aliq.VPIS); err != nil {
		return t, err
	}

	t.COFINS.Codigo = imp.COFINS.Aliq.CST
	if t.COFINS.Base, err = parseValor("vBC", imp.COFINS.Aliq.VBC); err != nil {
		return t, err
	}
	if t.COFINS.Aliquota, err = parseValor("pCOFINS", imp.COFINS.Aliq.PCOFINS); err != nil {
		return t, err
	}
	if t.COFINS.Valor, err = parseValor("vCOFINS", imp.COFINS.Aliq.VCOFINS); err != nil {
		return t, err
	}
	return t, nil
}

// parseValor decodifica um campo decimal do leiaute. Campos opcionais omitidos
// (vDesc do item, por exemplo) viram zero.
func parseValor(campo, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q", fiscal.ErrXMLMalformado, campo, s)
	}
	return v, nil
}
