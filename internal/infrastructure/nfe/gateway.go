package nfe

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// ── Endpoints SEFAZ ────────────────────────────────────────────────────────────

const (
	soapURLHomologacao = "https://homologacao.nfe.fazenda.sp.gov.br/ws/NFeAutorizacao4.asmx"
	soapURLProducao    = "https://nfe.fazenda.sp.gov.br/ws/NFeAutorizacao4.asmx"

	soapNS       = "http://www.w3.org/2003/05/soap-envelope"
	nfeWsNS      = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
	maxRespBytes = 1 << 20 // 1 MB
)

// ── Porta (interface) ──────────────────────────────────────────────────────────

// ResultadoSefaz resposta normalizada da autoridade. Payload guarda o corpo
// bruto da resposta, para retenção verbatim no histórico.
type ResultadoSefaz struct {
	CStat     string
	Motivo    string
	Protocolo string
	Payload   string
}

// Desfecho classificação do cStat para a máquina de estados local.
type Desfecho int

const (
	DesfechoAutorizado Desfecho = iota
	DesfechoDenegado
	DesfechoPendente
	DesfechoTransitorio
	DesfechoRejeitado
)

// Classificar mapeia o cStat da SEFAZ no desfecho do ciclo de vida.
// Códigos não mapeados são rejeição definitiva (4xx/9xx de validação).
func Classificar(cStat string) Desfecho {
	switch cStat {
	case nfe.CStatAutorizado:
		return DesfechoAutorizado
	case nfe.CStatDenegadoIrregular, nfe.CStatDenegadoDestinatario, nfe.CStatUsoDenegado:
		return DesfechoDenegado
	case nfe.CStatLoteProcessando:
		return DesfechoPendente
	case nfe.CStatServicoParalisado, nfe.CStatServicoParalisadoSP:
		return DesfechoTransitorio
	default:
		return DesfechoRejeitado
	}
}

// SefazGateway porta de saída para a autoridade fiscal. A implementação
// concreta usa o webservice SOAP; para tests e homologação sem certificado
// existe o SimuladorSefaz.
type SefazGateway interface {
	// Autorizar envia o XML assinado em lote unitário síncrono.
	Autorizar(ctx context.Context, xmlAssinado []byte, chave string) (*ResultadoSefaz, error)
	// ConsultarProtocolo consulta a situação atual da chave na SEFAZ.
	ConsultarProtocolo(ctx context.Context, chave string) (*ResultadoSefaz, error)
	// Cancelar registra o evento de cancelamento (110111).
	Cancelar(ctx context.Context, chave, protocolo, justificativa string) (*ResultadoSefaz, error)
	// RegistrarCorrecao registra a carta de correção (110110) com a sequência dada.
	RegistrarCorrecao(ctx context.Context, chave, texto string, sequencia int) (*ResultadoSefaz, error)
}

// ── Implementação SOAP ─────────────────────────────────────────────────────────

// SOAPSefazClient implementa SefazGateway contra o webservice da SEFAZ.
// Usa net/http da stdlib com envelopes tipados.
type SOAPSefazClient struct {
	httpClient *http.Client
	baseURL    string
	ambiente   string
}

// NewSOAPSefazClient constrói o cliente. url vazio seleciona o endpoint padrão
// do ambiente; o timeout vem da configuração (o autorizador pode demorar).
func NewSOAPSefazClient(url, ambiente string, timeout time.Duration) *SOAPSefazClient {
	if url == "" {
		url = soapURLHomologacao
		if ambiente == nfe.AmbienteProducao {
			url = soapURLProducao
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SOAPSefazClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    url,
		ambiente:   ambiente,
	}
}

// ── Estruturas de resposta SOAP ────────────────────────────────────────────────

type soapRespostaEnvelope struct {
	Body soapRespostaBody `xml:"Body"`
}

type soapRespostaBody struct {
	Fault *soapFault `xml:"Fault"`
	// O corpo traz nfeResultMsg envolvendo retEnviNFe / retConsSitNFe /
	// retEnvEvento; os dois níveis de ",any" atravessam o invólucro sem
	// depender do nome da operação.
	ResultMsg retResultMsg `xml:",any"`
}

type retResultMsg struct {
	Ret retSefaz `xml:",any"`
}

type retSefaz struct {
	CStat     string     `xml:"cStat"`
	XMotivo   string     `xml:"xMotivo"`
	ProtNFe   *protNFe   `xml:"protNFe"`
	RetEvento *retEvento `xml:"retEvento"`
}

type protNFe struct {
	InfProt infProt `xml:"infProt"`
}

type infProt struct {
	ChNFe    string `xml:"chNFe"`
	CStat    string `xml:"cStat"`
	XMotivo  string `xml:"xMotivo"`
	NProt    string `xml:"nProt"`
	DhRecbto string `xml:"dhRecbto"`
}

type retEvento struct {
	InfEvento infEventoRet `xml:"infEvento"`
}

type infEventoRet struct {
	CStat   string `xml:"cStat"`
	XMotivo string `xml:"xMotivo"`
	NProt   string `xml:"nProt"`
}

type soapFault struct {
	Code   string `xml:"Code>Value"`
	Reason string `xml:"Reason>Text"`
}

// ── Operações ──────────────────────────────────────────────────────────────────

// Autorizar envia o lote unitário síncrono (indSinc=1) e devolve o resultado
// do protocolo. Timeout e erro de rede sobem como ErrTransitorio: o documento
// pode ter sido autorizado do outro lado, e o chamador deve consultar antes de
// repetir.
func (c *SOAPSefazClient) Autorizar(ctx context.Context, xmlAssinado []byte, chave string) (*ResultadoSefaz, error) {
	var lote bytes.Buffer
	lote.WriteString(`<enviNFe xmlns="` + NsNFe + `" versao="` + VersaoLeiaute + `">`)
	lote.WriteString(`<idLote>1</idLote><indSinc>1</indSinc>`)
	lote.Write(xmlAssinado)
	lote.WriteString(`</enviNFe>`)

	raw, err := c.post(ctx, "nfeAutorizacaoLote", lote.Bytes())
	if err != nil {
		return nil, err
	}
	return c.parseResposta(raw)
}

// ConsultarProtocolo monta o consSitNFe da chave.
func (c *SOAPSefazClient) ConsultarProtocolo(ctx context.Context, chave string) (*ResultadoSefaz, error) {
	var msg bytes.Buffer
	msg.WriteString(`<consSitNFe xmlns="` + NsNFe + `" versao="` + VersaoLeiaute + `">`)
	msg.WriteString(`<tpAmb>` + c.ambiente + `</tpAmb>`)
	msg.WriteString(`<xServ>CONSULTAR</xServ>`)
	msg.WriteString(`<chNFe>` + chave + `</chNFe>`)
	msg.WriteString(`</consSitNFe>`)

	raw, err := c.post(ctx, "nfeConsultaNF", msg.Bytes())
	if err != nil {
		return nil, err
	}
	return c.parseResposta(raw)
}

// Cancelar registra o evento 110111. A justificativa é validada client-side
// para falhar antes da chamada de rede.
func (c *SOAPSefazClient) Cancelar(ctx context.Context, chave, protocolo, justificativa string) (*ResultadoSefaz, error) {
	if len(justificativa) < nfe.MinJustificativaCancelamento {
		return nil, fiscal.ErrJustificativaCurta
	}
	detalhe := `<descEvento>Cancelamento</descEvento>` +
		`<nProt>` + protocolo + `</nProt>` +
		`<xJust>` + escapeXML(justificativa) + `</xJust>`
	raw, err := c.post(ctx, "nfeRecepcaoEvento", c.montarEvento(chave, nfe.EventoCancelamento, 1, detalhe))
	if err != nil {
		return nil, err
	}
	return c.parseResposta(raw)
}

// RegistrarCorrecao registra o evento 110110 com a sequência informada.
func (c *SOAPSefazClient) RegistrarCorrecao(ctx context.Context, chave, texto string, sequencia int) (*ResultadoSefaz, error) {
	detalhe := `<descEvento>Carta de Correcao</descEvento>` +
		`<xCorrecao>` + escapeXML(texto) + `</xCorrecao>`
	raw, err := c.post(ctx, "nfeRecepcaoEvento", c.montarEvento(chave, nfe.EventoCartaCorrecao, sequencia, detalhe))
	if err != nil {
		return nil, err
	}
	return c.parseResposta(raw)
}

func (c *SOAPSefazClient) montarEvento(chave, tpEvento string, sequencia int, detalhe string) []byte {
	var msg bytes.Buffer
	msg.WriteString(`<envEvento xmlns="` + NsNFe + `" versao="1.00">`)
	msg.WriteString(`<idLote>1</idLote>`)
	msg.WriteString(`<evento versao="1.00"><infEvento>`)
	msg.WriteString(`<tpAmb>` + c.ambiente + `</tpAmb>`)
	msg.WriteString(`<chNFe>` + chave + `</chNFe>`)
	msg.WriteString(`<tpEvento>` + tpEvento + `</tpEvento>`)
	msg.WriteString(fmt.Sprintf(`<nSeqEvento>%d</nSeqEvento>`, sequencia))
	msg.WriteString(`<detEvento versao="1.00">` + detalhe + `</detEvento>`)
	msg.WriteString(`</infEvento></evento></envEvento>`)
	return msg.Bytes()
}

// post envia o envelope SOAP e devolve o corpo bruto da resposta.
func (c *SOAPSefazClient) post(ctx context.Context, operacao string, dadosMsg []byte) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteString(xml.Header)
	payload.WriteString(`<soap12:Envelope xmlns:soap12="` + soapNS + `"><soap12:Body>`)
	payload.WriteString(`<nfeDadosMsg xmlns="` + nfeWsNS + `">`)
	payload.Write(dadosMsg)
	payload.WriteString(`</nfeDadosMsg>`)
	payload.WriteString(`</soap12:Body></soap12:Envelope>`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &payload)
	if err != nil {
		return nil, fmt.Errorf("sefaz: criar request: %w", err)
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+nfeWsNS+`/`+operacao+`"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", fiscal.ErrTransitorio, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", fiscal.ErrTransitorio, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: ler resposta: %v", fiscal.ErrTransitorio, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d do webservice", fiscal.ErrTransitorio, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sefaz: HTTP %d inesperado", resp.StatusCode)
	}
	return raw, nil
}

// parseResposta extrai cStat, motivo e protocolo de qualquer das respostas
// (retEnviNFe, retConsSitNFe, retEnvEvento). O payload bruto é sempre retido.
func (c *SOAPSefazClient) parseResposta(raw []byte) (*ResultadoSefaz, error) {
	var env soapRespostaEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: resposta SOAP ilegível: %v", fiscal.ErrTransitorio, err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s", fiscal.ErrTransitorio,
			env.Body.Fault.Code, env.Body.Fault.Reason)
	}

	out := &ResultadoSefaz{
		CStat:   env.Body.ResultMsg.Ret.CStat,
		Motivo:  env.Body.ResultMsg.Ret.XMotivo,
		Payload: string(raw),
	}
	// O cStat que interessa é o do protocolo/evento, quando presente
	// (o externo é o do lote).
	if p := env.Body.ResultMsg.Ret.ProtNFe; p != nil {
		out.CStat = p.InfProt.CStat
		out.Motivo = p.InfProt.XMotivo
		out.Protocolo = p.InfProt.NProt
	}
	if ev := env.Body.ResultMsg.Ret.RetEvento; ev != nil {
		out.CStat = ev.InfEvento.CStat
		out.Motivo = ev.InfEvento.XMotivo
		out.Protocolo = ev.InfEvento.NProt
	}
	if out.CStat == "" {
		return nil, fmt.Errorf("%w: resposta sem cStat: %s", fiscal.ErrTransitorio, truncar(string(raw), 200))
	}
	return out, nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func truncar(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ SefazGateway = (*SOAPSefazClient)(nil)
