package nfe

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

const (
	versaoQRCode = "2"

	urlConsultaHomologacao = "https://www.homologacao.nfce.fazenda.sp.gov.br/qrcode"
	urlConsultaProducao    = "https://www.nfce.fazenda.sp.gov.br/qrcode"
)

// QRCodeParams insumos do QR Code da NFC-e. Os valores vêm do documento já
// calculado: o total de tributos entra de verdade na URL, nunca placeholder.
type QRCodeParams struct {
	Chave         string
	Ambiente      string
	DocConsumidor string // CPF/CNPJ do consumidor; vazio quando não identificado
	EmissaoEm     time.Time
	ValorTotal    decimal.Decimal
	ValorICMS     decimal.Decimal
	DigestB64     string // DigestValue da assinatura (Base64)
	CSCID         string
	CSCToken      string
}

// QRCodeService monta a URL de consulta do consumidor para NFC-e.
type QRCodeService struct{}

// NewQRCodeService cria o serviço.
func NewQRCodeService() *QRCodeService {
	return &QRCodeService{}
}

// Montar gera a URL do QR Code: parâmetros pipe-separados + hash SHA-1 keyed
// pelo token do CSC. Sem CSC configurado a URL sai com o marcador SEM-CSC no
// lugar do hash — escaneável em homologação e nunca confundível com URL real.
func (s *QRCodeService) Montar(p QRCodeParams) (string, error) {
	if !nfe.Validar(p.Chave) {
		return "", fmt.Errorf("%w: chave inválida para QR Code", fiscal.ErrValidacao)
	}
	if p.DigestB64 == "" {
		return "", fmt.Errorf("%w: digest da assinatura ausente", fiscal.ErrValidacao)
	}
	digestRaw, err := base64.StdEncoding.DecodeString(p.DigestB64)
	if err != nil {
		return "", fmt.Errorf("%w: digest não é Base64: %v", fiscal.ErrValidacao, err)
	}
	if p.EmissaoEm.IsZero() {
		return "", fmt.Errorf("%w: data de emissão ausente no QR Code", fiscal.ErrValidacao)
	}

	// cDest só entra quando o consumidor se identificou.
	partes := []string{p.Chave, versaoQRCode, p.Ambiente}
	if p.DocConsumidor != "" {
		partes = append(partes, p.DocConsumidor)
	}
	partes = append(partes,
		hex.EncodeToString([]byte(p.EmissaoEm.Format(time.RFC3339))),
		p.ValorTotal.StringFixed(2),
		p.ValorICMS.StringFixed(2),
		hex.EncodeToString(digestRaw),
	)
	campos := strings.Join(partes, "|")

	base := urlConsultaHomologacao
	if p.Ambiente == nfe.AmbienteProducao {
		base = urlConsultaProducao
	}

	if p.CSCID == "" || p.CSCToken == "" {
		return base + "?p=" + campos + "|SEM-CSC", nil
	}

	// Hash keyed: quem não conhece o token do CSC não forja a URL.
	h := sha1.Sum([]byte(campos + "|" + p.CSCID + p.CSCToken))
	hash := strings.ToUpper(hex.EncodeToString(h[:]))
	return base + "?p=" + campos + "|" + p.CSCID + "|" + hash, nil
}
