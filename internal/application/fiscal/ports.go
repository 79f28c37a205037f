// Package fiscal orquestra o ciclo de vida do documento fiscal: emissão,
// cancelamento, carta de correção, consulta e sincronização de pendências.
package fiscal

import (
	"context"
	"crypto/tls"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/repository"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
)

// TxRunner executa fn dentro de uma transação, com os repositórios atados a ela.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		docRepo repository.DocumentoFiscalRepository,
		loteRepo repository.LoteEstoqueRepository,
		audRepo repository.AuditoriaRepository,
	) error) error
}

// Assinador assina o XML do documento. A implementação real é o
// AssinaturaService; tests injetam um fake.
type Assinador interface {
	Assinar(xmlBytes []byte, chave string, cert tls.Certificate) (*infranfe.ResultadoAssinatura, error)
}

// CarregadorCertificado decifra e decodifica o certificado A1 do perfil.
type CarregadorCertificado interface {
	Carregar(perfil *entity.PerfilFiscal) (tls.Certificate, error)
}

// ConstrutorXML serializa o documento no leiaute 4.00.
type ConstrutorXML interface {
	Build(ctx *infranfe.DocumentoBuildContext) ([]byte, error)
}

// MontadorQRCode monta a URL de consulta do consumidor (NFC-e).
type MontadorQRCode interface {
	Montar(p infranfe.QRCodeParams) (string, error)
}
