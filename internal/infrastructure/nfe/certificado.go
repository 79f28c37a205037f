// Carga do certificado A1 do tenant: o bundle .pfx fica no banco cifrado com
// AES-256-GCM sob a chave mestra do serviço; a senha do .pfx é do tenant.

package nfe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
)

// CertificadoService decifra e decodifica o certificado A1 do perfil.
type CertificadoService struct {
	masterKey []byte // 32 bytes derivados da configuração
}

// NewCertificadoService deriva a chave AES-256 da chave mestra configurada.
func NewCertificadoService(masterKey string) *CertificadoService {
	k := sha256.Sum256([]byte(masterKey))
	return &CertificadoService{masterKey: k[:]}
}

// Carregar decifra o blob e decodifica o .pfx. Senha errada e blob corrompido
// produzem o mesmo erro: não damos dica de qual dos dois falhou.
func (s *CertificadoService) Carregar(perfil *entity.PerfilFiscal) (tls.Certificate, error) {
	if !perfil.TemCertificado() {
		return tls.Certificate{}, fiscal.ErrSemCertificado
	}
	pfx, err := s.decifrar(perfil.CertBlob)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", fiscal.ErrCertificadoSenha, err)
	}
	priv, cert, err := pkcs12.Decode(pfx, perfil.CertSenha)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", fiscal.ErrCertificadoSenha, err)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// Cifrar cifra um .pfx para armazenamento (usado no onboarding do perfil).
// O nonce vai prefixado ao ciphertext.
func (s *CertificadoService) Cifrar(pfx, nonce []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce de %d bytes, esperado %d", fiscal.ErrCriptografia, len(nonce), gcm.NonceSize())
	}
	return gcm.Seal(nonce, nonce, pfx, nil), nil
}

func (s *CertificadoService) decifrar(blob []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("blob menor que o nonce")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *CertificadoService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fiscal.ErrCriptografia, err)
	}
	return cipher.NewGCM(block)
}

// ValidarVigencia rejeita certificado expirado ou ainda não vigente no
// instante da assinatura.
func ValidarVigencia(cert tls.Certificate, agora time.Time) error {
	if cert.Leaf == nil {
		return fiscal.ErrSemCertificado
	}
	if agora.After(cert.Leaf.NotAfter) || agora.Before(cert.Leaf.NotBefore) {
		return fmt.Errorf("%w: vigência %s a %s", fiscal.ErrCertificadoExpirado,
			cert.Leaf.NotBefore.Format("2006-01-02"), cert.Leaf.NotAfter.Format("2006-01-02"))
	}
	return nil
}
