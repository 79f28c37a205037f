package nfe_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/entity"
	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	infranfe "github.com/Clegivaldo/medmanager-fiscal/internal/infrastructure/nfe"
)

func TestCarregar_SemBlob(t *testing.T) {
	svc := infranfe.NewCertificadoService("chave-mestra-teste")
	_, err := svc.Carregar(&entity.PerfilFiscal{})
	assert.ErrorIs(t, err, fiscal.ErrSemCertificado)
	assert.ErrorIs(t, err, fiscal.ErrConfiguracao)
}

func TestCarregar_BlobCorrompido(t *testing.T) {
	svc := infranfe.NewCertificadoService("chave-mestra-teste")
	perfil := &entity.PerfilFiscal{
		CertBlob:  []byte("isto não é um blob AES-GCM válido"),
		CertSenha: "1234",
	}
	_, err := svc.Carregar(perfil)
	assert.ErrorIs(t, err, fiscal.ErrCertificadoSenha)
}

func TestCifrar_ChaveMestraErradaNaoDecifra(t *testing.T) {
	svcA := infranfe.NewCertificadoService("chave-mestra-a")
	svcB := infranfe.NewCertificadoService("chave-mestra-b")

	nonce := bytes.Repeat([]byte{0x42}, 12)
	blob, err := svcA.Cifrar([]byte("conteudo-pfx-falso"), nonce)
	require.NoError(t, err)

	// O payload não é um .pfx de verdade, mas a chave errada falha já no
	// GCM, antes de chegar ao pkcs12 — mesma categoria de erro.
	_, err = svcB.Carregar(&entity.PerfilFiscal{CertBlob: blob, CertSenha: "x"})
	assert.ErrorIs(t, err, fiscal.ErrCertificadoSenha)
}

func TestCifrar_NonceComTamanhoErrado(t *testing.T) {
	svc := infranfe.NewCertificadoService("chave-mestra-teste")
	_, err := svc.Cifrar([]byte("pfx"), []byte{0x01})
	assert.ErrorIs(t, err, fiscal.ErrCriptografia)
}
