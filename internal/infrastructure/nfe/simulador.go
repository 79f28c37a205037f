// Simulador da SEFAZ para homologação sem certificado e para desenvolvimento
// local. É uma seleção de modo explícita da configuração: NewSimuladorSefaz só
// deve ser instanciado quando SEFAZ_SIMULACAO=true, e a carga de configuração
// recusa essa flag em produção.

package nfe

import (
	"context"
	"fmt"
	"time"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
	"github.com/Clegivaldo/medmanager-fiscal/pkg/nfe"
)

// SimuladorSefaz implementa SefazGateway devolvendo autorizações locais com
// protocolo no formato SIM-<timestamp>, distinguível de protocolo real.
type SimuladorSefaz struct {
	agora func() time.Time
}

// NewSimuladorSefaz cria o simulador com relógio de sistema.
func NewSimuladorSefaz() *SimuladorSefaz {
	return &SimuladorSefaz{agora: time.Now}
}

func (s *SimuladorSefaz) protocolo() string {
	return fmt.Sprintf("SIM-%d", s.agora().UnixNano())
}

// Autorizar aprova qualquer XML não vazio.
func (s *SimuladorSefaz) Autorizar(_ context.Context, xmlAssinado []byte, chave string) (*ResultadoSefaz, error) {
	if len(xmlAssinado) == 0 {
		return nil, fmt.Errorf("%w: XML vazio", fiscal.ErrValidacao)
	}
	return &ResultadoSefaz{
		CStat:     nfe.CStatAutorizado,
		Motivo:    "Autorizado o uso da NF-e (simulado)",
		Protocolo: s.protocolo(),
		Payload:   fmt.Sprintf(`<retEnviNFe simulado="1"><chNFe>%s</chNFe></retEnviNFe>`, chave),
	}, nil
}

// ConsultarProtocolo devolve autorizado para qualquer chave válida.
func (s *SimuladorSefaz) ConsultarProtocolo(_ context.Context, chave string) (*ResultadoSefaz, error) {
	if !nfe.Validar(chave) {
		return nil, fmt.Errorf("%w: chave inválida", fiscal.ErrValidacao)
	}
	return &ResultadoSefaz{
		CStat:     nfe.CStatAutorizado,
		Motivo:    "Autorizado o uso da NF-e (simulado)",
		Protocolo: s.protocolo(),
		Payload:   fmt.Sprintf(`<retConsSitNFe simulado="1"><chNFe>%s</chNFe></retConsSitNFe>`, chave),
	}, nil
}

// Cancelar homologa o evento aplicando a mesma validação client-side do
// gateway real.
func (s *SimuladorSefaz) Cancelar(_ context.Context, chave, protocolo, justificativa string) (*ResultadoSefaz, error) {
	if len(justificativa) < nfe.MinJustificativaCancelamento {
		return nil, fiscal.ErrJustificativaCurta
	}
	return &ResultadoSefaz{
		CStat:     nfe.CStatEventoVinculado,
		Motivo:    "Evento registrado e vinculado a NF-e (simulado)",
		Protocolo: s.protocolo(),
		Payload:   fmt.Sprintf(`<retEnvEvento simulado="1"><chNFe>%s</chNFe></retEnvEvento>`, chave),
	}, nil
}

// RegistrarCorrecao vincula o evento de carta de correção.
func (s *SimuladorSefaz) RegistrarCorrecao(_ context.Context, chave, texto string, sequencia int) (*ResultadoSefaz, error) {
	if texto == "" {
		return nil, fmt.Errorf("%w: texto da correção vazio", fiscal.ErrValidacao)
	}
	return &ResultadoSefaz{
		CStat:     nfe.CStatEventoVinculado,
		Motivo:    "Evento registrado e vinculado a NF-e (simulado)",
		Protocolo: s.protocolo(),
		Payload:   fmt.Sprintf(`<retEnvEvento simulado="1"><chNFe>%s</chNFe><nSeqEvento>%d</nSeqEvento></retEnvEvento>`, chave, sequencia),
	}, nil
}

var _ SefazGateway = (*SimuladorSefaz)(nil)
