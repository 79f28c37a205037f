package fiscal

import (
	"fmt"
	"time"
)

// Status do documento fiscal no ciclo de vida local.
type Status string

const (
	StatusRascunho   Status = "RASCUNHO"   // montado, nada persistido com identidade fiscal
	StatusPendente   Status = "PENDENTE"   // número reservado, aguardando resposta da SEFAZ
	StatusAutorizada Status = "AUTORIZADA" // protocolo de autorização recebido
	StatusDenegada   Status = "DENEGADA"   // terminal
	StatusCancelada  Status = "CANCELADA"  // terminal
)

// JanelaCancelamento prazo máximo após a autorização para o evento de
// cancelamento; além dele o caminho correto é a carta de correção.
const JanelaCancelamento = 24 * time.Hour

// transicoes válidas da máquina de estados. A carta de correção é uma
// autotransição de AUTORIZADA e não passa por aqui.
var transicoes = map[Status][]Status{
	StatusRascunho:   {StatusPendente},
	StatusPendente:   {StatusAutorizada, StatusDenegada},
	StatusAutorizada: {StatusCancelada},
}

// Terminal informa se nenhuma transição sai do status.
func (s Status) Terminal() bool {
	return s == StatusDenegada || s == StatusCancelada
}

// ValidarTransicao garante que a mudança de status respeita a máquina de estados.
func ValidarTransicao(de, para Status) error {
	for _, p := range transicoes[de] {
		if p == para {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransicaoInvalida, de, para)
}

// ValidarCancelamento aplica as regras do evento de cancelamento: somente
// documentos autorizados, dentro da janela de 24h contada da autorização.
// O limite é inclusivo: exatamente 24h ainda cancela; um segundo além, não.
func ValidarCancelamento(status Status, autorizadaEm *time.Time, agora time.Time) error {
	if status != StatusAutorizada {
		return fmt.Errorf("%w: cancelamento exige status AUTORIZADA, atual %s", ErrEstado, status)
	}
	if autorizadaEm == nil {
		return fmt.Errorf("%w: documento sem data de autorização", ErrEstado)
	}
	if agora.Sub(*autorizadaEm) > JanelaCancelamento {
		return ErrJanelaCancelamento
	}
	return nil
}

// ValidarCorrecao aplica a regra da carta de correção: somente pós-autorização,
// nunca muda o status nem o conteúdo original.
func ValidarCorrecao(status Status) error {
	if status != StatusAutorizada {
		return fmt.Errorf("%w: carta de correção exige status AUTORIZADA, atual %s", ErrEstado, status)
	}
	return nil
}
