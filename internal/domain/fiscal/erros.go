// Package fiscal contém as regras de domínio do motor de emissão: taxonomia
// de erros, máquina de estados do documento e cálculo de tributos.
package fiscal

import (
	"errors"
	"fmt"
)

// Categorias de erro do núcleo fiscal. Todo erro interno dos componentes é
// traduzido para uma destas categorias na borda do ciclo de vida; abaixo dela
// nada de erro cru de rede/cripto sobe para o chamador.
var (
	// ErrValidacao entrada malformada (sem itens, documento fiscal inválido).
	// Rejeitado antes de reservar qualquer número; o chamador pode corrigir e repetir.
	ErrValidacao = errors.New("entrada inválida")

	// ErrConfiguracao pré-requisito de cadastro ausente (perfil fiscal, série ativa,
	// certificado). Bloqueio de setup, não se retenta automaticamente.
	ErrConfiguracao = errors.New("configuração fiscal incompleta")

	// ErrCriptografia falha ao decifrar ou assinar. Terminal para a tentativa.
	ErrCriptografia = errors.New("erro criptográfico")

	// ErrDenegada a SEFAZ rejeitou o documento. Terminal; o motivo sobe verbatim.
	ErrDenegada = errors.New("documento denegado pela SEFAZ")

	// ErrTransitorio indisponibilidade/timeout da SEFAZ. Elegível a retry pelo
	// chamador, precedido de consulta de protocolo para evitar duplicidade.
	ErrTransitorio = errors.New("falha transitória na comunicação com a SEFAZ")

	// ErrEstado operação incompatível com o estado atual do documento.
	ErrEstado = errors.New("operação inválida para o estado do documento")
)

// Erros específicos, já classificados na categoria correspondente.
var (
	ErrSemItens               = fmt.Errorf("%w: documento sem itens", ErrValidacao)
	ErrIdentidadeFiscal       = fmt.Errorf("%w: identidade fiscal do destinatário irresolúvel", ErrValidacao)
	ErrJustificativaCurta     = fmt.Errorf("%w: justificativa de cancelamento abaixo do mínimo", ErrValidacao)
	ErrPerfilAusente          = fmt.Errorf("%w: perfil fiscal do tenant não cadastrado", ErrConfiguracao)
	ErrSerieInativa           = fmt.Errorf("%w: nenhuma série ativa para o modelo", ErrConfiguracao)
	ErrSemCertificado         = fmt.Errorf("%w: certificado A1 não configurado", ErrConfiguracao)
	ErrCertificadoExpirado    = fmt.Errorf("%w: certificado expirado", ErrCriptografia)
	ErrCertificadoSenha       = fmt.Errorf("%w: senha incorreta ou blob corrompido", ErrCriptografia)
	ErrAssinatura             = fmt.Errorf("%w: falha na assinatura do XML", ErrCriptografia)
	ErrJanelaCancelamento     = fmt.Errorf("%w: janela de cancelamento de 24h expirada", ErrEstado)
	ErrTransicaoInvalida      = fmt.Errorf("%w: transição de status não permitida", ErrEstado)
	ErrUFNaoSuportada         = fmt.Errorf("%w: UF sem alíquota publicada", ErrValidacao)
	ErrRegimeNaoSuportado     = fmt.Errorf("%w: regime tributário desconhecido", ErrValidacao)
	ErrXMLMalformado          = fmt.Errorf("%w: XML não atende ao schema", ErrValidacao)
	ErrDocumentoNaoEncontrado = errors.New("documento fiscal não encontrado")
)
