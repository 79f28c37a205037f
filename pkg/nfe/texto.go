// Normalização de texto livre para os campos do XML fiscal: a SEFAZ rejeita
// caracteres de controle e o validador de schema é sensível a espaços nas
// bordas; acentos são removidos para manter o digest estável entre sistemas.

package nfe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var removerMarcas = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizarTexto prepara texto livre (razão social, descrição de item,
// justificativa) para serialização: remove acentos e caracteres de controle,
// colapsa espaços consecutivos e apara as bordas.
func NormalizarTexto(s string) string {
	sem, _, err := transform.String(removerMarcas, s)
	if err != nil {
		sem = s
	}
	var b strings.Builder
	b.Grow(len(sem))
	espaco := false
	for _, r := range sem {
		switch {
		// Tab e quebra de linha são controle E espaço; viram separador,
		// não podem sumir e colar as palavras vizinhas.
		case unicode.IsSpace(r):
			espaco = true
		case unicode.IsControl(r):
			continue
		default:
			if espaco && b.Len() > 0 {
				b.WriteByte(' ')
			}
			espaco = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TruncarTexto corta o texto no limite de caracteres do campo do leiaute.
func TruncarTexto(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
