// Assinatura XML-DSig enveloped da NF-e/NFC-e: digest SHA-256 do infNFe
// canonicalizado, SignedInfo assinado com RSA e <Signature> injetado como
// irmão do infNFe, dentro do <NFe>.

package nfe

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/Clegivaldo/medmanager-fiscal/internal/domain/fiscal"
)

// Algoritmos exigidos pelo Portal Fiscal (leiaute 4.00).
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2000/09/xmldsig#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// ResultadoAssinatura saída da assinatura: o envelope completo e o digest do
// infNFe (insumo do QR Code da NFC-e).
type ResultadoAssinatura struct {
	XMLAssinado []byte
	DigestB64   string
}

// AssinaturaService assina o XML do documento com o certificado A1 do tenant.
type AssinaturaService struct {
	agora func() time.Time
}

// NewAssinaturaService cria o serviço com relógio de sistema.
func NewAssinaturaService() *AssinaturaService {
	return &AssinaturaService{agora: time.Now}
}

// Assinar valida a vigência do certificado, calcula o digest do infNFe
// canonicalizado e injeta o nó Signature. Falha antes de qualquer efeito
// colateral: o chamador só persiste se a assinatura sair completa.
func (s *AssinaturaService) Assinar(xmlBytes []byte, chave string, cert tls.Certificate) (*ResultadoAssinatura, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("%w: XML vazio", fiscal.ErrAssinatura)
	}
	if err := ValidarVigencia(cert, s.agora()); err != nil {
		return nil, err
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificado sem chave privada RSA", fiscal.ErrAssinatura)
	}

	// 1) Digest do subtree infNFe canonicalizado (C14N inclusivo). A
	// Reference aponta para #NFe<chave>, o Id do infNFe, então é esse
	// elemento que o verificador vai resolver e re-digerir.
	infNFe, err := extrairInfNFe(xmlBytes)
	if err != nil {
		return nil, err
	}
	canonicalInf, err := canonicalizeXML(infNFe)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar infNFe: %v", fiscal.ErrAssinatura, err)
	}
	docDigest := sha256.Sum256(canonicalInf)
	docDigestB64 := base64.StdEncoding.EncodeToString(docDigest[:])

	// 2) SignedInfo referenciando #NFe<chave>, canonicalizado antes de assinar.
	signedInfoXML := buildSignedInfo(chave, docDigestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", fiscal.ErrAssinatura, err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("%w: assinar SignedInfo: %v", fiscal.ErrAssinatura, err)
	}

	// 3) KeyInfo com o certificado do emitente.
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parsear certificado: %v", fiscal.ErrAssinatura, err)
	}

	signatureXML := buildSignatureXML(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))

	signed, err := injectSignature(xmlBytes, signatureXML)
	if err != nil {
		return nil, err
	}
	return &ResultadoAssinatura{XMLAssinado: signed, DigestB64: docDigestB64}, nil
}

// extrairInfNFe isola o elemento infNFe como documento próprio, carregando o
// namespace herdado do <NFe> para que o C14N produza a mesma forma canônica
// que o elemento tem dentro do envelope.
func extrairInfNFe(xmlBytes []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", fiscal.ErrAssinatura, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "NFe" {
		return nil, fmt.Errorf("%w: raiz não é NFe", fiscal.ErrAssinatura)
	}
	inf := root.SelectElement("infNFe")
	if inf == nil {
		return nil, fmt.Errorf("%w: infNFe ausente", fiscal.ErrAssinatura)
	}
	sub := inf.Copy()
	if sub.SelectAttr("xmlns") == nil {
		if ns := root.SelectAttr("xmlns"); ns != nil {
			sub.CreateAttr("xmlns", ns.Value)
		}
	}
	subDoc := etree.NewDocument()
	subDoc.SetRoot(sub)
	return subDoc.WriteToBytes()
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(chave, docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<Reference URI="#NFe` + chave + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<DigestValue>` + docDigestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildSignatureXML(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

// injectSignature adiciona o Signature como último filho de <NFe>, irmão do
// infNFe, que é a posição exigida pelo schema.
func injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", fiscal.ErrAssinatura, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "NFe" {
		return nil, fmt.Errorf("%w: raiz não é NFe", fiscal.ErrAssinatura)
	}

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("%w: parsear nó Signature: %v", fiscal.ErrAssinatura, err)
	}
	if sigRoot := sigDoc.Root(); sigRoot != nil {
		root.AddChild(sigRoot)
	}

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("%w: serializar XML assinado: %v", fiscal.ErrAssinatura, err)
	}
	return out.Bytes(), nil
}
