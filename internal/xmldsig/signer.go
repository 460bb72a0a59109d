// Package xmldsig produces enveloped XML digital signatures over arbitrary
// fragments. The signature block is built element by element: a SignedInfo
// with a single URI="" reference (enveloped-signature plus exclusive C14N
// transforms), the RSA signature over the canonicalized SignedInfo, and a
// KeyInfo carrying the signer's certificate in clear form.
//
// The digest/signature pair is dictated by the receiving authority, not by
// this package; the SII still requires the legacy RSA-SHA1 pair, so that is
// the default, with RSA-SHA256 available for endpoints that accept it.
package xmldsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/mfuentesc/siidte/internal/common"
)

// Algorithm selects the digest/signature pair used by a Signer.
type Algorithm int

const (
	// RSASHA1 is the legacy pair mandated by the SII.
	RSASHA1 Algorithm = iota
	// RSASHA256 is available for authorities that accept modern digests.
	RSASHA256
)

const (
	nsXMLDSig       = "http://www.w3.org/2000/09/xmldsig#"
	algExcC14N      = "http://www.w3.org/2001/10/xml-exc-c14n#"
	algEnveloped    = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	algRSASHA1      = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	algRSASHA256    = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	algDigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	algDigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
)

// Signer signs XML fragments with a fixed algorithm pair.
type Signer struct {
	alg Algorithm
}

func New(alg Algorithm) *Signer {
	return &Signer{alg: alg}
}

// Sign parses fragment, appends an enveloped <ds:Signature> to its root
// element and returns the serialized result. Any failure to load the key or
// certificate, or to build the signature, yields ErrorSigning; an unsigned
// document is never returned.
func (s *Signer) Sign(fragment, keyPEM, certPEM []byte) ([]byte, error) {
	key, err := ParseRSAPrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorSigning, err)
	}
	cert, err := ParseCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorSigning, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(fragment); err != nil {
		return nil, fmt.Errorf("%w: parse fragment: %v", common.ErrorSigning, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", common.ErrorSigning)
	}

	// Re-signing replaces any existing signature.
	removeSignatureElements(root)

	canon := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	// Enveloped-signature transform: digest the root with whitespace-only
	// text nodes removed.
	rootCopy := root.Copy()
	removeWhitespaceNodes(rootCopy)
	rootCanon, err := canon.Canonicalize(rootCopy)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize root: %v", common.ErrorSigning, err)
	}
	rootDigestB64 := base64.StdEncoding.EncodeToString(s.digest(rootCanon))

	signedInfo := etree.NewElement("ds:SignedInfo")
	signedInfo.CreateAttr("xmlns:ds", nsXMLDSig)
	cm := signedInfo.CreateElement("ds:CanonicalizationMethod")
	cm.CreateAttr("Algorithm", algExcC14N)
	sm := signedInfo.CreateElement("ds:SignatureMethod")
	sm.CreateAttr("Algorithm", s.signatureAlgURI())

	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("ds:Transforms")
	envTransform := transforms.CreateElement("ds:Transform")
	envTransform.CreateAttr("Algorithm", algEnveloped)
	c14nTransform := transforms.CreateElement("ds:Transform")
	c14nTransform.CreateAttr("Algorithm", algExcC14N)
	dm := ref.CreateElement("ds:DigestMethod")
	dm.CreateAttr("Algorithm", s.digestAlgURI())
	dv := ref.CreateElement("ds:DigestValue")
	dv.SetText(rootDigestB64)

	siCopy := signedInfo.Copy()
	removeWhitespaceNodes(siCopy)
	siCanon, err := canon.Canonicalize(siCopy)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize SignedInfo: %v", common.ErrorSigning, err)
	}

	sigBytes, err := rsa.SignPKCS1v15(rand.Reader, key, s.cryptoHash(), s.digest(siCanon))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorSigning, err)
	}

	signature := etree.NewElement("ds:Signature")
	signature.CreateAttr("xmlns:ds", nsXMLDSig)
	signature.AddChild(signedInfo)
	sigVal := signature.CreateElement("ds:SignatureValue")
	sigVal.SetText(base64.StdEncoding.EncodeToString(sigBytes))

	keyInfo := signature.CreateElement("ds:KeyInfo")
	x509Data := keyInfo.CreateElement("ds:X509Data")
	x509Cert := x509Data.CreateElement("ds:X509Certificate")
	x509Cert.SetText(base64.StdEncoding.EncodeToString(cert.Raw))

	root.AddChild(signature)

	out := etree.NewDocument()
	out.SetRoot(root.Copy())
	return out.WriteToBytes()
}

func (s *Signer) digest(data []byte) []byte {
	switch s.alg {
	case RSASHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	default:
		sum := sha1.Sum(data)
		return sum[:]
	}
}

func (s *Signer) cryptoHash() crypto.Hash {
	if s.alg == RSASHA256 {
		return crypto.SHA256
	}
	return crypto.SHA1
}

func (s *Signer) signatureAlgURI() string {
	if s.alg == RSASHA256 {
		return algRSASHA256
	}
	return algRSASHA1
}

func (s *Signer) digestAlgURI() string {
	if s.alg == RSASHA256 {
		return algDigestSHA256
	}
	return algDigestSHA1
}

// ParseRSAPrivateKey accepts PKCS#8 or PKCS#1 PEM and requires an RSA key.
func ParseRSAPrivateKey(keyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("no PEM block in private key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("only RSA private keys are supported")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// ParseCertificate decodes a PEM certificate.
func ParseCertificate(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no certificate PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}

// removeSignatureElements drops any existing <Signature> elements, the
// enveloped-signature transform.
func removeSignatureElements(el *etree.Element) {
	var kept []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			if strings.EqualFold(c.Tag, "Signature") || strings.HasSuffix(c.Tag, ":Signature") {
				continue
			}
			removeSignatureElements(c)
			kept = append(kept, c)
		default:
			kept = append(kept, c)
		}
	}
	el.Child = kept
}

// removeWhitespaceNodes drops text nodes that contain only whitespace, so
// that indentation does not change the digest.
func removeWhitespaceNodes(el *etree.Element) {
	var kept []etree.Token
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			removeWhitespaceNodes(c)
			kept = append(kept, c)
		case *etree.CharData:
			if strings.TrimSpace(c.Data) != "" {
				kept = append(kept, c)
			}
		default:
			kept = append(kept, c)
		}
	}
	el.Child = kept
}
