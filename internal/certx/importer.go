// Package certx parses uploaded PKCS#12 certificate containers and extracts
// the identity fields and key material the rest of the system works with.
package certx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/mfuentesc/siidte/internal/common"
)

// UnknownName is the sentinel shown when the certificate carries no usable
// common name. Identity display is best-effort; a missing CN never fails the
// import.
const UnknownName = "Desconocido"

// rutPattern matches a Chilean RUT (body plus check digit) anywhere in the
// certificate subject. Absence is not an error.
var rutPattern = regexp.MustCompile(`(\d{7,8}-[\dkK])`)

// Identity is the result of a successful container import. KeyPEM is handed
// to the key vault by the import path and must never be returned to callers
// outside it, nor logged.
type Identity struct {
	Subject   string
	Issuer    string
	ValidFrom time.Time
	ValidTo   time.Time
	RUT       string // best-effort, may be empty
	CertPEM   []byte
	KeyPEM    []byte
}

// Import unlocks a PKCS#12 container with password and extracts its single
// certificate and private-key entry.
//
// The container bytes are staged to a temporary file while parsing, and the
// file is removed on every exit path. Unlock failures yield
// ErrorWrongPassword; a container without exactly one certificate and key,
// or with a non-RSA key, yields ErrorInvalidContainer. Ambiguous decode
// failures are reported as ErrorWrongPassword, the common case.
func Import(containerBytes []byte, password string) (*Identity, error) {
	tmp, err := os.CreateTemp("", "cert-*.pfx")
	if err != nil {
		return nil, fmt.Errorf("staging container: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(containerBytes); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("staging container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("staging container: %w", err)
	}

	staged, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("staging container: %w", err)
	}

	priv, cert, err := pkcs12.Decode(staged, password)
	if err != nil {
		return nil, mapDecodeError(err)
	}
	if cert == nil {
		return nil, common.ErrorInvalidContainer
	}

	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: only RSA private keys are supported", common.ErrorInvalidContainer)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInvalidContainer, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})

	return &Identity{
		Subject:   commonNameOr(cert.Subject.CommonName),
		Issuer:    commonNameOr(cert.Issuer.CommonName),
		ValidFrom: cert.NotBefore,
		ValidTo:   cert.NotAfter,
		RUT:       rutPattern.FindString(cert.Subject.String()),
		CertPEM:   certPEM,
		KeyPEM:    keyPEM,
	}, nil
}

func commonNameOr(cn string) string {
	if cn == "" {
		return UnknownName
	}
	return cn
}

// mapDecodeError classifies pkcs12 decode failures. The format only lets us
// distinguish password problems where the library reports them explicitly;
// padding errors usually mean a wrong password too.
func mapDecodeError(err error) error {
	if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
		return common.ErrorWrongPassword
	}
	return fmt.Errorf("%w: %v", common.ErrorInvalidContainer, err)
}
