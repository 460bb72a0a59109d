package certx

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/mfuentesc/siidte/internal/common"
)

// makeContainer builds a PKCS#12 container with a freshly generated
// self-signed certificate. subject may include a RUT in the SerialNumber
// field the way Chilean CA certificates carry it.
func makeContainer(t *testing.T, subject pkix.Name, password string) ([]byte, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      subject,
		Issuer:       subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfx, err := pkcs12.Legacy.Encode(key, cert, nil, password)
	require.NoError(t, err)
	return pfx, key
}

func TestImport_ExtractsIdentity(t *testing.T) {
	subject := pkix.Name{
		CommonName:   "Juan Pérez Soto",
		SerialNumber: "12345678-9",
		Organization: []string{"Empresa SpA"},
	}
	pfx, key := makeContainer(t, subject, "correct")

	id, err := Import(pfx, "correct")
	require.NoError(t, err)

	assert.Equal(t, "Juan Pérez Soto", id.Subject)
	assert.Equal(t, "Juan Pérez Soto", id.Issuer) // self-signed
	assert.Equal(t, "12345678-9", id.RUT)
	assert.False(t, id.ValidFrom.IsZero())
	assert.True(t, id.ValidTo.After(id.ValidFrom))

	// key round-trips as PKCS#8 PEM
	block, _ := pem.Decode(id.KeyPEM)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed.(*rsa.PrivateKey)))

	certBlock, _ := pem.Decode(id.CertPEM)
	require.NotNil(t, certBlock)
	assert.Equal(t, "CERTIFICATE", certBlock.Type)
}

func TestImport_WrongPassword(t *testing.T) {
	pfx, _ := makeContainer(t, pkix.Name{CommonName: "X"}, "correct")

	_, err := Import(pfx, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrorWrongPassword))
}

func TestImport_GarbageContainer(t *testing.T) {
	_, err := Import([]byte("this is not a pkcs12 container"), "pw")
	require.Error(t, err)
	// garbage is a structural failure, not a password failure
	assert.True(t, errors.Is(err, common.ErrorInvalidContainer) || errors.Is(err, common.ErrorWrongPassword))
}

func TestImport_MissingCommonNameFallsBack(t *testing.T) {
	pfx, _ := makeContainer(t, pkix.Name{Organization: []string{"Solo Org"}}, "pw")

	id, err := Import(pfx, "pw")
	require.NoError(t, err)
	assert.Equal(t, UnknownName, id.Subject)
	assert.Equal(t, UnknownName, id.Issuer)
}

func TestImport_NoRUTIsNotAnError(t *testing.T) {
	pfx, _ := makeContainer(t, pkix.Name{CommonName: "Sin Rut"}, "pw")

	id, err := Import(pfx, "pw")
	require.NoError(t, err)
	assert.Empty(t, id.RUT)
}
