package models

import "time"

// CertificateEnvelope is the stored form of an account's digital
// certificate: public identity fields plus the private key sealed by the
// key vault. One envelope per account; re-import replaces it wholesale.
type CertificateEnvelope struct {
	AccountID string

	Subject   string
	Issuer    string
	ValidFrom time.Time
	ValidTo   time.Time
	RUT       string // best-effort, may be empty

	// CertPEM is public by design and stored in the clear.
	CertPEM string

	// Private key ciphertext and the parameters needed to re-derive the
	// decryption key from the account password. The plaintext key is never
	// persisted.
	KeyCiphertext []byte
	Salt          []byte
	Nonce         []byte

	IssuedAt time.Time
}
