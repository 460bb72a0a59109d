// Package keyvault converts private key material into a password-encrypted
// envelope suitable for long-term storage, and back.
//
// The envelope is the only at-rest representation of a private key in the
// system: Seal derives a symmetric key from the password with scrypt and a
// fresh random salt, then encrypts with AES-256-GCM under a fresh random
// nonce. Open is the only way plaintext key material is ever produced, and
// callers must not retain the result beyond the single operation that needs
// it.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/scrypt"

	"github.com/mfuentesc/siidte/internal/common"
)

// scrypt cost parameters. Shared between Seal and Open: an envelope sealed
// with one set of constants is only ever opened with the same set.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	derivedKeyLn = 32

	saltSize  = 16
	nonceSize = 12
)

// Envelope is the encrypted-at-rest form of a private key plus the
// parameters needed to re-derive the decryption key from the password.
type Envelope struct {
	Ciphertext []byte
	Salt       []byte
	Nonce      []byte
}

// Seal encrypts keyPEM under a key derived from password. Salt and nonce are
// freshly generated for every call; reusing either across envelopes is a
// defect.
func Seal(keyPEM []byte, password string) (*Envelope, error) {
	salt := common.GenerateRandByteArray(saltSize)

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, derivedKeyLn)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	ciphertext := aesgcm.Seal(nil, nonce, keyPEM, nil)

	return &Envelope{Ciphertext: ciphertext, Salt: salt, Nonce: nonce}, nil
}

// Open re-derives the symmetric key from password and the stored salt and
// decrypts the envelope. A failed authentication check means the password
// does not match the one used at seal time and yields ErrorWrongPassword.
func Open(env *Envelope, password string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), env.Salt, scryptN, scryptR, scryptP, derivedKeyLn)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	keyPEM, err := aesgcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrorWrongPassword
	}

	return keyPEM, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
