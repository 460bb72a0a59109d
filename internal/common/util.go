package common

import "crypto/rand"

// GenerateRandByteArray returns size cryptographically random bytes.
// rand.Read never returns an error on supported platforms; a failure here
// means the platform entropy source is broken, which is not recoverable.
func GenerateRandByteArray(size int) []byte {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// WipeByteArray zeroes the buffer in place. Callers use it to shorten the
// lifetime of plaintext key material; nil is accepted.
func WipeByteArray(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
