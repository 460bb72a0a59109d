package models

import "time"

// AuthSession holds the per-account SII challenge/response state. The seed
// is single-use: minting a token clears it. Zero time values mean the
// corresponding field is absent.
type AuthSession struct {
	AccountID string

	Seed         string
	SeedIssuedAt time.Time

	Token         string
	TokenIssuedAt time.Time
}
