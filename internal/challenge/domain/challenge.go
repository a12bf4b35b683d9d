package domain

import (
	"fmt"
	"time"
)

// Purpose is the action a challenge authorizes. A challenge issued for one
// purpose cannot be consumed under another.
type Purpose string

const (
	PurposeLogin          Purpose = "login"
	PurposeValidateRecord Purpose = "validate_record"
	PurposeObserveRecord  Purpose = "observe_record"
)

// ParsePurpose validates s against the closed purpose set.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case PurposeLogin, PurposeValidateRecord, PurposeObserveRecord:
		return Purpose(s), nil
	default:
		return "", fmt.Errorf("unknown challenge purpose %q", s)
	}
}

// Challenge is a single-use, time-bounded nonce bound to a wallet and a
// purpose. Message is the exact byte string the wallet must sign. Once
// ConsumedAt is set the challenge is permanently inert; rows are kept for
// audit and only garbage-collected long after expiry.
type Challenge struct {
	Nonce      string
	Wallet     string
	Purpose    Purpose
	Message    string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// BuildMessage returns the deterministic signing message for a purpose and
// nonce pair.
func BuildMessage(purpose Purpose, nonce string) string {
	return fmt.Sprintf("ChainAudit:%s:%s", purpose, nonce)
}
