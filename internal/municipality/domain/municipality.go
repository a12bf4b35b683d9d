package domain

import "time"

// Municipality is a submitting actor. Record submission and document
// attachment are authenticated with its API key (stored hashed), a separate
// and simpler trust boundary than wallet signatures.
type Municipality struct {
	ID         string
	Name       string
	Wallet     string
	APIKeyHash string
	Active     bool
	CreatedAt  time.Time
}
