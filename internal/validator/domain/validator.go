package domain

// Validator is an institutional actor (avalista) authorized to validate or
// observe audit records. Wallet is unique case-insensitively; only active
// validators may authenticate or transition records.
type Validator struct {
	ID             string
	Name           string
	Wallet         string
	Active         bool
	ValidatedCount int
}
