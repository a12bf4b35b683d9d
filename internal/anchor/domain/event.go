package domain

import "time"

// EventType names a ledger event published on the anchor feed.
type EventType string

const (
	EventRecordCreated   EventType = "record_created"
	EventRecordValidated EventType = "record_validated"
	EventRecordObserved  EventType = "record_observed"
)

// Event is one entry of the append-only anchor feed: enough to let an
// external anchoring consumer bind a record hash to its sequence position
// without reading the database.
type Event struct {
	EventType      EventType `json:"event_type"`
	RecordID       string    `json:"record_id"`
	OnChainID      int64     `json:"on_chain_id"`
	RecordHash     string    `json:"record_hash"`
	TxHash         string    `json:"tx_hash"`
	MunicipalityID string    `json:"municipality_id"`
	ValidatorID    string    `json:"validator_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
