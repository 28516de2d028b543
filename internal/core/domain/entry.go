package domain

import (
	"errors"
	"time"
)

// Domain Errors for the Ledger
var (
	ErrEmptyPayload     = errors.New("entry payload cannot be empty")
	ErrBadPayloadValue  = errors.New("entry payload values must be strings, numbers or booleans")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrInvalidRange     = errors.New("invalid sequence range")
	ErrAppendTimeout    = errors.New("append serialization point could not be acquired in time")
	ErrLedgerClosed     = errors.New("ledger is shut down")
	ErrReservedField    = errors.New("payload field name is reserved")
)

// FieldCorrects is the reserved payload field linking a correction entry to
// the entry it amends. Entries are never mutated; a correction is a new
// entry carrying the original's ID under this key.
const FieldCorrects = "corrects"

// Payload is the flat, caller-provided key/value content of an entry.
// Values are treated as opaque strings, numbers or booleans downstream.
type Payload map[string]any

// Entry is one immutable fact appended to the ledger. Hash covers
// sequence, timestamp, the canonicalized payload and PrevHash; Tags and
// the block/quarantine markers are evaluation results and are NOT hashed.
type Entry struct {
	ID          string    `json:"id"`
	Sequence    int64     `json:"sequence"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     Payload   `json:"payload"`
	Hash        string    `json:"hash"`
	PrevHash    string    `json:"prev_hash"`
	Tags        []string  `json:"tags,omitempty"`
	Blocked     bool      `json:"blocked,omitempty"`
	Quarantined bool      `json:"quarantined,omitempty"`
}

// ValidatePayload enforces the ingestion contract before a sequence number
// is ever assigned.
func ValidatePayload(p Payload) error {
	if len(p) == 0 {
		return ErrEmptyPayload
	}
	for _, v := range p {
		switch v.(type) {
		case string, bool, nil:
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		default:
			return ErrBadPayloadValue
		}
	}
	return nil
}

// ChainReport is the result of a range verification pass. A single broken
// link never aborts the walk: every break inside [From,To] is collected so
// operators get the full picture in one scan.
type ChainReport struct {
	From     int64   `json:"from"`
	To       int64   `json:"to"`
	Verified bool    `json:"verified"`
	BrokenAt []int64 `json:"broken_at,omitempty"`

	// BoundaryUnverifiable is set when From > 0 and the entry at From-1 is
	// unavailable, so the link into the range could not be checked. This is
	// distinct from a broken link.
	BoundaryUnverifiable bool `json:"boundary_unverifiable,omitempty"`

	Checked int `json:"checked"`
}
