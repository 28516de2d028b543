package ports

import (
	"context"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// Ledger is the append-only, hash-chained event log.
type Ledger interface {
	// Append assigns the next sequence number, timestamps, hashes and
	// persists the payload as a new entry, then publishes an appended
	// event. Concurrent calls queue behind a single writer.
	Append(ctx context.Context, payload domain.Payload) (domain.Entry, error)

	// Correct appends a new entry amending the one identified by
	// originalID. The original is never mutated.
	Correct(ctx context.Context, originalID string, payload domain.Payload) (domain.Entry, error)

	// Get retrieves a single entry by ID.
	Get(ctx context.Context, id string) (*domain.Entry, error)

	// GetRange retrieves entries in [from, to] by sequence.
	GetRange(ctx context.Context, from, to int64) ([]domain.Entry, error)

	// VerifyEntry recomputes the entry's own hash from its fields.
	VerifyEntry(ctx context.Context, id string) (bool, error)

	// VerifyChain walks [from, to] collecting every broken link. It is a
	// read-only diagnostic and honors ctx cancellation.
	VerifyChain(ctx context.Context, from, to int64) (domain.ChainReport, error)

	// LastSequence returns the sequence of the newest entry, or -1 when
	// the ledger is empty.
	LastSequence() int64
}
