package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
	"github.com/lcalzada-xor/auditchain/internal/core/services/hashchain"
	"github.com/lcalzada-xor/auditchain/internal/telemetry"
)

// DefaultAppendTimeout bounds how long a caller waits to enqueue behind
// the writer before receiving domain.ErrAppendTimeout.
const DefaultAppendTimeout = 2 * time.Second

type appendRequest struct {
	ctx     context.Context
	payload domain.Payload
	reply   chan appendResult
}

type appendResult struct {
	entry domain.Entry
	err   error
}

// Service is the append-only ledger. A single writer goroutine owns the
// (last sequence, last hash) pair; Append calls queue on a channel instead
// of racing over shared state, so sequence assignment is strictly serial
// and gap-free.
type Service struct {
	store     ports.EntryStore
	publisher ports.Publisher

	requests      chan appendRequest
	appendTimeout time.Duration

	// writer-goroutine state; lastSeq is mirrored atomically for readers.
	lastSeq  atomic.Int64
	lastHash string

	quit chan struct{}
}

// Option configures the service.
type Option func(*Service)

// WithAppendTimeout overrides the enqueue timeout.
func WithAppendTimeout(d time.Duration) Option {
	return func(s *Service) { s.appendTimeout = d }
}

// New creates the ledger service and recovers the chain tail from the
// store. Start must be called before Append is usable.
func New(ctx context.Context, store ports.EntryStore, publisher ports.Publisher, opts ...Option) (*Service, error) {
	s := &Service{
		store:         store,
		publisher:     publisher,
		requests:      make(chan appendRequest),
		appendTimeout: DefaultAppendTimeout,
		lastHash:      hashchain.GenesisHash,
		quit:          make(chan struct{}),
	}
	s.lastSeq.Store(-1)
	for _, opt := range opts {
		opt(s)
	}

	last, err := store.LastEntry(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover ledger tail: %w", err)
	}
	if last != nil {
		s.lastSeq.Store(last.Sequence)
		s.lastHash = last.Hash
	}
	return s, nil
}

// Start launches the writer goroutine. It exits, and fails pending
// appends, when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	defer close(s.quit)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requests:
			req.reply <- s.commit(req)
		}
	}
}

// Append queues the payload behind the single writer and waits for the
// committed entry. Once a sequence number is assigned the operation either
// commits fully or fails as a whole; caller cancellation no longer applies.
func (s *Service) Append(ctx context.Context, payload domain.Payload) (domain.Entry, error) {
	if err := domain.ValidatePayload(payload); err != nil {
		return domain.Entry{}, err
	}
	if _, ok := payload[domain.FieldCorrects]; ok {
		return domain.Entry{}, domain.ErrReservedField
	}
	return s.append(ctx, payload)
}

func (s *Service) append(ctx context.Context, payload domain.Payload) (domain.Entry, error) {
	req := appendRequest{ctx: ctx, payload: payload, reply: make(chan appendResult, 1)}

	timer := time.NewTimer(s.appendTimeout)
	defer timer.Stop()

	select {
	case s.requests <- req:
	case <-timer.C:
		telemetry.AppendErrors.Inc()
		return domain.Entry{}, domain.ErrAppendTimeout
	case <-s.quit:
		return domain.Entry{}, domain.ErrLedgerClosed
	case <-ctx.Done():
		return domain.Entry{}, ctx.Err()
	}

	// Enqueued: the writer always replies, so wait unconditionally.
	select {
	case res := <-req.reply:
		return res.entry, res.err
	case <-s.quit:
		return domain.Entry{}, domain.ErrLedgerClosed
	}
}

// commit runs on the writer goroutine only.
func (s *Service) commit(req appendRequest) appendResult {
	seq := s.lastSeq.Load() + 1
	now := time.Now().UTC()

	entry := domain.Entry{
		ID:        uuid.NewString(),
		Sequence:  seq,
		Timestamp: now,
		Payload:   req.payload,
		PrevHash:  s.lastHash,
	}
	entry.Hash = hashchain.Compute(seq, now, req.payload, s.lastHash)

	// The caller cannot cancel a commit in flight; detach from its ctx
	// but keep its values for tracing.
	if err := s.store.SaveEntry(context.WithoutCancel(req.ctx), entry); err != nil {
		telemetry.AppendErrors.Inc()
		return appendResult{err: fmt.Errorf("persist entry %d: %w", seq, err)}
	}

	s.lastSeq.Store(seq)
	s.lastHash = entry.Hash
	telemetry.EntriesAppended.Inc()

	if s.publisher != nil {
		s.publisher.Publish(domain.NewEntryAppended(entry))
	}
	return appendResult{entry: entry}
}

// Correct appends a new entry amending originalID. The original entry is
// located first so a dangling reference can be rejected up front.
func (s *Service) Correct(ctx context.Context, originalID string, payload domain.Payload) (domain.Entry, error) {
	if err := domain.ValidatePayload(payload); err != nil {
		return domain.Entry{}, err
	}
	original, err := s.store.GetEntry(ctx, originalID)
	if err != nil {
		return domain.Entry{}, err
	}

	corrected := make(domain.Payload, len(payload)+1)
	for k, v := range payload {
		corrected[k] = v
	}
	corrected[domain.FieldCorrects] = original.ID
	return s.append(ctx, corrected)
}

// Get retrieves a single entry by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// GetRange retrieves entries in [from, to].
func (s *Service) GetRange(ctx context.Context, from, to int64) ([]domain.Entry, error) {
	if from < 0 || to < from {
		return nil, domain.ErrInvalidRange
	}
	return s.store.GetEntryRange(ctx, from, to)
}

// LastSequence returns the newest committed sequence, or -1 when empty.
func (s *Service) LastSequence() int64 {
	return s.lastSeq.Load()
}

// VerifyEntry recomputes the entry's own hash and compares it with the
// stored value.
func (s *Service) VerifyEntry(ctx context.Context, id string) (bool, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return false, err
	}
	if err := hashchain.VerifyEntry(*entry); err != nil {
		telemetry.VerifyFailures.Inc()
		slog.Warn("entry verification failed", "sequence", entry.Sequence, "error", err)
		return false, nil
	}
	return true, nil
}

// VerifyChain walks [from, to] in ascending order and collects every
// broken sequence; one break never aborts the scan. When from > 0 the
// predecessor entry validates the boundary link; if it is unavailable the
// boundary is reported unverifiable, distinct from broken. The walk is
// read-only and stops early on ctx cancellation.
func (s *Service) VerifyChain(ctx context.Context, from, to int64) (domain.ChainReport, error) {
	if from < 0 || to < from {
		return domain.ChainReport{}, domain.ErrInvalidRange
	}

	report := domain.ChainReport{From: from, To: to, Verified: true}

	var prev *domain.Entry
	if from > 0 {
		p, err := s.store.GetEntryBySequence(ctx, from-1)
		switch {
		case errors.Is(err, domain.ErrEntryNotFound):
			report.BoundaryUnverifiable = true
		case err != nil:
			return domain.ChainReport{}, err
		default:
			prev = p
		}
	}

	entries, err := s.store.GetEntryRange(ctx, from, to)
	if err != nil {
		return domain.ChainReport{}, err
	}

	expected := from
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return domain.ChainReport{}, err
		}
		e := entries[i]

		// Gaps in the persisted range are breaks too: a deleted row must
		// not hide behind a shorter result set.
		for expected < e.Sequence {
			report.BrokenAt = append(report.BrokenAt, expected)
			expected++
		}
		expected = e.Sequence + 1
		report.Checked++

		var linkErr error
		switch {
		case prev != nil:
			linkErr = hashchain.VerifyLink(e, *prev)
		case e.Sequence == 0:
			linkErr = hashchain.VerifyGenesis(e)
		default:
			// Unverifiable boundary: only the entry's own hash can be
			// checked for the first element.
			linkErr = hashchain.VerifyEntry(e)
		}
		if linkErr != nil {
			telemetry.VerifyFailures.Inc()
			report.BrokenAt = append(report.BrokenAt, e.Sequence)
		}
		prev = &entries[i]
	}
	for expected <= to && expected <= s.lastSeq.Load() {
		report.BrokenAt = append(report.BrokenAt, expected)
		expected++
	}

	report.Verified = len(report.BrokenAt) == 0
	return report, nil
}

// Ensure interface compliance
var _ ports.Ledger = (*Service)(nil)
