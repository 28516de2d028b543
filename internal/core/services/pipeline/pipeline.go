package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// Pipeline decouples ingestion from evaluation: the ledger publishes
// appended entries into an unbounded in-order queue here, a single worker
// evaluates them and drives the alert manager, and every event is
// forwarded to the downstream broadcaster. A slow rule or subscriber can
// therefore never stall Append, while entries of one ledger are still
// processed strictly in append order (correlation bumping and severity
// escalation are order-sensitive).
type Pipeline struct {
	engine      ports.PolicyEngine
	alerts      ports.AlertManager
	store       ports.EntryStore
	broadcaster ports.Publisher

	mu      sync.Mutex
	pending []domain.Entry
	signal  chan struct{}
}

// New creates the pipeline. Start must be called to launch the worker.
func New(engine ports.PolicyEngine, alerts ports.AlertManager, store ports.EntryStore, broadcaster ports.Publisher) *Pipeline {
	return &Pipeline{
		engine:      engine,
		alerts:      alerts,
		store:       store,
		broadcaster: broadcaster,
		signal:      make(chan struct{}, 1),
	}
}

// Publish implements ports.Publisher for the ledger: appended entries are
// queued for evaluation, and every event passes through to the
// broadcaster. The queue is unbounded on purpose: evaluation must never
// shed entries, and backpressure here would leak into Append.
func (p *Pipeline) Publish(event domain.Event) {
	if p.broadcaster != nil {
		p.broadcaster.Publish(event)
	}
	if event.Type != domain.EventEntryAppended {
		return
	}
	entry, ok := event.Payload.(domain.Entry)
	if !ok {
		return
	}

	p.mu.Lock()
	p.pending = append(p.pending, entry)
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Start launches the evaluation worker. It drains the queue in order and
// exits on ctx cancellation.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.signal:
				p.drain(ctx)
			}
		}
	}()
}

func (p *Pipeline) drain(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		entry := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return
		}
		p.process(ctx, entry)
	}
}

// process evaluates one entry. Failures are logged and recovered locally:
// no policy or alerting error may travel back toward ingestion.
func (p *Pipeline) process(ctx context.Context, entry domain.Entry) {
	matches, err := p.engine.Evaluate(ctx, entry)
	if err != nil {
		slog.Error("policy evaluation failed", "sequence", entry.Sequence, "error", err)
		return
	}
	if len(matches) == 0 {
		return
	}

	verdict := p.engine.ApplyActions(matches)

	if len(verdict.Tags) > 0 || verdict.Blocked || verdict.Quarantined {
		if err := p.store.ApplyVerdict(ctx, entry.ID, verdict); err != nil {
			slog.Error("verdict persistence failed", "entry", entry.ID, "error", err)
		}
	}

	for _, req := range verdict.AlertRequests {
		if _, err := p.alerts.OnMatch(ctx, req); err != nil {
			slog.Error("alert handling failed", "rule", req.Match.Rule.ID, "entry", entry.ID, "error", err)
		}
	}
}

// Ensure interface compliance
var _ ports.Publisher = (*Pipeline)(nil)
