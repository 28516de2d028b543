package policy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// memRuleRepo is an in-memory RuleRepository for engine tests.
type memRuleRepo struct {
	mu    sync.Mutex
	rules map[string]domain.Rule
}

func newMemRuleRepo() *memRuleRepo {
	return &memRuleRepo{rules: make(map[string]domain.Rule)}
}

func (r *memRuleRepo) SaveRule(ctx context.Context, rule domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *memRuleRepo) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule, ok := r.rules[id]; ok {
		cp := rule
		return &cp, nil
	}
	return nil, domain.ErrRuleNotFound
}

func (r *memRuleRepo) ListRules(ctx context.Context, includeDeleted bool) ([]domain.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Rule
	for _, rule := range r.rules {
		if rule.Deleted && !includeDeleted {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func mustRule(t *testing.T, name string, priority int, conditions []domain.Condition, actions []domain.Action) domain.Rule {
	t.Helper()
	rule, err := domain.NewRule(name, priority, conditions, actions)
	require.NoError(t, err)
	return *rule
}

func tagAction(label string) domain.Action {
	return domain.Action{Type: domain.ActionTag, Label: label}
}

func entryWith(payload domain.Payload) domain.Entry {
	return domain.Entry{ID: "e1", Sequence: 1, Timestamp: time.Now().UTC(), Payload: payload}
}

func ptr(f float64) *float64 { return &f }

func TestEvaluate_ReturnsAllMatchesByDescendingPriority(t *testing.T) {
	repo := newMemRuleRepo()
	engine := NewEngine(repo)
	ctx := context.Background()

	low := mustRule(t, "low", 5,
		[]domain.Condition{{Field: "action", Op: domain.OpEquals, Value: "login_failed"}},
		[]domain.Action{tagAction("auth")})
	high := mustRule(t, "high", 10,
		[]domain.Condition{{Field: "action", Op: domain.OpContains, Value: "failed"}},
		[]domain.Action{tagAction("failure")})
	unrelated := mustRule(t, "unrelated", 99,
		[]domain.Condition{{Field: "action", Op: domain.OpEquals, Value: "logout"}},
		[]domain.Action{tagAction("never")})
	require.NoError(t, repo.SaveRule(ctx, low))
	require.NoError(t, repo.SaveRule(ctx, high))
	require.NoError(t, repo.SaveRule(ctx, unrelated))

	matches, err := engine.Evaluate(ctx, entryWith(domain.Payload{"action": "login_failed"}))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "high", matches[0].Rule.Name)
	assert.Equal(t, "low", matches[1].Rule.Name)
}

func TestEvaluate_SkipsDisabledDeletedAndConditionless(t *testing.T) {
	repo := newMemRuleRepo()
	engine := NewEngine(repo)
	ctx := context.Background()

	disabled := mustRule(t, "disabled", 1,
		[]domain.Condition{{Field: "k", Op: domain.OpEquals, Value: "v"}},
		[]domain.Action{tagAction("t")})
	disabled.Enabled = false

	deleted := mustRule(t, "deleted", 1,
		[]domain.Condition{{Field: "k", Op: domain.OpEquals, Value: "v"}},
		[]domain.Action{tagAction("t")})
	deleted.Deleted = true

	// Zero conditions is a legal definition that must never match anything.
	empty := mustRule(t, "empty", 1, nil, []domain.Action{tagAction("t")})

	for _, rule := range []domain.Rule{disabled, deleted, empty} {
		require.NoError(t, repo.SaveRule(ctx, rule))
	}

	matches, err := engine.Evaluate(ctx, entryWith(domain.Payload{"k": "v"}))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEvaluate_AllConditionsMustHold(t *testing.T) {
	repo := newMemRuleRepo()
	engine := NewEngine(repo)
	ctx := context.Background()

	rule := mustRule(t, "both", 1,
		[]domain.Condition{
			{Field: "action", Op: domain.OpEquals, Value: "login_failed"},
			{Field: "sourceIP", Op: domain.OpContains, Value: "10.0."},
		},
		[]domain.Action{tagAction("t")})
	require.NoError(t, repo.SaveRule(ctx, rule))

	matches, err := engine.Evaluate(ctx, entryWith(domain.Payload{"action": "login_failed", "sourceIP": "10.0.0.7"}))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = engine.Evaluate(ctx, entryWith(domain.Payload{"action": "login_failed", "sourceIP": "192.168.1.1"}))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEvaluate_Predicates(t *testing.T) {
	tests := []struct {
		name    string
		cond    domain.Condition
		payload domain.Payload
		match   bool
	}{
		{"equals hit", domain.Condition{Field: "a", Op: domain.OpEquals, Value: "x"}, domain.Payload{"a": "x"}, true},
		{"equals is case sensitive", domain.Condition{Field: "a", Op: domain.OpEquals, Value: "x"}, domain.Payload{"a": "X"}, false},
		{"equals numeric field", domain.Condition{Field: "a", Op: domain.OpEquals, Value: "5"}, domain.Payload{"a": float64(5)}, true},
		{"contains case insensitive", domain.Condition{Field: "a", Op: domain.OpContains, Value: "ADM"}, domain.Payload{"a": "user-admin"}, true},
		{"contains miss", domain.Condition{Field: "a", Op: domain.OpContains, Value: "root"}, domain.Payload{"a": "user-admin"}, false},
		{"in-set hit", domain.Condition{Field: "a", Op: domain.OpInSet, Values: []string{"x", "y"}}, domain.Payload{"a": "y"}, true},
		{"in-set miss", domain.Condition{Field: "a", Op: domain.OpInSet, Values: []string{"x", "y"}}, domain.Payload{"a": "z"}, false},
		{"range inside", domain.Condition{Field: "a", Op: domain.OpRange, Min: ptr(1), Max: ptr(10)}, domain.Payload{"a": float64(5)}, true},
		{"range boundary inclusive", domain.Condition{Field: "a", Op: domain.OpRange, Min: ptr(1), Max: ptr(10)}, domain.Payload{"a": float64(10)}, true},
		{"range above", domain.Condition{Field: "a", Op: domain.OpRange, Min: ptr(1), Max: ptr(10)}, domain.Payload{"a": float64(11)}, false},
		{"range open max", domain.Condition{Field: "a", Op: domain.OpRange, Min: ptr(100)}, domain.Payload{"a": float64(500)}, true},
		{"range open min", domain.Condition{Field: "a", Op: domain.OpRange, Max: ptr(100)}, domain.Payload{"a": float64(5)}, true},
		{"range numeric string", domain.Condition{Field: "a", Op: domain.OpRange, Min: ptr(1), Max: ptr(10)}, domain.Payload{"a": "7"}, true},
		{"field absent", domain.Condition{Field: "missing", Op: domain.OpEquals, Value: "x"}, domain.Payload{"a": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRuleRepo()
			engine := NewEngine(repo)
			ctx := context.Background()

			rule := mustRule(t, "r", 1, []domain.Condition{tt.cond}, []domain.Action{tagAction("t")})
			require.NoError(t, repo.SaveRule(ctx, rule))

			matches, err := engine.Evaluate(ctx, entryWith(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.match, len(matches) == 1)
		})
	}
}

func TestEvaluate_MalformedConditionsWarnOnce(t *testing.T) {
	tests := []struct {
		name    string
		cond    domain.Condition
		payload domain.Payload
	}{
		{"empty in-set", domain.Condition{Field: "a", Op: domain.OpInSet}, domain.Payload{"a": "x"}},
		{"range on non-numeric", domain.Condition{Field: "a", Op: domain.OpRange, Min: ptr(1)}, domain.Payload{"a": "not-a-number"}},
		{"range with no bounds", domain.Condition{Field: "a", Op: domain.OpRange}, domain.Payload{"a": float64(5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRuleRepo()
			engine := NewEngine(repo)
			ctx := context.Background()

			rule := mustRule(t, "r", 1, []domain.Condition{tt.cond}, []domain.Action{tagAction("t")})
			require.NoError(t, repo.SaveRule(ctx, rule))

			entry := entryWith(tt.payload)

			// Malformed conditions degrade to a non-match, never an error.
			matches, err := engine.Evaluate(ctx, entry)
			require.NoError(t, err)
			assert.Empty(t, matches)

			select {
			case w := <-engine.Warnings():
				assert.Equal(t, rule.ID, w.RuleID)
				assert.Equal(t, "a", w.Field)
				assert.NotEmpty(t, w.Reason)
			default:
				t.Fatal("expected a rule warning")
			}

			// A second evaluation of the same rule/field stays silent.
			_, err = engine.Evaluate(ctx, entry)
			require.NoError(t, err)
			select {
			case w := <-engine.Warnings():
				t.Fatalf("unexpected duplicate warning: %+v", w)
			default:
			}
		})
	}
}

func TestApplyActions_TagsAccumulateAndDedupe(t *testing.T) {
	engine := NewEngine(newMemRuleRepo())

	r1 := mustRule(t, "r1", 10,
		[]domain.Condition{{Field: "a", Op: domain.OpEquals, Value: "x"}},
		[]domain.Action{tagAction("suspicious"), tagAction("auth")})
	r2 := mustRule(t, "r2", 5,
		[]domain.Condition{{Field: "a", Op: domain.OpEquals, Value: "x"}},
		[]domain.Action{tagAction("suspicious"), tagAction("brute-force")})

	entry := entryWith(domain.Payload{"a": "x"})
	verdict := engine.ApplyActions([]domain.Match{{Rule: r1, Entry: entry}, {Rule: r2, Entry: entry}})

	assert.Equal(t, []string{"suspicious", "auth", "brute-force"}, verdict.Tags)
	assert.False(t, verdict.Blocked)
	assert.False(t, verdict.Quarantined)
}

func TestApplyActions_FirstContainmentWins(t *testing.T) {
	engine := NewEngine(newMemRuleRepo())
	entry := entryWith(domain.Payload{"a": "x"})

	blocker := mustRule(t, "blocker", 10,
		[]domain.Condition{{Field: "a", Op: domain.OpEquals, Value: "x"}},
		[]domain.Action{{Type: domain.ActionBlock}})
	quarantiner := mustRule(t, "quarantiner", 5,
		[]domain.Condition{{Field: "a", Op: domain.OpEquals, Value: "x"}},
		[]domain.Action{{Type: domain.ActionQuarantine}, tagAction("late-tag")})

	// Matches arrive priority-ordered; the blocker outranks the quarantiner.
	verdict := engine.ApplyActions([]domain.Match{{Rule: blocker, Entry: entry}, {Rule: quarantiner, Entry: entry}})

	assert.True(t, verdict.Blocked)
	assert.False(t, verdict.Quarantined)
	assert.Equal(t, blocker.ID, verdict.ContainedBy)
	// Containment short-circuits further containment only; tags still apply.
	assert.Equal(t, []string{"late-tag"}, verdict.Tags)
}

func TestApplyActions_OpenAlertCollectsRequests(t *testing.T) {
	engine := NewEngine(newMemRuleRepo())
	entry := entryWith(domain.Payload{"a": "x"})

	rule := mustRule(t, "alerter", 1,
		[]domain.Condition{{Field: "a", Op: domain.OpEquals, Value: "x"}},
		[]domain.Action{{Type: domain.ActionOpenAlert, Severity: domain.SeverityHigh}})

	verdict := engine.ApplyActions([]domain.Match{{Rule: rule, Entry: entry}})
	require.Len(t, verdict.AlertRequests, 1)
	assert.Equal(t, domain.SeverityHigh, verdict.AlertRequests[0].Severity)
	assert.Equal(t, rule.ID, verdict.AlertRequests[0].Match.Rule.ID)
}
