package policy

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
	"github.com/lcalzada-xor/auditchain/internal/telemetry"
)

// warningBuffer bounds the diagnostics channel; when nobody drains it the
// engine keeps evaluating and drops further warnings.
const warningBuffer = 128

// Engine evaluates entries against the active rule set. Evaluation never
// mutates rules and never fails ingestion: malformed conditions degrade to
// non-matches reported once per rule/field on the warning channel.
type Engine struct {
	repo     ports.RuleRepository
	warnings chan domain.RuleWarning

	mu     sync.Mutex
	warned map[string]struct{} // ruleID|field, dedupes repeat warnings
}

// NewEngine creates a policy engine over the given rule repository.
func NewEngine(repo ports.RuleRepository) *Engine {
	return &Engine{
		repo:     repo,
		warnings: make(chan domain.RuleWarning, warningBuffer),
		warned:   make(map[string]struct{}),
	}
}

// Warnings exposes structured evaluation diagnostics.
func (e *Engine) Warnings() <-chan domain.RuleWarning {
	return e.warnings
}

// Evaluate returns all matching enabled rules ordered by descending
// priority, ties broken by rule creation order. Rules with zero conditions
// never match.
func (e *Engine) Evaluate(ctx context.Context, entry domain.Entry) ([]domain.Match, error) {
	rules, err := e.repo.ListRules(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})

	var matches []domain.Match
	for _, rule := range rules {
		if !rule.Enabled || rule.Deleted || len(rule.Conditions) == 0 {
			continue
		}
		if e.ruleMatches(rule, entry) {
			telemetry.RuleMatches.WithLabelValues(rule.Name).Inc()
			matches = append(matches, domain.Match{Rule: rule, Entry: entry})
		}
	}
	return matches, nil
}

// ApplyActions folds the ordered matches into one verdict. Tags accumulate
// from every match; the first block/quarantine (i.e. the highest-priority
// one) wins and short-circuits only further block/quarantine actions; each
// open_alert yields an AlertRequest.
func (e *Engine) ApplyActions(matches []domain.Match) domain.Verdict {
	var verdict domain.Verdict
	seen := make(map[string]struct{})

	for _, m := range matches {
		for _, action := range m.Rule.Actions {
			switch action.Type {
			case domain.ActionTag:
				if _, dup := seen[action.Label]; !dup {
					seen[action.Label] = struct{}{}
					verdict.Tags = append(verdict.Tags, action.Label)
				}
			case domain.ActionOpenAlert:
				verdict.AlertRequests = append(verdict.AlertRequests, domain.AlertRequest{
					Match:    m,
					Severity: action.Severity,
				})
			case domain.ActionBlock:
				if !verdict.Blocked && !verdict.Quarantined {
					verdict.Blocked = true
					verdict.ContainedBy = m.Rule.ID
				}
			case domain.ActionQuarantine:
				if !verdict.Blocked && !verdict.Quarantined {
					verdict.Quarantined = true
					verdict.ContainedBy = m.Rule.ID
				}
			}
		}
	}
	return verdict
}

func (e *Engine) ruleMatches(rule domain.Rule, entry domain.Entry) bool {
	for _, cond := range rule.Conditions {
		if !e.conditionMatches(rule, cond, entry) {
			return false
		}
	}
	return true
}

func (e *Engine) conditionMatches(rule domain.Rule, cond domain.Condition, entry domain.Entry) bool {
	raw, ok := entry.Payload[cond.Field]
	if !ok {
		return false
	}
	value := Stringify(raw)

	switch cond.Op {
	case domain.OpEquals:
		return value == cond.Value
	case domain.OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(cond.Value))
	case domain.OpInSet:
		if len(cond.Values) == 0 {
			e.warn(rule.ID, cond.Field, "in-set condition has an empty set")
			return false
		}
		for _, v := range cond.Values {
			if v == value {
				return true
			}
		}
		return false
	case domain.OpRange:
		num, numeric := toFloat(raw)
		if !numeric {
			e.warn(rule.ID, cond.Field, "numeric-range condition against a non-numeric field")
			return false
		}
		if cond.Min == nil && cond.Max == nil {
			e.warn(rule.ID, cond.Field, "range condition with both bounds open")
			return false
		}
		if cond.Min != nil && num < *cond.Min {
			return false
		}
		if cond.Max != nil && num > *cond.Max {
			return false
		}
		return true
	default:
		e.warn(rule.ID, cond.Field, "unknown condition operator "+string(cond.Op))
		return false
	}
}

// warn reports a malformed condition once per rule/field pair, without
// ever failing the evaluation that tripped it.
func (e *Engine) warn(ruleID, field, reason string) {
	key := ruleID + "|" + field
	e.mu.Lock()
	if _, dup := e.warned[key]; dup {
		e.mu.Unlock()
		return
	}
	e.warned[key] = struct{}{}
	e.mu.Unlock()

	telemetry.RuleWarnings.Inc()
	select {
	case e.warnings <- domain.RuleWarning{RuleID: ruleID, Field: field, Reason: reason, At: time.Now().UTC()}:
	default:
	}
}

// Stringify renders a payload value for string predicates the same way the
// hash chain canonicalizes it: one fixed encoding per value class.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Ensure interface compliance
var _ ports.PolicyEngine = (*Engine)(nil)
