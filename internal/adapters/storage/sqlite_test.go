package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/services/hashchain"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEntry(seq int64, prevHash string) domain.Entry {
	ts := time.Now().UTC()
	payload := domain.Payload{"action": "login_failed", "n": float64(seq)}
	e := domain.Entry{
		ID:        fmt.Sprintf("entry-%d", seq),
		Sequence:  seq,
		Timestamp: ts,
		Payload:   payload,
		PrevHash:  prevHash,
	}
	e.Hash = hashchain.Compute(seq, ts, payload, prevHash)
	return e
}

func TestEntryStore_SaveAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := testEntry(0, hashchain.GenesisHash)
	require.NoError(t, store.SaveEntry(ctx, entry))

	byID, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Hash, byID.Hash)
	assert.True(t, entry.Timestamp.Equal(byID.Timestamp))
	require.NoError(t, hashchain.VerifyEntry(*byID))

	bySeq, err := store.GetEntryBySequence(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, bySeq.ID)

	count, err := store.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEntryStore_DuplicateSequenceFails(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := testEntry(0, hashchain.GenesisHash)
	require.NoError(t, store.SaveEntry(ctx, first))

	// A second row with the same sequence must fail loudly, never
	// overwrite history.
	dup := testEntry(0, hashchain.GenesisHash)
	dup.ID = "entry-dup"
	assert.Error(t, store.SaveEntry(ctx, dup))
}

func TestEntryStore_NotFound(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = store.GetEntryBySequence(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	last, err := store.LastEntry(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestEntryStore_RangeAndLast(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	prev := hashchain.GenesisHash
	for seq := int64(0); seq < 5; seq++ {
		e := testEntry(seq, prev)
		require.NoError(t, store.SaveEntry(ctx, e))
		prev = e.Hash
	}

	entries, err := store.GetEntryRange(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Sequence)
	}

	last, err := store.LastEntry(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(4), last.Sequence)
}

func TestEntryStore_ApplyVerdict(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := testEntry(0, hashchain.GenesisHash)
	require.NoError(t, store.SaveEntry(ctx, entry))

	verdict := domain.Verdict{Tags: []string{"suspicious"}, Quarantined: true}
	require.NoError(t, store.ApplyVerdict(ctx, entry.ID, verdict))

	got, err := store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"suspicious"}, got.Tags)
	assert.True(t, got.Quarantined)

	// The verdict columns are outside the hashed fields.
	require.NoError(t, hashchain.VerifyEntry(*got))

	assert.ErrorIs(t, store.ApplyVerdict(ctx, "missing", verdict), domain.ErrEntryNotFound)
}

func TestRuleRepository_UpsertAndOrdering(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	mk := func(id, name string, priority int, created time.Time) domain.Rule {
		return domain.Rule{
			ID:        id,
			Name:      name,
			Priority:  priority,
			Enabled:   true,
			Actions:   []domain.Action{{Type: domain.ActionTag, Label: "t"}},
			Version:   1,
			CreatedAt: created,
			UpdatedAt: created,
		}
	}

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SaveRule(ctx, mk("r-low", "low", 1, base)))
	require.NoError(t, store.SaveRule(ctx, mk("r-high", "high", 10, base.Add(time.Second))))
	require.NoError(t, store.SaveRule(ctx, mk("r-tie-old", "tie old", 5, base)))
	require.NoError(t, store.SaveRule(ctx, mk("r-tie-new", "tie new", 5, base.Add(2*time.Second))))

	rules, err := store.ListRules(ctx, false)
	require.NoError(t, err)
	require.Len(t, rules, 4)
	assert.Equal(t, "r-high", rules[0].ID)
	assert.Equal(t, "r-tie-old", rules[1].ID)
	assert.Equal(t, "r-tie-new", rules[2].ID)
	assert.Equal(t, "r-low", rules[3].ID)

	// Upsert replaces in place.
	updated := mk("r-low", "low renamed", 1, base)
	updated.Version = 2
	require.NoError(t, store.SaveRule(ctx, updated))
	got, err := store.GetRule(ctx, "r-low")
	require.NoError(t, err)
	assert.Equal(t, "low renamed", got.Name)
	assert.Equal(t, 2, got.Version)

	// Soft-deleted rules hide from the default listing only.
	deleted := mk("r-high", "high", 10, base.Add(time.Second))
	deleted.Deleted = true
	deleted.Enabled = false
	require.NoError(t, store.SaveRule(ctx, deleted))

	active, err := store.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 3)
	all, err := store.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = store.GetRule(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestAlertRepository_CorrelationLookup(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	open, err := domain.NewAlert("rule-1", "entry-1", "rule-1|10.0.0.5", "msg", domain.SeverityHigh)
	require.NoError(t, err)
	require.NoError(t, store.SaveAlert(ctx, *open))

	closed, err := domain.NewAlert("rule-1", "entry-2", "rule-1|10.0.0.9", "msg", domain.SeverityLow)
	require.NoError(t, err)
	require.NoError(t, closed.Transition(domain.StatusDismissed, "analyst", "noise"))
	require.NoError(t, store.SaveAlert(ctx, *closed))

	got, err := store.FindOpenByCorrelationKey(ctx, "rule-1|10.0.0.5")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, open.ID, got.ID)

	// Terminal alerts never match their key.
	got, err = store.FindOpenByCorrelationKey(ctx, "rule-1|10.0.0.9")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.FindOpenByCorrelationKey(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAlertRepository_UpdateFilterAndCounts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	alert, err := domain.NewAlert("rule-1", "entry-1", "k1", "msg", domain.SeverityMedium)
	require.NoError(t, err)
	require.NoError(t, store.SaveAlert(ctx, *alert))

	// Upsert after a lifecycle change.
	require.NoError(t, alert.Transition(domain.StatusAcknowledged, "analyst", ""))
	require.NoError(t, store.SaveAlert(ctx, *alert))

	got, err := store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAcknowledged, got.Status)
	require.Len(t, got.History, 1)

	other, err := domain.NewAlert("rule-2", "entry-2", "k2", "msg", domain.SeverityCritical)
	require.NoError(t, err)
	require.NoError(t, store.SaveAlert(ctx, *other))

	acked, err := store.ListAlerts(ctx, domain.AlertFilter{Status: domain.StatusAcknowledged})
	require.NoError(t, err)
	require.Len(t, acked, 1)
	assert.Equal(t, alert.ID, acked[0].ID)

	bySev, err := store.ListAlerts(ctx, domain.AlertFilter{Severity: domain.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, bySev, 1)
	assert.Equal(t, other.ID, bySev[0].ID)

	limited, err := store.ListAlerts(ctx, domain.AlertFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := store.CountAlertsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.StatusAcknowledged])
	assert.Equal(t, int64(1), counts[domain.StatusNew])

	_, err = store.GetAlert(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)
}
