package hashchain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// GenesisHash is the documented sentinel used as PrevHash by the entry at
// sequence 0.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrIntegrityViolation is the sentinel wrapped by every IntegrityError.
var ErrIntegrityViolation = errors.New("ledger integrity violation")

// IntegrityError pinpoints a chain or entry hash mismatch. It is surfaced
// to operators and never silently corrected.
type IntegrityError struct {
	Sequence int64
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation at sequence %d: %s", e.Sequence, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// Separators for the canonical encoding. Record/unit separators keep
// adjacent fields from colliding ("ab"+"c" vs "a"+"bc").
const (
	recSep  = '\x1e'
	unitSep = '\x1f'
)

// Canonical renders a payload deterministically: keys sorted
// lexicographically, every value encoded with a fixed, type-prefixed
// scheme. The same logical payload always produces the same bytes
// regardless of field insertion order or a JSON round trip.
func Canonical(p domain.Payload) []byte {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(unitSep)
		b.WriteString(canonicalValue(p[k]))
		b.WriteByte(recSep)
	}
	return []byte(b.String())
}

// canonicalValue fixes one encoding per value class. All numerics pass
// through float64 so that 5, int64(5) and 5.0 hash identically after any
// JSON round trip.
func canonicalValue(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case nil:
		return "z"
	case float64:
		return "n:" + strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case int:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case int8:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case int16:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case int32:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case int64:
		return "n:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case uint, uint8, uint16, uint32, uint64:
		f, _ := new(big.Float).SetString(fmt.Sprintf("%d", val))
		out, _ := f.Float64()
		return "n:" + strconv.FormatFloat(out, 'g', -1, 64)
	default:
		// ValidatePayload rejects these before append; kept total so a
		// hash is still reproducible for historical data.
		return "x:" + fmt.Sprintf("%v", val)
	}
}

// Compute is the pure digest over sequence, timestamp, canonical payload
// and the previous entry's hash. BLAKE2b-256, hex-encoded.
func Compute(sequence int64, timestamp time.Time, payload domain.Payload, prevHash string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strconv.FormatInt(sequence, 10)))
	h.Write([]byte{recSep})
	h.Write([]byte(strconv.FormatInt(timestamp.UTC().UnixNano(), 10)))
	h.Write([]byte{recSep})
	h.Write(Canonical(payload))
	h.Write([]byte{recSep})
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeEntry recomputes an entry's hash purely from its own fields.
func ComputeEntry(e domain.Entry) string {
	return Compute(e.Sequence, e.Timestamp, e.Payload, e.PrevHash)
}

// VerifyEntry checks that the stored hash is reproducible from the entry's
// own fields.
func VerifyEntry(e domain.Entry) error {
	if got := ComputeEntry(e); got != e.Hash {
		return &IntegrityError{Sequence: e.Sequence, Reason: "entry hash is not reproducible from its fields"}
	}
	return nil
}

// VerifyLink checks the linkage between two consecutive entries: the
// stored PrevHash must equal the predecessor's hash, and the entry's own
// hash must recompute. Any mismatch is an IntegrityError.
func VerifyLink(e, prev domain.Entry) error {
	if e.Sequence != prev.Sequence+1 {
		return &IntegrityError{Sequence: e.Sequence, Reason: fmt.Sprintf("sequence gap after %d", prev.Sequence)}
	}
	if e.PrevHash != prev.Hash {
		return &IntegrityError{Sequence: e.Sequence, Reason: "stored prev_hash does not match predecessor hash"}
	}
	return VerifyEntry(e)
}

// VerifyGenesis checks the entry at sequence 0 against the sentinel.
func VerifyGenesis(e domain.Entry) error {
	if e.Sequence != 0 {
		return &IntegrityError{Sequence: e.Sequence, Reason: "genesis check on non-zero sequence"}
	}
	if e.PrevHash != GenesisHash {
		return &IntegrityError{Sequence: e.Sequence, Reason: "genesis entry does not use the sentinel prev_hash"}
	}
	return VerifyEntry(e)
}
