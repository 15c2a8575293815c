package forge

import "time"

// Atom is one immutable state-transition record in a chain.
//
// Proof is a pure function of the other fields:
//
//	Proof = HashMany(Who, From, Action, To, When, Prev...)
//
// mutating any field other than Proof breaks VerifyAtom.
type Atom struct {
	Who    string   `json:"who"`
	From   string   `json:"from"`
	Action string   `json:"action"`
	To     string   `json:"to"`
	When   int64    `json:"when"`
	Prev   []string `json:"prev"`
	Proof  string   `json:"proof"`
}

// genesisSentinel is the literal predecessor marker for the first atom of
// a chain.
const genesisSentinel = "genesis"

// CreateAtom stamps the current wall clock as When, normalises prev to an
// ordered sequence (wrapping bare values, defaulting to the genesis
// sentinel when none are given), and computes Proof via HashMany. The only
// failure mode is a clock read, which on every supported platform cannot
// fail, so CreateAtom returns a value directly rather than an error.
func CreateAtom(who, from, action, to string, prev ...string) Atom {
	return createAtomAt(who, from, action, to, time.Now().UnixMilli(), prev...)
}

// createAtomAt is CreateAtom with an explicit timestamp, split out so
// Chain.Record and tests can control When without a real clock.
func createAtomAt(who, from, action, to string, whenMs int64, prev ...string) Atom {
	p := normalizePrev(prev)
	hashArgs := append([]any{who, from, action, to, whenMs}, toAnySlice(p)...)
	proof := HashMany(hashArgs...)
	return Atom{
		Who:    who,
		From:   from,
		Action: action,
		To:     to,
		When:   whenMs,
		Prev:   p,
		Proof:  proof,
	}
}

func normalizePrev(prev []string) []string {
	if len(prev) == 0 {
		return []string{genesisSentinel}
	}
	out := make([]string, len(prev))
	copy(out, prev)
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// VerifyAtom recomputes HashMany(who, from, action, to, when, prev...) and
// reports whether it equals the stored Proof.
func VerifyAtom(a Atom) bool {
	hashArgs := append([]any{a.Who, a.From, a.Action, a.To, a.When}, toAnySlice(a.Prev)...)
	want := HashMany(hashArgs...)
	return want == a.Proof
}

// VerifyFailureReason names why VerifyChain stopped at BrokenAt.
type VerifyFailureReason string

const (
	// ReasonNone means verification did not fail.
	ReasonNone VerifyFailureReason = ""
	// ReasonProofMismatch means an atom's stored Proof does not match its
	// recomputed hash.
	ReasonProofMismatch VerifyFailureReason = "proof_mismatch"
	// ReasonChainBreak means an atom's Prev does not contain its
	// predecessor's Proof.
	ReasonChainBreak VerifyFailureReason = "chain_break"
	// ReasonTimeReversal means an atom's When precedes its predecessor's.
	ReasonTimeReversal VerifyFailureReason = "time_reversal"
)

// ChainVerification is the structured result of VerifyChain.
type ChainVerification struct {
	Valid    bool                `json:"valid"`
	BrokenAt int                 `json:"broken_at"`
	Reason   VerifyFailureReason `json:"reason,omitempty"`
}

// VerifyChain walks atoms in order and returns the first failure among:
// proof self-consistency, linkage to the predecessor's Proof (by
// membership in Prev, not scalar equality, leaving room for multiple
// predecessors later), and non-decreasing When. An empty sequence is
// valid with BrokenAt -1.
func VerifyChain(atoms []Atom) ChainVerification {
	if len(atoms) == 0 {
		return ChainVerification{Valid: true, BrokenAt: -1}
	}
	for i, a := range atoms {
		if !VerifyAtom(a) {
			return ChainVerification{Valid: false, BrokenAt: i, Reason: ReasonProofMismatch}
		}
		if i == 0 {
			continue
		}
		prev := atoms[i-1]
		if !containsString(a.Prev, prev.Proof) {
			return ChainVerification{Valid: false, BrokenAt: i, Reason: ReasonChainBreak}
		}
		if a.When < prev.When {
			return ChainVerification{Valid: false, BrokenAt: i, Reason: ReasonTimeReversal}
		}
	}
	return ChainVerification{Valid: true, BrokenAt: -1}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
