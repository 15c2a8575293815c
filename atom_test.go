package forge

import "testing"

func TestCreateAtom_VerifiesOK(t *testing.T) {
	a := CreateAtom(Hash("alice"), Hash("state0"), Hash("deploy"), Hash("state1"))
	if !VerifyAtom(a) {
		t.Fatal("freshly created atom must verify")
	}
	if len(a.Prev) != 1 || a.Prev[0] != genesisSentinel {
		t.Errorf("expected default prev to be [genesis], got %v", a.Prev)
	}
}

func TestCreateAtom_SingleScalarPrevWrapped(t *testing.T) {
	a := CreateAtom("w", "f", "ac", "t", "some-proof")
	if len(a.Prev) != 1 || a.Prev[0] != "some-proof" {
		t.Errorf("expected scalar prev wrapped into sequence, got %v", a.Prev)
	}
}

func TestVerifyAtom_MutatedFieldBreaksVerification(t *testing.T) {
	a := CreateAtom(Hash("alice"), Hash("state0"), Hash("deploy"), Hash("state1"))
	mutated := a
	mutated.Action = Hash("something else")
	if VerifyAtom(mutated) {
		t.Fatal("mutated atom must not verify")
	}
}

func buildLinearChain(t *testing.T, actions []string) []Atom {
	t.Helper()
	atoms := make([]Atom, len(actions))
	prev := ""
	when := int64(1000)
	for i, action := range actions {
		var a Atom
		if i == 0 {
			a = createAtomAt(Hash("alice"), Hash("state0"), Hash(action), Hash("state1"), when)
		} else {
			a = createAtomAt(Hash("alice"), Hash("state0"), Hash(action), Hash("state1"), when, prev)
		}
		prev = a.Proof
		when++
		atoms[i] = a
	}
	return atoms
}

func TestVerifyChain_EmptyIsValid(t *testing.T) {
	v := VerifyChain(nil)
	if !v.Valid || v.BrokenAt != -1 {
		t.Errorf("empty chain must be valid with broken_at -1, got %+v", v)
	}
}

func TestVerifyChain_ValidLinearChain(t *testing.T) {
	atoms := buildLinearChain(t, []string{
		"apt update", "install nginx", "configure firewall", "deploy app", "enable ssl",
	})
	v := VerifyChain(atoms)
	if !v.Valid {
		t.Fatalf("expected valid chain, got %+v", v)
	}
}

func TestVerifyChain_MutationDetected(t *testing.T) {
	atoms := buildLinearChain(t, []string{
		"apt update", "install nginx", "configure firewall", "deploy app", "enable ssl",
	})
	atoms[2].Action = Hash("something else")
	v := VerifyChain(atoms)
	if v.Valid || v.BrokenAt != 2 || v.Reason != ReasonProofMismatch {
		t.Fatalf("expected broken_at=2 proof_mismatch, got %+v", v)
	}
}

func TestVerifyChain_ChainBreak(t *testing.T) {
	atoms := buildLinearChain(t, []string{"a", "b", "c"})
	// reforge atom 1 with a proof not linked to atom 0's proof
	bogus := createAtomAt(atoms[1].Who, atoms[1].From, atoms[1].Action, atoms[1].To, atoms[1].When, "not-the-real-predecessor")
	atoms[1] = bogus
	v := VerifyChain(atoms)
	if v.Valid || v.Reason != ReasonChainBreak || v.BrokenAt != 1 {
		t.Fatalf("expected broken_at=1 chain_break, got %+v", v)
	}
}

func TestVerifyChain_TimeReversal(t *testing.T) {
	atoms := buildLinearChain(t, []string{"a", "b"})
	broken := createAtomAt(atoms[1].Who, atoms[1].From, atoms[1].Action, atoms[1].To, atoms[0].When-1, atoms[0].Proof)
	atoms[1] = broken
	v := VerifyChain(atoms)
	if v.Valid || v.Reason != ReasonTimeReversal {
		t.Fatalf("expected time_reversal, got %+v", v)
	}
}

func TestVerifyChain_EqualTimestampsPass(t *testing.T) {
	a0 := createAtomAt("w", "f", "a0", "t", 1000)
	a1 := createAtomAt("w", "f", "a1", "t", 1000, a0.Proof)
	v := VerifyChain([]Atom{a0, a1})
	if !v.Valid {
		t.Fatalf("equal consecutive timestamps must pass monotonicity, got %+v", v)
	}
}

func TestVerifyAtom_AcceptsMultiParentPrev(t *testing.T) {
	p1 := CreateAtom("w", "f1", "a1", "t1")
	p2 := CreateAtom("w", "f2", "a2", "t2")
	child := CreateAtom("w", "f3", "a3", "t3", p1.Proof, p2.Proof)
	if !VerifyAtom(child) {
		t.Fatal("multi-parent atom must verify")
	}
}
