package forge

import (
	"os"
	"path/filepath"
	"testing"
)

func tempFileStore(t *testing.T) *FileStore {
	dir, err := os.MkdirTemp("", "forge-filestore-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestFileStore_AppendAndGetAtoms(t *testing.T) {
	store := tempFileStore(t)

	chain := NewChain("owner@example.com")
	a1 := chain.Record(RecordedOperation{Who: "owner@example.com", From: "draft", Action: "submit", To: "review"})
	a2 := chain.Record(RecordedOperation{Who: "owner@example.com", From: "review", Action: "approve", To: "done"})

	if _, err := store.AppendAtom(a1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AppendAtom(a2); err != nil {
		t.Fatal(err)
	}

	if store.AtomCount() != 2 {
		t.Fatalf("expected 2 atoms, got %d", store.AtomCount())
	}
	if store.LastProof() != a2.Proof {
		t.Errorf("expected last proof %s, got %s", a2.Proof, store.LastProof())
	}

	atoms, err := store.GetAtoms(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(atoms) != 2 || atoms[1].Action != "approve" {
		t.Errorf("unexpected atoms: %+v", atoms)
	}
}

func TestFileStore_LastProof_EmptyIsGenesis(t *testing.T) {
	store := tempFileStore(t)
	if store.LastProof() != genesisSentinel {
		t.Errorf("expected genesis sentinel, got %s", store.LastProof())
	}
}

func TestFileStore_GetAtoms_OutOfRange(t *testing.T) {
	store := tempFileStore(t)
	if _, err := store.GetAtoms(0, 5); err != ErrOutOfRange {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir, err := os.MkdirTemp("", "forge-filestore-reopen-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	chain := NewChain("owner@example.com")
	atom := chain.Record(RecordedOperation{Who: "owner@example.com", From: "draft", Action: "submit", To: "review"})
	if _, err := store.AppendAtom(atom); err != nil {
		t.Fatal(err)
	}
	block := chain.Seal(1000)
	if _, err := store.AppendBlock(*block); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.AtomCount() != 1 {
		t.Fatalf("expected 1 atom after reopen, got %d", reopened.AtomCount())
	}
	blocks, err := reopened.GetBlocks()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || blocks[0].Root != block.Root {
		t.Errorf("unexpected blocks after reopen: %+v", blocks)
	}
}

func TestFileStore_MalformedChainFileRecoversEmpty(t *testing.T) {
	dir, err := os.MkdirTemp("", "forge-filestore-corrupt-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, chainFileName), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	store, err := OpenFileStore(dir)
	if err != ErrStoreCorruption {
		t.Fatalf("expected ErrStoreCorruption, got %v", err)
	}
	if store == nil {
		t.Fatal("expected a usable store alongside ErrStoreCorruption")
	}
	if store.AtomCount() != 0 {
		t.Errorf("expected recovery to an empty chain, got %d atoms", store.AtomCount())
	}
}

func TestFileStore_SaveAndGetAction(t *testing.T) {
	store := tempFileStore(t)

	actionHash := Hash("submit")
	if err := store.SaveAction(actionHash, "submit the quarterly report", map[string]any{"author": "alice"}); err != nil {
		t.Fatal(err)
	}

	plaintext, metadata, found, err := store.GetAction(actionHash)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected action to be found")
	}
	if plaintext != "submit the quarterly report" {
		t.Errorf("unexpected plaintext: %s", plaintext)
	}
	if metadata["author"] != "alice" {
		t.Errorf("unexpected metadata: %+v", metadata)
	}
}

func TestFileStore_ActionsFileCarriesLocalOnlyNote(t *testing.T) {
	store := tempFileStore(t)
	if err := store.SaveAction(Hash("x"), "plaintext", nil); err != nil {
		t.Fatal(err)
	}
	if store.actions.Note != localOnlyNote {
		t.Errorf("expected local-only note, got %q", store.actions.Note)
	}
}

func TestFileStore_GetHistory_JoinsActionText(t *testing.T) {
	store := tempFileStore(t)

	chain := NewChain("owner@example.com")
	atom := chain.Record(RecordedOperation{Who: "owner@example.com", From: "draft", Action: Hash("submit"), To: "review"})
	if _, err := store.AppendAtom(atom); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAction(Hash("submit"), "submit the quarterly report", nil); err != nil {
		t.Fatal(err)
	}

	history, err := store.GetHistory(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].ActionText != "submit the quarterly report" {
		t.Errorf("expected joined action text, got %q", history[0].ActionText)
	}
}

func TestFileStore_GetHistory_LimitsToMostRecent(t *testing.T) {
	store := tempFileStore(t)
	chain := NewChain("owner@example.com")
	for i := 0; i < 5; i++ {
		atom := chain.Record(RecordedOperation{Who: "owner@example.com", From: "s", Action: "act", To: "s"})
		if _, err := store.AppendAtom(atom); err != nil {
			t.Fatal(err)
		}
	}

	history, err := store.GetHistory(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Index != 3 || history[1].Index != 4 {
		t.Errorf("expected the most recent two indices, got %d and %d", history[0].Index, history[1].Index)
	}
}

func TestFileStore_WitnessRoundTrip(t *testing.T) {
	store := tempFileStore(t)
	root := "some-root"

	proof := CreateBilateralWitness(root, "counterparty@example.com", 1000)
	if err := store.SaveWitness(root, WitnessReceipt{Kind: ReceiptKindBilateral, Level: LevelBilateral, Bilateral: &proof}); err != nil {
		t.Fatal(err)
	}

	receipts, err := store.LoadWitnesses(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 || receipts[0].Bilateral.Counterparty != "counterparty@example.com" {
		t.Errorf("unexpected witnesses: %+v", receipts)
	}
}

func TestFileStore_LoadWitnesses_UnknownRootIsEmpty(t *testing.T) {
	store := tempFileStore(t)
	receipts, err := store.LoadWitnesses("nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 0 {
		t.Errorf("expected no witnesses, got %d", len(receipts))
	}
}

func TestFileStore_ExportAllExcludesActions(t *testing.T) {
	store := tempFileStore(t)
	chain := NewChain("owner@example.com")
	atom := chain.Record(RecordedOperation{Who: "owner@example.com", From: "draft", Action: "submit", To: "review"})
	if _, err := store.AppendAtom(atom); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAction(Hash("submit"), "secret plaintext", nil); err != nil {
		t.Fatal(err)
	}

	exported, err := store.ExportAll()
	if err != nil {
		t.Fatal(err)
	}
	if exported.AtomCount != 1 {
		t.Errorf("expected 1 atom in export, got %d", exported.AtomCount)
	}
	if exported.IdentityHash != atom.Proof {
		t.Errorf("expected identity hash %s, got %s", atom.Proof, exported.IdentityHash)
	}
}

func TestFileStore_ImportChainReplacesAtoms(t *testing.T) {
	store := tempFileStore(t)
	chain := NewChain("owner@example.com")
	atom := chain.Record(RecordedOperation{Who: "owner@example.com", From: "draft", Action: "submit", To: "review"})

	if err := store.ImportChain(ExportedChain{IdentityHash: atom.Proof, AtomCount: 1, Atoms: []Atom{atom}}); err != nil {
		t.Fatal(err)
	}
	if store.AtomCount() != 1 {
		t.Fatalf("expected 1 atom after import, got %d", store.AtomCount())
	}
}
