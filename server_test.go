package forge

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func buildServerWithChain(chainID string) (*PeerServer, *Chain) {
	chain := NewChain("owner@example.com")
	chain.Record(RecordedOperation{Who: "owner@example.com", From: "draft", Action: "submit", To: "review"})
	chain.Record(RecordedOperation{Who: "owner@example.com", From: "review", Action: "approve", To: "done"})

	srv := NewPeerServer(nil)
	srv.RegisterChain(chainID, chain)
	return srv, chain
}

func TestNewPeerServer(t *testing.T) {
	srv := NewPeerServer(nil)
	if srv == nil {
		t.Fatal("NewPeerServer returned nil")
	}
	if srv.witnesses == nil {
		t.Error("NewPeerServer should default to a memory witness store")
	}
}

func TestPeerServer_HandleAtoms(t *testing.T) {
	srv, chain := buildServerWithChain("chain-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chains/chain-1/atoms?from=0&to=2", nil)
	w := httptest.NewRecorder()

	srv.HandleAtoms(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var atoms []Atom
	if err := gob.NewDecoder(w.Body).Decode(&atoms); err != nil {
		t.Fatal(err)
	}
	if len(atoms) != 2 {
		t.Fatalf("expected 2 atoms, got %d", len(atoms))
	}
	if atoms[0].Proof != chain.Atoms()[0].Proof {
		t.Error("returned atoms do not match the chain's recorded atoms")
	}
}

func TestPeerServer_HandleAtoms_UnknownChain(t *testing.T) {
	srv, _ := buildServerWithChain("chain-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chains/does-not-exist/atoms", nil)
	w := httptest.NewRecorder()

	srv.HandleAtoms(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPeerServer_HandleAtoms_OutOfRange(t *testing.T) {
	srv, _ := buildServerWithChain("chain-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chains/chain-1/atoms?from=0&to=50", nil)
	w := httptest.NewRecorder()

	srv.HandleAtoms(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPeerServer_HandleBilateral(t *testing.T) {
	srv, chain := buildServerWithChain("chain-1")

	block := chain.Seal(1000)
	proof := CreateBilateralWitness(block.Root, "counterparty@example.com", 1000)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(proof); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chains/chain-1/bilateral?root="+block.Root, &buf)
	w := httptest.NewRecorder()

	srv.HandleBilateral(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "accepted" {
		t.Errorf("expected status accepted, got %s", resp["status"])
	}

	receipts, err := srv.witnesses.LoadWitnesses(block.Root)
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 || receipts[0].Kind != ReceiptKindBilateral {
		t.Fatalf("expected one bilateral receipt, got %+v", receipts)
	}
}

func TestPeerServer_HandleBilateral_UnknownChain(t *testing.T) {
	srv, _ := buildServerWithChain("chain-1")

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(BilateralProof{}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chains/does-not-exist/bilateral?root=abc", &buf)
	w := httptest.NewRecorder()

	srv.HandleBilateral(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPeerServer_SetupRoutes(t *testing.T) {
	srv, _ := buildServerWithChain("chain-1")
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	if mux == nil {
		t.Fatal("mux should not be nil after SetupRoutes")
	}
}
