package forge

import (
	"crypto/tls"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// PeerServer exposes HTTP endpoints that let a counterparty fetch atom
// ranges (for FindDivergence) and hand back a bilateral witness
// acknowledgement.
type PeerServer struct {
	mu        sync.RWMutex
	chains    map[string]*Chain
	witnesses WitnessStore
	tlsConfig *tls.Config
}

// NewPeerServer creates a PeerServer backed by ws for persisting
// incoming bilateral acknowledgements.
func NewPeerServer(ws WitnessStore) *PeerServer {
	if ws == nil {
		ws = NewMemoryWitnessStore()
	}
	return &PeerServer{
		chains:    make(map[string]*Chain),
		witnesses: ws,
	}
}

// SetTLSConfig clones cfg and stores it for use when serving HTTPS
// requests. Passing nil resets to a default configuration.
func (s *PeerServer) SetTLSConfig(cfg *tls.Config) {
	if cfg == nil {
		s.tlsConfig = nil
		return
	}
	s.tlsConfig = cfg.Clone()
}

// RegisterChain associates chainID with chain so peer requests against
// that ID can be served.
func (s *PeerServer) RegisterChain(chainID string, chain *Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[chainID] = chain
}

// Chain returns the chain registered under chainID.
func (s *PeerServer) Chain(chainID string) (*Chain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[chainID]
	return c, ok
}

// AcceptBilateral persists proof for merkleRoot on behalf of chainID.
func (s *PeerServer) AcceptBilateral(chainID, merkleRoot string, proof BilateralProof) error {
	if _, ok := s.Chain(chainID); !ok {
		return errNoSuchChain
	}
	return s.witnesses.SaveWitness(merkleRoot, WitnessReceipt{
		Kind:      ReceiptKindBilateral,
		Level:     LevelBilateral,
		Bilateral: &proof,
	})
}

// HandleAtoms handles GET /api/v1/chains/{chainID}/atoms?from=&to=,
// responding with a gob-encoded []Atom.
func (s *PeerServer) HandleAtoms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chainID, ok := pathParam(r.URL.Path, "/api/v1/chains/", "/atoms")
	if !ok {
		http.Error(w, "missing chain id", http.StatusBadRequest)
		return
	}
	chain, ok := s.Chain(chainID)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown chain %q", chainID), http.StatusNotFound)
		return
	}

	atoms := chain.Atoms()
	from, to := 0, len(atoms)
	if v := r.URL.Query().Get("from"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			from = n
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			to = n
		}
	}
	if from < 0 || to > len(atoms) || from > to {
		http.Error(w, "range out of bounds", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if err := gob.NewEncoder(w).Encode(atoms[from:to]); err != nil {
		http.Error(w, fmt.Sprintf("encode atoms: %v", err), http.StatusInternalServerError)
	}
}

// HandleBilateral handles POST /api/v1/chains/{chainID}/bilateral?root=,
// decoding a gob-encoded BilateralProof body.
func (s *PeerServer) HandleBilateral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chainID, ok := pathParam(r.URL.Path, "/api/v1/chains/", "/bilateral")
	if !ok {
		http.Error(w, "missing chain id", http.StatusBadRequest)
		return
	}
	root := r.URL.Query().Get("root")
	if root == "" {
		http.Error(w, "missing root", http.StatusBadRequest)
		return
	}

	var proof BilateralProof
	if err := gob.NewDecoder(r.Body).Decode(&proof); err != nil {
		http.Error(w, fmt.Sprintf("decode bilateral proof: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.AcceptBilateral(chainID, root, proof); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "chain_id": chainID, "root": root})
}

// pathParam extracts the segment of path between prefix and suffix.
func pathParam(path, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix), true
}

// SetupRoutes configures HTTP routes for the peer server.
func (s *PeerServer) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/chains/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/atoms"):
			s.HandleAtoms(w, r)
		case strings.HasSuffix(r.URL.Path, "/bilateral"):
			s.HandleBilateral(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *PeerServer) tlsConfigWithDefaults() *tls.Config {
	if s.tlsConfig == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg := s.tlsConfig.Clone()
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}

// ListenAndServeTLS starts the HTTPS peer server.
func (s *PeerServer) ListenAndServeTLS(addr, certFile, keyFile string) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	server := &http.Server{
		Addr:      addr,
		Handler:   mux,
		TLSConfig: s.tlsConfigWithDefaults(),
	}
	return server.ListenAndServeTLS(certFile, keyFile)
}
