package forge

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// PeerTransport is the channel two chain owners use to exchange atom
// slices for FindDivergence and to hand a counterparty a bilateral
// witness acknowledgement.
type PeerTransport interface {
	// FetchAtoms retrieves the half-open range [from, to) of a
	// counterparty's chain identified by chainID.
	FetchAtoms(chainID string, from, to int) ([]Atom, error)

	// SendBilateralAck hands a counterparty a bilateral witness receipt
	// for merkleRoot, acknowledging mutual possession of that root.
	SendBilateralAck(chainID, merkleRoot string, proof BilateralProof) error
}

// HTTPPeerTransport implements PeerTransport over HTTP using gob
// encoding.
type HTTPPeerTransport struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPPeerTransport creates an HTTP peer transport against baseURL.
func NewHTTPPeerTransport(baseURL string) *HTTPPeerTransport {
	return &HTTPPeerTransport{BaseURL: baseURL, Client: &http.Client{}}
}

// FetchAtoms performs a GET to /api/v1/chains/{chainID}/atoms with
// from/to query parameters, decoding a gob-encoded []Atom response.
func (t *HTTPPeerTransport) FetchAtoms(chainID string, from, to int) ([]Atom, error) {
	url := fmt.Sprintf("%s/api/v1/chains/%s/atoms?from=%d&to=%d", t.BaseURL, chainID, from, to)
	resp, err := t.Client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get atoms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	var atoms []Atom
	if err := gob.NewDecoder(resp.Body).Decode(&atoms); err != nil {
		return nil, fmt.Errorf("decode atoms: %w", err)
	}
	return atoms, nil
}

// SendBilateralAck POSTs a gob-encoded BilateralProof to
// /api/v1/chains/{chainID}/bilateral.
func (t *HTTPPeerTransport) SendBilateralAck(chainID, merkleRoot string, proof BilateralProof) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(proof); err != nil {
		return fmt.Errorf("encode bilateral proof: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/chains/%s/bilateral?root=%s", t.BaseURL, chainID, merkleRoot)
	resp, err := t.Client.Post(url, "application/octet-stream", &buf)
	if err != nil {
		return fmt.Errorf("post bilateral ack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// LocalPeerTransport is a PeerTransport that talks directly to an
// in-process PeerServer, for same-machine dispute resolution and tests
// where both chain owners are co-located.
type LocalPeerTransport struct {
	Server *PeerServer
}

// NewLocalPeerTransport creates a transport bound to an in-process
// PeerServer.
func NewLocalPeerTransport(server *PeerServer) *LocalPeerTransport {
	return &LocalPeerTransport{Server: server}
}

// FetchAtoms reads directly from the server's registered chain.
func (t *LocalPeerTransport) FetchAtoms(chainID string, from, to int) ([]Atom, error) {
	chain, ok := t.Server.Chain(chainID)
	if !ok {
		return nil, fmt.Errorf("unknown chain %q", chainID)
	}
	atoms := chain.Atoms()
	if from < 0 || to > len(atoms) || from > to {
		return nil, ErrOutOfRange
	}
	out := make([]Atom, to-from)
	copy(out, atoms[from:to])
	return out, nil
}

// SendBilateralAck records the proof directly on the server's witness
// store for chainID.
func (t *LocalPeerTransport) SendBilateralAck(chainID, merkleRoot string, proof BilateralProof) error {
	return t.Server.AcceptBilateral(chainID, merkleRoot, proof)
}

// FolderPeerTransport exchanges exported chains and bilateral proofs
// through a shared filesystem directory. This enables self-contained
// deployments where two chain owners share a mounted directory instead
// of a network path.
//
// Folder structure:
//
//	{dir}/chains/{chainID}.json      - ExportedChain
//	{dir}/bilateral/{chainID}/{root}.gob - BilateralProof
type FolderPeerTransport struct {
	BaseDir string
	mu      sync.Mutex
}

// NewFolderPeerTransport creates a folder-based transport, creating the
// directory structure if needed.
func NewFolderPeerTransport(dir string) (*FolderPeerTransport, error) {
	for _, d := range []string{filepath.Join(dir, "chains"), filepath.Join(dir, "bilateral")} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return nil, err
		}
	}
	return &FolderPeerTransport{BaseDir: dir}, nil
}

// FetchAtoms reads the exported chain for chainID from
// {BaseDir}/chains/{chainID}.json and slices [from, to) out of it.
func (ft *FolderPeerTransport) FetchAtoms(chainID string, from, to int) ([]Atom, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	path := filepath.Join(ft.BaseDir, "chains", chainID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exported chain: %w", err)
	}
	var exported ExportedChain
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("decode exported chain: %w", err)
	}
	if from < 0 || to > len(exported.Atoms) || from > to {
		return nil, ErrOutOfRange
	}
	return exported.Atoms[from:to], nil
}

// SendBilateralAck writes proof to
// {BaseDir}/bilateral/{chainID}/{merkleRoot}.gob.
func (ft *FolderPeerTransport) SendBilateralAck(chainID, merkleRoot string, proof BilateralProof) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	dir := filepath.Join(ft.BaseDir, "bilateral", chainID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	path := filepath.Join(dir, merkleRoot+".gob")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(proof)
}

// PublishChain writes the exported chain to {BaseDir}/chains/{chainID}.json
// so a counterparty's FetchAtoms can see it.
func (ft *FolderPeerTransport) PublishChain(chainID string, exported ExportedChain) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	path := filepath.Join(ft.BaseDir, "chains", chainID+".json")
	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return fmt.Errorf("encode exported chain: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadBilateralAck reads back a previously written bilateral proof.
func (ft *FolderPeerTransport) LoadBilateralAck(chainID, merkleRoot string) (BilateralProof, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	path := filepath.Join(ft.BaseDir, "bilateral", chainID, merkleRoot+".gob")
	f, err := os.Open(path)
	if err != nil {
		return BilateralProof{}, err
	}
	defer f.Close()

	var proof BilateralProof
	if err := gob.NewDecoder(f).Decode(&proof); err != nil {
		return BilateralProof{}, err
	}
	return proof, nil
}

var errNoSuchChain = errors.New("forge: unknown chain")
