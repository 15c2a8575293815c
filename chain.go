// Package forge implements a tamper-evident, hash-chained audit log with
// Merkle inclusion proofs and a four-level witness hierarchy running from
// a chain owner's own record up through Bitcoin-anchored OpenTimestamps
// attestation.
package forge

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RecordedOperation is the input to Chain.Record: the hashes of the
// operation's identity, pre-state, description, and post-state. Callers
// are expected to have already hashed raw values with Hash before
// constructing one (Chain never sees plaintext).
type RecordedOperation struct {
	Who    string
	From   string
	Action string
	To     string
}

// Block is a sealed Merkle tree over a contiguous, ordered slice of a
// chain's atoms.
type Block struct {
	Root      string     `json:"root"`
	Layers    [][]string `json:"layers,omitempty"`
	AtomCount int        `json:"atom_count"`
	AtomRange [2]int     `json:"atom_range"`
	PrevBlock string     `json:"prev_block"`
	BlockHash string     `json:"block_hash"`
	CreatedAt int64      `json:"created_at"`
}

// genesisBlockSentinel is PrevBlock's value for the first block of a chain.
const genesisBlockSentinel = "genesis"

// AtomProof is what Chain.ProveAtom returns: enough to let a third party
// verify, without the rest of the chain, that a specific atom is included
// in a specific sealed block.
type AtomProof struct {
	Atom        Atom              `json:"atom"`
	MerkleProof []MerkleProofStep `json:"merkle_proof"`
	MerkleRoot  string            `json:"merkle_root"`
	BlockHash   string            `json:"block_hash"`
}

// Chain is an owned aggregate of one identity's atoms and the blocks
// sealed over them. Record and Seal take the chain's write lock and the
// read accessors (Atoms, Blocks, PendingAtomCount, ProveAtom) its read
// lock, so every method may be called from multiple goroutines; atoms
// recorded concurrently are appended in the order their Record calls
// acquire the lock.
type Chain struct {
	Owner  string
	mu     sync.RWMutex
	atoms  []Atom
	blocks []Block

	proofCache *lru.Cache[int, *AtomProof]
}

// NewChain creates an empty chain owned by owner.
func NewChain(owner string) *Chain {
	cache, _ := lru.New[int, *AtomProof](256)
	return &Chain{Owner: owner, proofCache: cache}
}

// Record constructs an atom linking to the chain's current tail (or the
// genesis sentinel if the chain is empty), appends it, and returns it.
func (c *Chain) Record(op RecordedOperation) Atom {
	c.mu.Lock()
	defer c.mu.Unlock()

	var a Atom
	if len(c.atoms) == 0 {
		a = CreateAtom(op.Who, op.From, op.Action, op.To)
	} else {
		a = CreateAtom(op.Who, op.From, op.Action, op.To, c.atoms[len(c.atoms)-1].Proof)
	}
	c.atoms = append(c.atoms, a)
	return a
}

// Atoms returns a defensive copy of every atom recorded so far.
func (c *Chain) Atoms() []Atom {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Atom, len(c.atoms))
	copy(out, c.atoms)
	return out
}

// Blocks returns a defensive copy of every block sealed so far.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Seal builds a Merkle tree over the atoms not yet covered by any block
// (the half-open suffix tracked via the last block's AtomRange), forms a
// new block linked to the previous block's hash, appends it, and returns
// it. If there is nothing new to seal, Seal returns nil.
func (c *Chain) Seal(createdAt int64) *Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	prevBlockHash := genesisBlockSentinel
	if n := len(c.blocks); n > 0 {
		last := c.blocks[n-1]
		start = last.AtomRange[1] + 1
		prevBlockHash = last.BlockHash
	}
	end := len(c.atoms) - 1
	if start > end {
		return nil
	}

	suffix := c.atoms[start : end+1]
	leaves := make([]string, len(suffix))
	for i, a := range suffix {
		leaves[i] = a.Proof
	}
	tree := BuildTree(leaves)

	block := Block{
		Root:      tree.Root,
		Layers:    tree.Layers,
		AtomCount: len(suffix),
		AtomRange: [2]int{start, end},
		PrevBlock: prevBlockHash,
		CreatedAt: createdAt,
	}
	block.BlockHash = Hash(fmt.Sprintf("%s%s%d", block.Root, block.PrevBlock, block.CreatedAt))

	c.blocks = append(c.blocks, block)
	return &block
}

// PendingAtomCount returns how many recorded atoms are not yet covered by
// any sealed block.
func (c *Chain) PendingAtomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if n := len(c.blocks); n > 0 {
		start = c.blocks[n-1].AtomRange[1] + 1
	}
	return len(c.atoms) - start
}

// ShouldSeal reports whether the chain has accumulated at least
// cfg.AnchorEvery unsealed atoms and is due for a Seal call. A zero
// AnchorEvery never triggers.
func (c *Chain) ShouldSeal(cfg Config) bool {
	if cfg.AnchorEvery == 0 {
		return false
	}
	return uint64(c.PendingAtomCount()) >= cfg.AnchorEvery
}

// blockForIndex returns the block covering global atom index idx, or -1
// if no sealed block covers it. Caller must hold at least a read lock.
func (c *Chain) blockForIndex(idx int) int {
	for i, b := range c.blocks {
		if idx >= b.AtomRange[0] && idx <= b.AtomRange[1] {
			return i
		}
	}
	return -1
}

// ProveAtom locates the sealed block containing the atom at globalIndex,
// builds a Merkle inclusion proof against that block's stored layers, and
// returns it. It returns ErrNotSealed if the atom has not yet been sealed
// into any block.
func (c *Chain) ProveAtom(globalIndex int) (*AtomProof, error) {
	if cached, ok := c.proofCache.Get(globalIndex); ok {
		return cached, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if globalIndex < 0 || globalIndex >= len(c.atoms) {
		return nil, ErrOutOfRange
	}

	bi := c.blockForIndex(globalIndex)
	if bi == -1 {
		return nil, ErrNotSealed
	}
	block := c.blocks[bi]
	localIndex := globalIndex - block.AtomRange[0]

	proof := &AtomProof{
		Atom:        c.atoms[globalIndex],
		MerkleProof: GetMerkleProof(block.Layers, localIndex),
		MerkleRoot:  block.Root,
		BlockHash:   block.BlockHash,
	}
	c.proofCache.Add(globalIndex, proof)
	return proof, nil
}

// VerifyProof delegates to VerifyMerkleProof; it exists so callers that
// only hold a Chain need not import the Merkle verifier separately.
func (c *Chain) VerifyProof(leafHash string, proof []MerkleProofStep, expectedRoot string) bool {
	return VerifyMerkleProof(leafHash, proof, expectedRoot)
}

// Divergence is the result of FindDivergence: the point at which two
// chains stop agreeing, and why.
type Divergence struct {
	Diverged    bool   `json:"diverged"`
	AtIndex     int    `json:"at_index,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ActionMatch bool   `json:"action_match,omitempty"`
	StateMatch  bool   `json:"state_match,omitempty"`
	WhenA       int64  `json:"when_a,omitempty"`
	WhenB       int64  `json:"when_b,omitempty"`
}

// FindDivergence compares two chains pairwise, up to the shorter length,
// on (Action, From, To) — When is reported but does not participate in
// the equality test, since two honest parties may timestamp the same
// action microseconds apart. The first index at which action or state
// differs is the divergence point. If no pairwise difference is found but
// the chains have different lengths, the divergence is reported at
// min(len(a), len(b)) with reason "length_mismatch".
func FindDivergence(a, b []Atom) Divergence {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	for i := 0; i < minLen; i++ {
		actionMatch := a[i].Action == b[i].Action
		stateMatch := a[i].From == b[i].From && a[i].To == b[i].To
		if !actionMatch || !stateMatch {
			return Divergence{
				Diverged:    true,
				AtIndex:     i,
				Reason:      "content_mismatch",
				ActionMatch: actionMatch,
				StateMatch:  stateMatch,
				WhenA:       a[i].When,
				WhenB:       b[i].When,
			}
		}
	}

	if len(a) != len(b) {
		return Divergence{
			Diverged: true,
			AtIndex:  minLen,
			Reason:   "length_mismatch",
		}
	}

	return Divergence{Diverged: false}
}
