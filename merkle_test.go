package forge

import "testing"

func leavesFor(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = Hash(string(rune('a' + i)))
	}
	return out
}

func TestBuildTree_Empty(t *testing.T) {
	tree := BuildTree(nil)
	if tree.Root != Hash("empty") {
		t.Errorf("expected root hash(empty), got %s", tree.Root)
	}
	if len(tree.Layers) != 1 || len(tree.Layers[0]) != 0 {
		t.Errorf("expected a single empty layer, got %v", tree.Layers)
	}
}

func TestBuildTree_SingleLeaf(t *testing.T) {
	leaf := Hash("solo")
	tree := BuildTree([]string{leaf})
	if tree.Root != leaf {
		t.Errorf("single-leaf root must equal the leaf, got %s want %s", tree.Root, leaf)
	}
}

func TestMerkleProof_EightLeaves(t *testing.T) {
	leaves := leavesFor(8)
	tree := BuildTree(leaves)
	proof := GetMerkleProof(tree.Layers, 3)
	if len(proof) != 3 {
		t.Fatalf("expected a 3-element proof for 8 leaves, got %d", len(proof))
	}
	if !VerifyMerkleProof(leaves[3], proof, tree.Root) {
		t.Fatal("valid proof must verify")
	}
	if VerifyMerkleProof(Hash("not-a-leaf"), proof, tree.Root) {
		t.Fatal("substituted leaf must not verify")
	}
}

func TestMerkleProof_AllLeavesVerify(t *testing.T) {
	leaves := leavesFor(8)
	tree := BuildTree(leaves)
	for i, leaf := range leaves {
		proof := GetMerkleProof(tree.Layers, i)
		if !VerifyMerkleProof(leaf, proof, tree.Root) {
			t.Errorf("leaf %d failed to verify", i)
		}
	}
}

func TestMerkleProof_OddLeafCount_SelfPair(t *testing.T) {
	leaves := leavesFor(5)
	tree := BuildTree(leaves)
	for _, i := range []int{0, 4} {
		proof := GetMerkleProof(tree.Layers, i)
		if !VerifyMerkleProof(leaves[i], proof, tree.Root) {
			t.Errorf("leaf %d (odd-count tree) failed to verify", i)
		}
	}
}

func TestMerkleProof_ReplacedLeafFails(t *testing.T) {
	leaves := leavesFor(8)
	tree := BuildTree(leaves)
	for i := range leaves {
		proof := GetMerkleProof(tree.Layers, i)
		for _, other := range leaves {
			if other == leaves[i] {
				continue
			}
			if VerifyMerkleProof(other, proof, tree.Root) {
				t.Errorf("leaf %d: distinct hash %s unexpectedly verified", i, other)
			}
		}
	}
}
