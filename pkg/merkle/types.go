package merkle

// MerkleTree is a lean incremental Merkle tree. Nodes are kept per level, levels[0] being
// the leaves and levels[depth] holding only the root. A node without a right sibling is
// carried up unchanged instead of being hashed with a zero or duplicate value, so the
// depth is ceil(log2(size)) and the root of an empty tree is the zero hash.
type MerkleTree struct {
	levels [][][32]byte
}

// MerkleProof represents a proof that a leaf is included in the tree.
type MerkleProof struct {
	// LeafIndex is the insertion index of the leaf
	LeafIndex int

	// Leaf is the hash of the leaf being proven
	Leaf [32]byte

	// Siblings are the sibling hashes from leaf to root. Levels where the path node had
	// no sibling are skipped.
	Siblings [][32]byte

	// Path[i] is true when the path node is the right child at the step using Siblings[i]
	Path []bool
}
