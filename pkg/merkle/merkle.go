package merkle

import (
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

func NewMerkleTree() *MerkleTree {
	return &MerkleTree{levels: [][][32]byte{{}}}
}

// BuildAllocationTree inserts one leaf per allocation, in the given order.
// The order is part of the commitment, so callers must pass allocations canonically.
func BuildAllocationTree(allocs []*types.Allocation) *MerkleTree {
	tree := NewMerkleTree()
	for _, alloc := range allocs {
		tree.Insert(HashAllocation(alloc))
	}
	return tree
}

// HashAllocation is keccak256(abi.encodePacked(uint96 id, address participant, uint8 status, uint256 settled)).
func HashAllocation(alloc *types.Allocation) [32]byte {
	return [32]byte(alloc.LeafHash())
}

// Insert appends a leaf and updates the path to the root in O(log n).
func (mt *MerkleTree) Insert(leaf [32]byte) {
	index := mt.Size()
	depth := bits.Len(uint(index))
	for len(mt.levels)-1 < depth {
		mt.levels = append(mt.levels, nil)
	}

	node := leaf
	for level := 0; level < depth; level++ {
		mt.set(level, index, node)
		if index&1 == 1 {
			node = hashPair(mt.levels[level][index-1], node)
		}
		index >>= 1
	}
	mt.set(depth, 0, node)
}

func (mt *MerkleTree) InsertMany(leaves [][32]byte) {
	for _, leaf := range leaves {
		mt.Insert(leaf)
	}
}

func (mt *MerkleTree) set(level, index int, node [32]byte) {
	if index == len(mt.levels[level]) {
		mt.levels[level] = append(mt.levels[level], node)
		return
	}
	mt.levels[level][index] = node
}

func (mt *MerkleTree) Size() int {
	return len(mt.levels[0])
}

func (mt *MerkleTree) Depth() int {
	return len(mt.levels) - 1
}

// Root returns the zero hash for an empty tree.
func (mt *MerkleTree) Root() [32]byte {
	if mt.Size() == 0 {
		return [32]byte{}
	}
	return mt.levels[mt.Depth()][0]
}

func (mt *MerkleTree) Leaves() [][32]byte {
	out := make([][32]byte, mt.Size())
	copy(out, mt.levels[0])
	return out
}

// IndexOf returns the first index holding leaf, or -1.
func (mt *MerkleTree) IndexOf(leaf [32]byte) int {
	for i, l := range mt.levels[0] {
		if l == leaf {
			return i
		}
	}
	return -1
}

// GenerateProof creates a merkle proof for the leaf at the given index.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= mt.Size() {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, mt.Size())
	}

	proof := &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.levels[0][leafIndex],
	}
	index := leafIndex
	for level := 0; level < mt.Depth(); level++ {
		isRight := index&1 == 1
		sibling := index + 1
		if isRight {
			sibling = index - 1
		}
		if sibling < len(mt.levels[level]) {
			proof.Siblings = append(proof.Siblings, mt.levels[level][sibling])
			proof.Path = append(proof.Path, isRight)
		}
		index >>= 1
	}
	return proof, nil
}

// VerifyProof recomputes the root from the leaf and its siblings.
func VerifyProof(proof *MerkleProof, root [32]byte) bool {
	if proof == nil || len(proof.Siblings) != len(proof.Path) {
		return false
	}

	node := proof.Leaf
	for i, sibling := range proof.Siblings {
		if proof.Path[i] {
			node = hashPair(sibling, node)
		} else {
			node = hashPair(node, sibling)
		}
	}
	return node == root
}

// hashPair computes keccak256(left || right) for two 32-byte hashes.
func hashPair(left, right [32]byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(left[:], right[:]))
}
