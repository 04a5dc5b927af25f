// Copyright 2025 Signia Protocol
//
// Merkle Commitment Tree
// Binary Merkle tree over the ordered leaf hash list of a schema. Internal
// nodes hash in the signia:merkle:node:v1 domain; the root is wrapped with
// the proof-root domain and the leaf count so trees over different leaf
// populations can never collide.

package merkle

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
)

// Odd-leaf rules. The compiler always emits duplicate_last; the verifier
// honors whichever rule the proof document declares.
const (
	OddLeafDuplicateLast = "duplicate_last"
	OddLeafPromoteLast   = "promote_last"
)

// Sibling sides in an inclusion path.
const (
	SideLeft  = "left"
	SideRight = "right"
)

// Common errors
var (
	ErrEmptyTree      = errors.New("cannot build tree from empty leaves")
	ErrUnknownOddRule = errors.New("unknown odd-leaf rule")
	ErrLeafOutOfRange = errors.New("leaf index out of range")
)

// PathStep is one level of an inclusion proof: the sibling hash and which
// side of the current node it sits on.
type PathStep struct {
	Side string
	Hash [hashing.Size]byte
}

// Tree is a built Merkle tree, organized by levels for proof generation.
type Tree struct {
	rule   string
	levels [][][hashing.Size]byte
}

// Build constructs the tree from ordered leaf hashes under the given
// odd-leaf rule. The empty leaf set is disallowed; zero-leaf schemas use
// EmptyRoot directly.
func Build(leaves [][hashing.Size]byte, rule string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	if rule != OddLeafDuplicateLast && rule != OddLeafPromoteLast {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOddRule, rule)
	}

	t := &Tree{rule: rule}
	level := append([][hashing.Size]byte(nil), leaves...)
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		next := make([][hashing.Size]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
				continue
			}
			switch rule {
			case OddLeafDuplicateLast:
				next = append(next, nodeHash(level[i], level[i]))
			case OddLeafPromoteLast:
				next = append(next, level[i])
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// Rule returns the odd-leaf rule the tree was built under.
func (t *Tree) Rule() string { return t.rule }

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int { return len(t.levels[0]) }

// Root returns the unwrapped Merkle root. The root of a single-leaf tree is
// that leaf's hash.
func (t *Tree) Root() [hashing.Size]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof generates the ordered sibling path from the leaf at index upward.
func (t *Tree) Proof(index int) ([]PathStep, error) {
	if index < 0 || index >= t.LeafCount() {
		return nil, fmt.Errorf("%w: %d of %d", ErrLeafOutOfRange, index, t.LeafCount())
	}
	path := make([]PathStep, 0, len(t.levels)-1)
	current := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		if current%2 == 0 {
			if current+1 < len(nodes) {
				path = append(path, PathStep{Side: SideRight, Hash: nodes[current+1]})
			} else if t.rule == OddLeafDuplicateLast {
				path = append(path, PathStep{Side: SideRight, Hash: nodes[current]})
			}
			// promote_last: the odd node carries upward with no step.
		} else {
			path = append(path, PathStep{Side: SideLeft, Hash: nodes[current-1]})
		}
		current = current / 2
	}
	return path, nil
}

// VerifyPath recomputes the root from a leaf hash and its sibling path and
// compares with the expected unwrapped root in constant time.
func VerifyPath(leaf [hashing.Size]byte, path []PathStep, expectedRoot [hashing.Size]byte) bool {
	current := leaf
	for _, step := range path {
		switch step.Side {
		case SideLeft:
			current = nodeHash(step.Hash, current)
		case SideRight:
			current = nodeHash(current, step.Hash)
		default:
			return false
		}
	}
	return subtle.ConstantTimeCompare(current[:], expectedRoot[:]) == 1
}

// WrapRoot binds the unwrapped root to the leaf count:
// H(signia:proof-root:v1, root || uint64_be(leaf_count)).
func WrapRoot(root [hashing.Size]byte, leafCount uint64) [hashing.Size]byte {
	payload := make([]byte, hashing.Size+8)
	copy(payload, root[:])
	binary.BigEndian.PutUint64(payload[hashing.Size:], leafCount)
	return hashing.Sum(hashing.DomainProofRoot, payload)
}

// EmptyRoot is the wrapped root of a schema with zero leaves:
// H(signia:proof-root:v1, 0x00 * 32).
func EmptyRoot() [hashing.Size]byte {
	return hashing.Sum(hashing.DomainProofRoot, make([]byte, hashing.Size))
}

func nodeHash(left, right [hashing.Size]byte) [hashing.Size]byte {
	combined := make([]byte, 2*hashing.Size)
	copy(combined[:hashing.Size], left[:])
	copy(combined[hashing.Size:], right[:])
	return hashing.Sum(hashing.DomainMerkleNode, combined)
}
