// Package proof holds the opaque predicate asserting that a claimed L3
// transaction occurred. The scheme is swappable; the ledger only consumes
// the boolean.
package proof

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verifier decides whether sourceTxID is committed under root.
type Verifier interface {
	Verify(root common.Hash, sourceTxID string, path []common.Hash) bool
}

// MerkleVerifier checks a keccak256 inclusion path. Pair hashing is
// order-normalized (smaller hash first) so the path carries no side flags.
type MerkleVerifier struct{}

func (MerkleVerifier) Verify(root common.Hash, sourceTxID string, path []common.Hash) bool {
	node := crypto.Keccak256Hash([]byte(sourceTxID))
	for _, sibling := range path {
		if bytes.Compare(node.Bytes(), sibling.Bytes()) <= 0 {
			node = crypto.Keccak256Hash(node.Bytes(), sibling.Bytes())
		} else {
			node = crypto.Keccak256Hash(sibling.Bytes(), node.Bytes())
		}
	}
	return node == root
}

// StaticVerifier accepts or rejects everything; used in tests and local mode.
type StaticVerifier struct {
	Accept bool
}

func (v StaticVerifier) Verify(common.Hash, string, []common.Hash) bool {
	return v.Accept
}
