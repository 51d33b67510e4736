package ledgerstate

import (
	"github.com/lunfardo314/tangle/ledger"
)

var (
	leafPrefix = []byte{0}
	nodePrefix = []byte{1}
)

// MerkleRoot of the ordered list of hashes. Leaves and inner nodes are domain separated,
// odd node at the level is promoted unchanged. Root of the empty list is hash of nothing
func MerkleRoot(hashes []ledger.Hash) ledger.Hash {
	if len(hashes) == 0 {
		return ledger.HashData()
	}
	level := make([]ledger.Hash, len(hashes))
	for i := range hashes {
		level[i] = ledger.HashData(leafPrefix, hashes[i][:])
	}
	for len(level) > 1 {
		next := make([]ledger.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				break
			}
			next = append(next, ledger.HashData(nodePrefix, level[i][:], level[i+1][:]))
		}
		level = next
	}
	return level[0]
}
