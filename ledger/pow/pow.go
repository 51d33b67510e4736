package pow

import (
	"context"
	"errors"
	"math/bits"

	"github.com/lunfardo314/tangle/ledger"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

const MaxTarget = 64

var errFound = errors.New("nonce found")

// LeadingZeroBits number of leading zero bits in the blake2b-256 hash of data
func LeadingZeroBits(data []byte) int {
	h := blake2b.Sum256(data)
	ret := 0
	for _, b := range h {
		if b != 0 {
			return ret + bits.LeadingZeros8(b)
		}
		ret += 8
	}
	return ret
}

// MeetsDifficulty checks if transaction bytes carry enough proof of work
func MeetsDifficulty(txBytes []byte, target int) bool {
	if target <= 0 {
		return true
	}
	return LeadingZeroBits(txBytes) >= target
}

// Search looks for the nonce which makes the transaction meet the difficulty target.
// Nonce space is split among workers
func Search(ctx context.Context, tx *ledger.Transaction, target int, workers int) (*ledger.Transaction, error) {
	if target > MaxTarget {
		target = MaxTarget
	}
	if MeetsDifficulty(tx.Bytes(), target) {
		return tx, nil
	}
	if workers <= 0 {
		workers = 1
	}
	found := make(chan uint64, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := uint64(w)
		g.Go(func() error {
			buf := make([]byte, len(tx.Bytes()))
			copy(buf, tx.Bytes())
			for nonce := start; ; nonce += uint64(workers) {
				if nonce%1024 == start%1024 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
				}
				ledger.PutNonce(buf, nonce)
				if MeetsDifficulty(buf, target) {
					found <- nonce
					return errFound
				}
			}
		})
	}
	err := g.Wait()
	if !errors.Is(err, errFound) {
		return nil, err
	}
	return tx.WithNonce(<-found), nil
}
