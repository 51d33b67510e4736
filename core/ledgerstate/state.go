package ledgerstate

import (
	"fmt"
	"math"
	"sync"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
	"golang.org/x/exp/maps"
)

// LedgerState is the in-memory mirror of the committed balances. It is mutated only by the Engine
// after the diff has been committed to the store
type LedgerState struct {
	mutex       sync.RWMutex
	balances    map[ledger.Address]uint64
	totalSupply uint64
	ledgerIndex ledger.MilestoneIndex
}

// Load reads committed ledger state and checks the total supply
func Load(st *store.Store) (*LedgerState, error) {
	id, found, err := st.Identity()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: ledger identity. Store is not initialized", ledger.ErrNotFound)
	}
	idx, found, err := st.LedgerIndex()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: ledger index marker. Store is not initialized", ledger.ErrNotFound)
	}
	balances, err := st.Balances()
	if err != nil {
		return nil, err
	}
	ret := &LedgerState{
		balances:    balances,
		totalSupply: id.TotalSupply,
		ledgerIndex: idx,
	}
	if err = ret.checkSupply(balances); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *LedgerState) checkSupply(balances map[ledger.Address]uint64) error {
	sum, err := sumBalances(balances)
	if err != nil {
		return err
	}
	if sum != s.totalSupply {
		return fmt.Errorf("%w: sum of balances %s, total supply %s", ledger.ErrSupplyMismatch, util.Th(sum), util.Th(s.totalSupply))
	}
	return nil
}

func sumBalances(balances map[ledger.Address]uint64) (uint64, error) {
	var sum uint64
	for _, b := range balances {
		if sum > math.MaxUint64-b {
			return 0, fmt.Errorf("%w: overflow while summing balances", ledger.ErrSupplyMismatch)
		}
		sum += b
	}
	return sum, nil
}

func (s *LedgerState) Balance(addr ledger.Address) uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.balances[addr]
}

// Balances copy of all non-zero balances
func (s *LedgerState) Balances() map[ledger.Address]uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return maps.Clone(s.balances)
}

func (s *LedgerState) Supply() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.totalSupply
}

// LedgerIndex latest applied milestone index
func (s *LedgerState) LedgerIndex() ledger.MilestoneIndex {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.ledgerIndex
}

func (s *LedgerState) NumAddresses() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.balances)
}

// CheckSupply sum of balances must be equal to total supply at all times
func (s *LedgerState) CheckSupply() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.checkSupply(s.balances)
}

// update is called with the committed new balances of changed addresses
func (s *LedgerState) update(idx ledger.MilestoneIndex, changed map[ledger.Address]uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for addr, bal := range changed {
		if bal == 0 {
			delete(s.balances, addr)
		} else {
			s.balances[addr] = bal
		}
	}
	s.ledgerIndex = idx
}

func (s *LedgerState) Lines(prefix ...string) *lines.Lines {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ret := lines.New(prefix...)
	ret.Add("ledger index: #%d", s.ledgerIndex).
		Add("total supply: %s", util.Th(s.totalSupply)).
		Add("addresses: %d", len(s.balances))
	return ret
}
