package vertex

import (
	"sync"
	"time"

	"github.com/lunfardo314/tangle/ledger"
)

type (
	// WrappedTx is a vertex of the tangle: immutable transaction plus mutable metadata.
	// The pointer is the in-memory identity of the vertex, other components hold it only
	// as a read handle and change metadata through the guarded methods
	WrappedTx struct {
		ID ledger.Hash
		Tx *ledger.Transaction

		mutex             sync.RWMutex
		flags             Flags
		milestoneIndex    ledger.MilestoneIndex
		confirmedBy       ledger.MilestoneIndex
		youngestMilestone ledger.MilestoneIndex
		arrival           time.Time
		solidified        time.Time
	}

	// Metadata is a snapshot of the vertex metadata
	Metadata struct {
		Solid              bool
		Pending            bool
		Milestone          bool
		MilestoneIndex     ledger.MilestoneIndex
		Conflict           ConflictState
		ConfirmedBy        ledger.MilestoneIndex
		YoungestMilestone  ledger.MilestoneIndex
		ArrivalTime        time.Time
		SolidificationTime time.Time
	}

	Flags         uint8
	Status        byte
	ConflictState byte
)

const (
	FlagSolid = Flags(1 << iota)
	FlagPending
	FlagMilestone
	FlagConfirmed
	FlagConflicting
)

// solidity state machine: Unknown -> Pending -> Solid
const (
	Unknown = Status(iota)
	Pending
	Solid
)

const (
	ConflictNone = ConflictState(iota)
	ConflictExcluded
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Pending:
		return "PENDING"
	case Solid:
		return "SOLID"
	}
	panic("wrong solidity status")
}

func (c ConflictState) String() string {
	switch c {
	case ConflictNone:
		return "none"
	case ConflictExcluded:
		return "excluded"
	}
	panic("wrong conflict state")
}

func (f Flags) FlagsUp(fl Flags) bool {
	return f&fl == fl
}

func (f *Flags) SetFlagsUp(fl Flags) {
	*f = *f | fl
}

func (f *Flags) SetFlagsDown(fl Flags) {
	*f = *f &^ fl
}
