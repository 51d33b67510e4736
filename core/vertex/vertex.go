package vertex

import (
	"fmt"
	"time"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/lines"
)

func New(tx *ledger.Transaction, arrival ...time.Time) *WrappedTx {
	ret := &WrappedTx{
		ID:      tx.ID(),
		Tx:      tx,
		arrival: time.Now(),
	}
	if len(arrival) > 0 {
		ret.arrival = arrival[0]
	}
	return ret
}

func (vid *WrappedTx) Trunk() ledger.Hash {
	return vid.Tx.Trunk()
}

func (vid *WrappedTx) Branch() ledger.Hash {
	return vid.Tx.Branch()
}

// Parents trunk first
func (vid *WrappedTx) Parents() [2]ledger.Hash {
	return vid.Tx.Parents()
}

func (vid *WrappedTx) FlagsUp(f Flags) bool {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	return vid.flags.FlagsUp(f)
}

func (vid *WrappedTx) IsSolid() bool {
	return vid.FlagsUp(FlagSolid)
}

func (vid *WrappedTx) IsMilestone() bool {
	return vid.FlagsUp(FlagMilestone)
}

func (vid *WrappedTx) IsConfirmed() bool {
	return vid.FlagsUp(FlagConfirmed)
}

func (vid *WrappedTx) IsConflicting() bool {
	return vid.FlagsUp(FlagConflicting)
}

func (vid *WrappedTx) Status() Status {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	switch {
	case vid.flags.FlagsUp(FlagSolid):
		return Solid
	case vid.flags.FlagsUp(FlagPending):
		return Pending
	}
	return Unknown
}

// SetSolid marks vertex solid. Returns true only for the caller which made the transition,
// so it can be used as deduplication gate of concurrent cascades
func (vid *WrappedTx) SetSolid(youngestMilestone ledger.MilestoneIndex) bool {
	vid.mutex.Lock()
	defer vid.mutex.Unlock()

	if vid.flags.FlagsUp(FlagSolid) {
		return false
	}
	vid.flags.SetFlagsUp(FlagSolid)
	vid.flags.SetFlagsDown(FlagPending)
	vid.solidified = time.Now()
	if vid.flags.FlagsUp(FlagMilestone) && vid.milestoneIndex > youngestMilestone {
		youngestMilestone = vid.milestoneIndex
	}
	vid.youngestMilestone = youngestMilestone
	return true
}

// SetPending marks vertex as waiting for missing parents. Does nothing if solid
func (vid *WrappedTx) SetPending() {
	vid.mutex.Lock()
	defer vid.mutex.Unlock()

	if !vid.flags.FlagsUp(FlagSolid) {
		vid.flags.SetFlagsUp(FlagPending)
	}
}

// SetMilestone assigns milestone index. Once assigned, it cannot be changed
func (vid *WrappedTx) SetMilestone(index ledger.MilestoneIndex) error {
	vid.mutex.Lock()
	defer vid.mutex.Unlock()

	if vid.flags.FlagsUp(FlagMilestone) {
		if vid.milestoneIndex != index {
			return fmt.Errorf("%w: milestone index of %s is already %d, can't set %d",
				ledger.ErrInvariantViolation, vid.ID.StringShort(), vid.milestoneIndex, index)
		}
		return nil
	}
	vid.flags.SetFlagsUp(FlagMilestone)
	vid.milestoneIndex = index
	if vid.flags.FlagsUp(FlagSolid) && vid.youngestMilestone < index {
		vid.youngestMilestone = index
	}
	return nil
}

func (vid *WrappedTx) MilestoneIndex() (ledger.MilestoneIndex, bool) {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	return vid.milestoneIndex, vid.flags.FlagsUp(FlagMilestone)
}

// SetConfirmed marks vertex as referenced by the milestone. The first confirmation wins
func (vid *WrappedTx) SetConfirmed(by ledger.MilestoneIndex, conflicting bool) bool {
	vid.mutex.Lock()
	defer vid.mutex.Unlock()

	if vid.flags.FlagsUp(FlagConfirmed) {
		return false
	}
	vid.flags.SetFlagsUp(FlagConfirmed)
	vid.confirmedBy = by
	if conflicting {
		vid.flags.SetFlagsUp(FlagConflicting)
	}
	return true
}

// ConfirmedBy returns 0 if not confirmed
func (vid *WrappedTx) ConfirmedBy() ledger.MilestoneIndex {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	return vid.confirmedBy
}

// YoungestMilestone youngest milestone index referenced by the past cone. Known only for solid vertices
func (vid *WrappedTx) YoungestMilestone() ledger.MilestoneIndex {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	return vid.youngestMilestone
}

func (vid *WrappedTx) ArrivalTime() time.Time {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	return vid.arrival
}

func (vid *WrappedTx) Metadata() Metadata {
	vid.mutex.RLock()
	defer vid.mutex.RUnlock()

	return vid.metadataNoLock()
}

func (vid *WrappedTx) metadataNoLock() Metadata {
	ret := Metadata{
		Solid:              vid.flags.FlagsUp(FlagSolid),
		Pending:            vid.flags.FlagsUp(FlagPending),
		Milestone:          vid.flags.FlagsUp(FlagMilestone),
		MilestoneIndex:     vid.milestoneIndex,
		ConfirmedBy:        vid.confirmedBy,
		YoungestMilestone:  vid.youngestMilestone,
		ArrivalTime:        vid.arrival,
		SolidificationTime: vid.solidified,
	}
	if vid.flags.FlagsUp(FlagConflicting) {
		ret.Conflict = ConflictExcluded
	}
	return ret
}

// UpdateMetadata applies mutation of the metadata atomically. Mutations which would make solid vertex
// not solid or would change assigned milestone index are rejected with invariant violation error
func (vid *WrappedTx) UpdateMetadata(mutator func(md *Metadata)) error {
	vid.mutex.Lock()
	defer vid.mutex.Unlock()

	old := vid.metadataNoLock()
	md := old
	mutator(&md)

	if old.Solid && !md.Solid {
		return fmt.Errorf("%w: solid flag of %s can't be reset", ledger.ErrInvariantViolation, vid.ID.StringShort())
	}
	if old.Milestone && (!md.Milestone || md.MilestoneIndex != old.MilestoneIndex) {
		return fmt.Errorf("%w: milestone index of %s can't be changed", ledger.ErrInvariantViolation, vid.ID.StringShort())
	}
	if old.ConfirmedBy != 0 && md.ConfirmedBy != old.ConfirmedBy {
		return fmt.Errorf("%w: confirmation of %s can't be changed", ledger.ErrInvariantViolation, vid.ID.StringShort())
	}
	vid.flags = 0
	if md.Solid {
		vid.flags.SetFlagsUp(FlagSolid)
		if !old.Solid && md.SolidificationTime.IsZero() {
			md.SolidificationTime = time.Now()
		}
	} else if md.Pending {
		vid.flags.SetFlagsUp(FlagPending)
	}
	if md.Milestone {
		vid.flags.SetFlagsUp(FlagMilestone)
	}
	if md.ConfirmedBy != 0 {
		vid.flags.SetFlagsUp(FlagConfirmed)
	}
	if md.Conflict == ConflictExcluded {
		vid.flags.SetFlagsUp(FlagConflicting)
	}
	vid.milestoneIndex = md.MilestoneIndex
	vid.confirmedBy = md.ConfirmedBy
	vid.youngestMilestone = md.YoungestMilestone
	vid.arrival = md.ArrivalTime
	vid.solidified = md.SolidificationTime
	return nil
}

func (vid *WrappedTx) String() string {
	md := vid.Metadata()
	msStr := ""
	if md.Milestone {
		msStr = fmt.Sprintf(" ms#%d", md.MilestoneIndex)
	}
	return fmt.Sprintf("%s(%s%s)", vid.ID.StringShort(), vid.Status(), msStr)
}

func (vid *WrappedTx) IDShortString() string {
	return vid.ID.StringShort()
}

func (vid *WrappedTx) Lines(prefix ...string) *lines.Lines {
	md := vid.Metadata()
	ret := lines.New(prefix...)
	ret.Add("vertex %s", vid.ID.String()).
		Add("   trunk: %s", vid.Trunk().StringShort()).
		Add("   branch: %s", vid.Branch().StringShort()).
		Add("   payload: %s", vid.Tx.Payload().Type()).
		Add("   status: %s", vid.Status()).
		Add("   milestone: %v, index: %d", md.Milestone, md.MilestoneIndex).
		Add("   confirmed by: %d, conflict: %s", md.ConfirmedBy, md.Conflict).
		Add("   youngest referenced milestone: %d", md.YoungestMilestone).
		Add("   arrival: %s", md.ArrivalTime.Format(time.StampMilli))
	if md.Solid {
		ret.Add("   solidified: %s", md.SolidificationTime.Format(time.StampMilli))
	}
	return ret
}
