package events

import (
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
)

type (
	Input struct {
		cmdCode byte
		kind    Kind
		arg     any
	}

	environment interface {
		global.NodeGlobal
	}

	// Events delivers notifications asynchronously, in the order of posting, from one goroutine.
	// Event kinds form a closed set, every kind has its typed topic
	Events struct {
		*work_process.WorkProcess[Input]
		eventHandlers map[Kind][]func(any)

		VertexSolid        *Topic[VertexSolid]
		MilestoneSolid     *Topic[MilestoneSolid]
		MilestoneConfirmed *Topic[MilestoneConfirmed]
		TransactionStalled *Topic[TransactionStalled]
		LedgerHalted       *Topic[LedgerHalted]
	}

	Topic[T any] struct {
		kind   Kind
		events *Events
	}

	Kind byte

	VertexSolid struct {
		ID                ledger.Hash
		YoungestMilestone ledger.MilestoneIndex
	}

	MilestoneSolid struct {
		Index ledger.MilestoneIndex
		ID    ledger.Hash
	}

	MilestoneConfirmed struct {
		Index          ledger.MilestoneIndex
		ID             ledger.Hash
		NumReferenced  int
		NumApplied     int
		NumConflicting int
	}

	TransactionStalled struct {
		ID       ledger.Hash
		Attempts int
	}

	LedgerHalted struct {
		Err error
	}
)

const (
	KindVertexSolid = Kind(iota)
	KindMilestoneSolid
	KindMilestoneConfirmed
	KindTransactionStalled
	KindLedgerHalted
)

const (
	cmdCodeAddHandler = byte(iota)
	cmdCodePostEvent
)

const (
	Name     = "events"
	TraceTag = Name
)

func (k Kind) String() string {
	switch k {
	case KindVertexSolid:
		return "vertexSolid"
	case KindMilestoneSolid:
		return "milestoneSolid"
	case KindMilestoneConfirmed:
		return "milestoneConfirmed"
	case KindTransactionStalled:
		return "transactionStalled"
	case KindLedgerHalted:
		return "ledgerHalted"
	}
	return "???"
}

func New(env environment) *Events {
	ret := &Events{
		eventHandlers: make(map[Kind][]func(any)),
	}
	ret.VertexSolid = newTopic[VertexSolid](ret, KindVertexSolid)
	ret.MilestoneSolid = newTopic[MilestoneSolid](ret, KindMilestoneSolid)
	ret.MilestoneConfirmed = newTopic[MilestoneConfirmed](ret, KindMilestoneConfirmed)
	ret.TransactionStalled = newTopic[TransactionStalled](ret, KindTransactionStalled)
	ret.LedgerHalted = newTopic[LedgerHalted](ret, KindLedgerHalted)

	ret.WorkProcess = work_process.New[Input](env, Name, ret.consume)
	ret.WorkProcess.Start()
	return ret
}

func newTopic[T any](e *Events, kind Kind) *Topic[T] {
	return &Topic[T]{kind: kind, events: e}
}

func (d *Events) consume(inp Input) {
	switch inp.cmdCode {
	case cmdCodeAddHandler:
		d.eventHandlers[inp.kind] = append(d.eventHandlers[inp.kind], inp.arg.(func(any)))
		d.Tracef(TraceTag, "added event handler for '%s'", inp.kind.String)
	case cmdCodePostEvent:
		d.Tracef(TraceTag, "posted event '%s'", inp.kind.String)
		for _, fun := range d.eventHandlers[inp.kind] {
			fun(inp.arg)
		}
	}
}

// Attach handler to the topic (async). Handlers attached before posting the event are guaranteed to receive it
func (t *Topic[T]) Attach(fun func(arg T)) {
	t.events.Queue.Push(Input{
		cmdCode: cmdCodeAddHandler,
		kind:    t.kind,
		arg: func(arg any) {
			fun(arg.(T))
		},
	})
}

func (t *Topic[T]) Post(arg T) {
	t.events.Queue.Push(Input{
		cmdCode: cmdCodePostEvent,
		kind:    t.kind,
		arg:     arg,
	})
}

func (t *Topic[T]) Kind() Kind {
	return t.kind
}
