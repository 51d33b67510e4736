package workflow

import (
	"crypto/ed25519"
	"fmt"

	"github.com/lunfardo314/tangle/core/ledgerstate"
	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/milestone"
	"github.com/lunfardo314/tangle/core/solidifier"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process/events"
	"github.com/lunfardo314/tangle/core/work_process/gossip"
	"github.com/lunfardo314/tangle/core/work_process/pull_client"
	"github.com/lunfardo314/tangle/core/work_process/pull_tx_server"
	"github.com/lunfardo314/tangle/core/work_process/tippool"
	"github.com/lunfardo314/tangle/core/work_process/txinput_queue"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/ledger/pow"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util"
)

type (
	Environment interface {
		global.NodeGlobal
	}

	// Workflow is the tangle node core. It is constructed once and handed by reference to
	// every component, which see it only through their narrow environment interfaces
	Workflow struct {
		Environment
		*memdag.MemDAG
		cfg              Config
		store            *store.Store
		identity         *store.Identity
		solidEntryPoints map[ledger.Hash]ledger.MilestoneIndex
		// work processes and components
		solidifier *solidifier.Solidifier
		pullClient *pull_client.PullClient
		pullServer *pull_tx_server.PullTxServer
		tippool    *tippool.TipPool
		tracker    *milestone.Tracker
		engine     *ledgerstate.Engine
		writer     *ledgerstate.Writer
		events     *events.Events
		gossip     *gossip.Gossip
		txInput    *txinput_queue.TxInputQueue
		pow        *pow.Service
	}
)

// New creates the workflow on top of the initialized store
func New(env Environment, st *store.Store, net gossip.Network, opts ...ConfigOption) (*Workflow, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	identity, found, err := st.Identity()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("workflow.New: %w: ledger identity. Store is not initialized", ledger.ErrNotFound)
	}
	if len(identity.CoordinatorKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("workflow.New: %w: wrong coordinator public key", ledger.ErrValidation)
	}
	seps, err := st.SolidEntryPoints()
	if err != nil {
		return nil, err
	}
	// genesis sentinel is always a solid entry point
	if _, found = seps[ledger.NullHash]; !found {
		seps[ledger.NullHash] = identity.SnapshotIndex
	}
	state, err := ledgerstate.Load(st)
	if err != nil {
		return nil, err
	}

	ret := &Workflow{
		Environment:      env,
		MemDAG:           memdag.New(env, st),
		cfg:              cfg,
		store:            st,
		identity:         identity,
		solidEntryPoints: seps,
	}
	ret.events = events.New(ret)
	ret.solidifier = solidifier.New(ret)
	ret.pullClient = pull_client.New(ret, cfg.PullClient)
	ret.pullServer = pull_tx_server.New(ret, cfg.PullServer)
	ret.tippool = tippool.New(ret, cfg.TipPool)
	ret.engine = ledgerstate.NewEngine(ret, st, state)
	ret.writer = ledgerstate.NewWriter(ret, ret.engine, cfg.Writer)
	ret.tracker = milestone.New(ret, []ed25519.PublicKey{identity.CoordinatorKey}, state.LedgerIndex(), ret.milestoneSolid)
	ret.gossip = gossip.New(ret, net, cfg.Gossip)
	ret.txInput = txinput_queue.New(ret, cfg.TxInput)
	ret.pow = pow.NewService(ret, cfg.PoWWorkers)

	ret.solidifier.OnSolid(func(vid *vertex.WrappedTx) {
		ret.tippool.AddTip(vid)
		ret.tracker.OnVertexSolid(vid)
		ret.events.VertexSolid.Post(events.VertexSolid{
			ID:                vid.ID,
			YoungestMilestone: vid.YoungestMilestone(),
		})
	})
	ret.events.MilestoneSolid.Attach(func(_ events.MilestoneSolid) {
		ret.tippool.Reclassify()
	})

	cfg.log(env.Log())
	env.Log().Infof("[workflow] ledger index: %d, total supply: %s, solid entry points: %d",
		state.LedgerIndex(), util.Th(state.Supply()), len(seps))
	return ret, nil
}

func (w *Workflow) Start() {
	w.Log().Infof("starting work processes...")

	w.pow.Start()
	w.pullClient.Start()
	w.pullServer.Start()
	w.solidifier.Start(w.cfg.RecheckPeriod)
	w.tippool.Start()
	w.writer.Start()
	w.gossip.Start(w.cfg.HeartbeatPeriod)
	w.txInput.Start()
}

// milestoneSolid is called by the tracker in contiguous index order
func (w *Workflow) milestoneSolid(vid *vertex.WrappedTx) {
	idx, _ := vid.MilestoneIndex()
	w.events.MilestoneSolid.Post(events.MilestoneSolid{Index: idx, ID: vid.ID})
	w.writer.Push(vid)
}

func (w *Workflow) Events() *events.Events {
	return w.events
}

func (w *Workflow) Gossip() *gossip.Gossip {
	return w.gossip
}
