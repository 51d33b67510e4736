package memdag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util/set"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"
)

type (
	Environment interface {
		global.Logging
		global.Metrics
	}

	// Persister writes transaction bytes before the vertex becomes visible in memory
	Persister interface {
		PersistVertex(id ledger.Hash, txBytes []byte) error
	}

	// MemDAG is the vertex store: map of all vertices of the tangle plus the reverse edge (approver) index.
	// Vertices and approvers are sharded by the first byte of the hash, each shard has its own lock,
	// so inserts of unrelated vertices do not block each other.
	// The pointer value *vertex.WrappedTx is the unique in-memory identity of the transaction
	MemDAG struct {
		Environment
		persister Persister
		shards    [numShards]shard

		inserted    prometheus.Counter
		numVertices prometheus.Gauge
	}

	shard struct {
		mutex     sync.RWMutex
		vertices  map[ledger.Hash]*vertex.WrappedTx
		approvers map[ledger.Hash]set.Set[ledger.Hash]
	}

	InsertOutcome byte
)

const numShards = 256

const (
	InsertedNew = InsertOutcome(iota)
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertedNew:
		return "new"
	case AlreadyExists:
		return "already exists"
	}
	return "???"
}

// New with nil persister keeps vertices in memory only
func New(env Environment, persister Persister) *MemDAG {
	ret := &MemDAG{
		Environment: env,
		persister:   persister,
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tangle_memdag_inserted_counter",
			Help: "number of new vertices inserted into the tangle",
		}),
		numVertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tangle_memdag_num_vertices",
			Help: "number of vertices in the tangle",
		}),
	}
	for i := range ret.shards {
		ret.shards[i].vertices = make(map[ledger.Hash]*vertex.WrappedTx)
		ret.shards[i].approvers = make(map[ledger.Hash]set.Set[ledger.Hash])
	}
	env.MetricsRegistry().MustRegister(ret.inserted, ret.numVertices)
	return ret
}

func (d *MemDAG) shardOf(h ledger.Hash) *shard {
	return &d.shards[h[0]]
}

// Insert adds the transaction to the tangle. Exactly one of concurrent inserts of the same
// transaction returns New, all others return AlreadyExists with the same vertex.
// The transaction is persisted while only its own shard is locked. If persisting fails,
// nothing is inserted and ledger.ErrStorageFailure is returned
func (d *MemDAG) Insert(tx *ledger.Transaction) (InsertOutcome, *vertex.WrappedTx, error) {
	return d.insert(tx, true)
}

// InsertNoPersist inserts vertex which is already in the storage. Used by warm start
func (d *MemDAG) InsertNoPersist(tx *ledger.Transaction) (InsertOutcome, *vertex.WrappedTx) {
	outcome, vid, err := d.insert(tx, false)
	d.AssertNoError(err)
	return outcome, vid
}

func (d *MemDAG) insert(tx *ledger.Transaction, persist bool) (InsertOutcome, *vertex.WrappedTx, error) {
	id := tx.ID()
	sh := d.shardOf(id)

	vid, err := func() (*vertex.WrappedTx, error) {
		sh.mutex.Lock()
		defer sh.mutex.Unlock()

		if _, already := sh.vertices[id]; already {
			return nil, nil
		}
		if persist && d.persister != nil {
			if err := d.persister.PersistVertex(id, tx.Bytes()); err != nil {
				return nil, fmt.Errorf("insert %s: %w", id.StringShort(), err)
			}
		}
		ret := vertex.New(tx)
		sh.vertices[id] = ret
		return ret, nil
	}()
	if err != nil {
		return 0, nil, err
	}
	if vid == nil {
		return AlreadyExists, d.Get(id), nil
	}
	// reverse edges are registered after the vertex is visible, so any cascade reading
	// approvers can always resolve them
	trunk, branch := tx.Trunk(), tx.Branch()
	d.addApprover(trunk, id)
	if branch != trunk {
		d.addApprover(branch, id)
	}
	d.inserted.Inc()
	d.numVertices.Inc()
	return InsertedNew, vid, nil
}

func (d *MemDAG) addApprover(parent, approver ledger.Hash) {
	sh := d.shardOf(parent)
	sh.mutex.Lock()
	defer sh.mutex.Unlock()

	s, found := sh.approvers[parent]
	if !found {
		s = set.New[ledger.Hash]()
		sh.approvers[parent] = s
	}
	s.Insert(approver)
}

// Get returns nil if vertex is not in the tangle. Never blocks on solidification
func (d *MemDAG) Get(h ledger.Hash) *vertex.WrappedTx {
	sh := d.shardOf(h)
	sh.mutex.RLock()
	defer sh.mutex.RUnlock()

	return sh.vertices[h]
}

func (d *MemDAG) Contains(h ledger.Hash) bool {
	return d.Get(h) != nil
}

// ApproversOf returns hashes of vertices which reference h as trunk or branch.
// Concurrent inserts may not be reflected yet
func (d *MemDAG) ApproversOf(h ledger.Hash) []ledger.Hash {
	sh := d.shardOf(h)
	sh.mutex.RLock()
	defer sh.mutex.RUnlock()

	s, found := sh.approvers[h]
	if !found {
		return nil
	}
	return s.AsList()
}

func (d *MemDAG) NumApprovers(h ledger.Hash) int {
	sh := d.shardOf(h)
	sh.mutex.RLock()
	defer sh.mutex.RUnlock()

	return len(sh.approvers[h])
}

// ApproverVertices resolves approvers of h to vertices
func (d *MemDAG) ApproverVertices(h ledger.Hash) []*vertex.WrappedTx {
	approvers := d.ApproversOf(h)
	ret := make([]*vertex.WrappedTx, 0, len(approvers))
	for _, a := range approvers {
		if vid := d.Get(a); vid != nil {
			ret = append(ret, vid)
		}
	}
	return ret
}

// UpdateMetadata applies mutation to the metadata of the vertex under the vertex lock
func (d *MemDAG) UpdateMetadata(h ledger.Hash, mutator func(md *vertex.Metadata)) error {
	vid := d.Get(h)
	if vid == nil {
		return fmt.Errorf("%w: vertex %s", ledger.ErrNotFound, h.StringShort())
	}
	return vid.UpdateMetadata(mutator)
}

func (d *MemDAG) NumVertices() int {
	ret := 0
	for i := range d.shards {
		d.shards[i].mutex.RLock()
		ret += len(d.shards[i].vertices)
		d.shards[i].mutex.RUnlock()
	}
	return ret
}

// Vertices collects vertices shard by shard. It is not a consistent snapshot of the whole tangle
func (d *MemDAG) Vertices(filter ...func(vid *vertex.WrappedTx) bool) []*vertex.WrappedTx {
	ret := make([]*vertex.WrappedTx, 0)
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mutex.RLock()
		if len(filter) == 0 {
			ret = append(ret, maps.Values(sh.vertices)...)
		} else {
			for _, vid := range sh.vertices {
				if filter[0](vid) {
					ret = append(ret, vid)
				}
			}
		}
		sh.mutex.RUnlock()
	}
	return ret
}

// VerticesDescending sorted by arrival time, latest first
func (d *MemDAG) VerticesDescending() []*vertex.WrappedTx {
	ret := d.Vertices()
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ArrivalTime().After(ret[j].ArrivalTime())
	})
	return ret
}

// RestoreSource is the persisted tangle
type RestoreSource interface {
	IterateVertices(fun func(id ledger.Hash, txBytes []byte) bool) error
	GetVertexMetadata(id ledger.Hash) (*store.VertexMetadataRecord, bool, error)
}

// Restore loads all persisted vertices into memory together with their persisted metadata.
// Solidity is not persisted and must be recomputed by the caller
func (d *MemDAG) Restore(src RestoreSource) ([]*vertex.WrappedTx, error) {
	txs := make([]*ledger.Transaction, 0)
	var errParse error
	err := src.IterateVertices(func(id ledger.Hash, txBytes []byte) bool {
		tx, err := ledger.TransactionFromBytes(txBytes)
		if err != nil {
			errParse = fmt.Errorf("restore: wrong persisted vertex %s: %w", id.StringShort(), err)
			return false
		}
		txs = append(txs, tx)
		return true
	})
	if err != nil {
		return nil, err
	}
	if errParse != nil {
		return nil, errParse
	}
	ret := make([]*vertex.WrappedTx, 0, len(txs))
	for _, tx := range txs {
		_, vid := d.InsertNoPersist(tx)
		rec, found, err := src.GetVertexMetadata(vid.ID)
		if err != nil {
			return nil, err
		}
		if found {
			if err = vid.UpdateMetadata(func(md *vertex.Metadata) {
				if rec.MilestoneIndex != 0 {
					md.Milestone = true
					md.MilestoneIndex = rec.MilestoneIndex
				}
				md.ConfirmedBy = rec.ConfirmedBy
				if rec.Conflicting {
					md.Conflict = vertex.ConflictExcluded
				}
			}); err != nil {
				return nil, err
			}
		}
		ret = append(ret, vid)
	}
	return ret, nil
}
