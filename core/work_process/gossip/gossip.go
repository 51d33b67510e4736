package gossip

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/lines"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"
)

type (
	// Network is the transport collaborator. Framing and peer management are behind it
	Network interface {
		Send(to peer.ID, msg Message)
		Broadcast(msg Message, except ...peer.ID) int
	}

	Environment interface {
		global.NodeGlobal
		// ServeTransactionRequest answers the peer asynchronously if the transaction is known
		ServeTransactionRequest(h ledger.Hash, from peer.ID)
		// TransactionBytesFromPeer hands the received transaction to ingestion
		TransactionBytesFromPeer(txBytes []byte, from peer.ID)
		// SolidMilestoneRange first and last solid milestone indices reported in heartbeats
		SolidMilestoneRange() (first, last ledger.MilestoneIndex)
	}

	Config struct {
		// QueueCapacity bounds the outbound queue
		QueueCapacity int
	}

	Input struct {
		Msg    Message
		To     *peer.ID
		Except []peer.ID
	}

	PeerHeartbeat struct {
		FirstSolid ledger.MilestoneIndex
		LastSolid  ledger.MilestoneIndex
		Received   time.Time
	}

	Gossip struct {
		Environment
		*work_process.WorkProcess[*Input]
		net Network

		mutex      sync.RWMutex
		heartbeats map[peer.ID]PeerHeartbeat
		// metrics
		msgOut        prometheus.Counter
		msgIn         prometheus.Counter
		requestsOut   prometheus.Counter
		peersReported prometheus.Gauge
	}
)

const (
	Name     = "gossip"
	TraceTag = Name
)

func DefaultConfig() Config {
	return Config{QueueCapacity: 10_000}
}

func New(env Environment, net Network, cfg Config) *Gossip {
	ret := &Gossip{
		Environment: env,
		net:         net,
		heartbeats:  make(map[peer.ID]PeerHeartbeat),
	}
	ret.WorkProcess = work_process.New[*Input](env, Name, ret.consume, cfg.QueueCapacity)
	ret.registerMetrics()
	return ret
}

// Start starts the outbound queue and, if heartbeatPeriod > 0, the periodic heartbeat
func (g *Gossip) Start(heartbeatPeriod time.Duration) {
	g.WorkProcess.Start()
	if heartbeatPeriod > 0 {
		g.RepeatInBackground(Name+"_heartbeat", heartbeatPeriod, func() bool {
			g.BroadcastHeartbeat(g.SolidMilestoneRange())
			return true
		})
	}
}

func (g *Gossip) consume(inp *Input) {
	g.msgOut.Inc()
	if inp.To != nil {
		g.Tracef(TraceTag, "send %s to %s", inp.Msg.Kind().String, inp.To.String)
		g.net.Send(*inp.To, inp.Msg)
		return
	}
	n := g.net.Broadcast(inp.Msg, inp.Except...)
	g.Tracef(TraceTag, "broadcast %s to %d peers", inp.Msg.Kind().String, n)
}

func (g *Gossip) RequestTransaction(h ledger.Hash) {
	g.requestsOut.Inc()
	g.Queue.Push(&Input{Msg: &MsgTransactionRequest{ID: h}})
}

func (g *Gossip) BroadcastTransaction(txBytes []byte, except ...peer.ID) {
	g.Queue.Push(&Input{
		Msg:    &MsgTransaction{TxBytes: txBytes},
		Except: except,
	})
}

func (g *Gossip) BroadcastHeartbeat(firstSolid, lastSolid ledger.MilestoneIndex) {
	g.Queue.Push(&Input{Msg: &MsgHeartbeat{FirstSolid: firstSolid, LastSolid: lastSolid}})
}

func (g *Gossip) SendTo(to peer.ID, msg Message) {
	g.Queue.Push(&Input{Msg: msg, To: &to})
}

// Dispatch handles the inbound message received from the peer
func (g *Gossip) Dispatch(from peer.ID, msg Message) {
	g.msgIn.Inc()

	switch m := msg.(type) {
	case *MsgTransaction:
		g.TransactionBytesFromPeer(m.TxBytes, from)
	case *MsgTransactionRequest:
		g.ServeTransactionRequest(m.ID, from)
	case *MsgHeartbeat:
		g.mutex.Lock()
		g.heartbeats[from] = PeerHeartbeat{
			FirstSolid: m.FirstSolid,
			LastSolid:  m.LastSolid,
			Received:   time.Now(),
		}
		g.peersReported.Set(float64(len(g.heartbeats)))
		g.mutex.Unlock()
	default:
		g.Log().Errorf("[%s] unexpected message type %T from %s", Name, msg, from.String())
	}
}

// DispatchBytes parses and handles raw inbound message
func (g *Gossip) DispatchBytes(from peer.ID, data []byte) error {
	msg, err := MessageFromBytes(data)
	if err != nil {
		return err
	}
	g.Dispatch(from, msg)
	return nil
}

func (g *Gossip) Heartbeat(id peer.ID) (PeerHeartbeat, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	ret, found := g.heartbeats[id]
	return ret, found
}

// MaxPeerSolidIndex the highest last solid milestone index reported by peers
func (g *Gossip) MaxPeerSolidIndex() (ret ledger.MilestoneIndex) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	for _, hb := range g.heartbeats {
		ret = max(ret, hb.LastSolid)
	}
	return
}

func (g *Gossip) Lines(prefix ...string) *lines.Lines {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	ret := lines.New(prefix...)
	ids := maps.Keys(g.heartbeats)
	ret.Add("peers reported heartbeat: %d", len(ids))
	for _, id := range ids {
		hb := g.heartbeats[id]
		ret.Add("  %s: solid milestones %d..%d, %v ago", id.String(), hb.FirstSolid, hb.LastSolid, time.Since(hb.Received).Truncate(time.Millisecond))
	}
	return ret
}

func (g *Gossip) registerMetrics() {
	g.msgOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_gossip_out_counter",
		Help: "number of outbound gossip messages",
	})
	g.msgIn = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_gossip_in_counter",
		Help: "number of inbound gossip messages",
	})
	g.requestsOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_gossip_requests_out_counter",
		Help: "number of transaction requests sent",
	})
	g.peersReported = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tangle_gossip_peers_reported",
		Help: "number of peers which sent heartbeat",
	})
	g.MetricsRegistry().MustRegister(g.msgOut, g.msgIn, g.requestsOut, g.peersReported)
}
