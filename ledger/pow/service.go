package pow

import (
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

// Service is the callback-based PoW work process used by the local issuance path

type (
	Input struct {
		Tx       *ledger.Transaction
		Target   int
		Callback func(tx *ledger.Transaction, err error)
	}

	Service struct {
		*work_process.WorkProcess[*Input]
		workers      int
		powCompleted prometheus.Counter
	}
)

const Name = "pow"

func NewService(env work_process.Environment, workers int) *Service {
	ret := &Service{workers: workers}
	ret.WorkProcess = work_process.New[*Input](env, Name, ret.consume)
	ret.powCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_pow_completed_counter",
		Help: "number of completed proof of work searches",
	})
	env.MetricsRegistry().MustRegister(ret.powCompleted)
	return ret
}

func (s *Service) consume(inp *Input) {
	tx, err := Search(s.Ctx(), inp.Tx, inp.Target, s.workers)
	if err == nil {
		s.powCompleted.Inc()
		s.Tracef(Name, "pow done for %s, target %d", tx.ID().StringShort, inp.Target)
	}
	inp.Callback(tx, err)
}

// Submit schedules PoW for the transaction. Callback is called from the service goroutine
func (s *Service) Submit(tx *ledger.Transaction, target int, callback func(tx *ledger.Transaction, err error)) {
	s.Push(&Input{
		Tx:       tx,
		Target:   target,
		Callback: callback,
	})
}
