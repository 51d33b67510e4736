package ledgerstate

import (
	"time"

	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/core/work_process"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"go.uber.org/atomic"
)

type (
	WriterEnvironment interface {
		global.NodeGlobal
		MilestoneConfirmed(res *Result)
		LedgerHalted(err error)
	}

	WriterConfig struct {
		MaxRetries   int
		RetryBackoff time.Duration
	}

	// Writer is the single owner of ledger writes. Milestones are applied one by one in the order
	// they were pushed, application of the next starts only after the previous one definitively finished
	Writer struct {
		WriterEnvironment
		*work_process.WorkProcess[*vertex.WrappedTx]
		engine *Engine
		cfg    WriterConfig
		halted atomic.Bool
	}
)

const WriterName = "ledgerWriter"

func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxRetries:   5,
		RetryBackoff: 200 * time.Millisecond,
	}
}

func NewWriter(env WriterEnvironment, engine *Engine, cfg WriterConfig) *Writer {
	ret := &Writer{
		WriterEnvironment: env,
		engine:            engine,
		cfg:               cfg,
	}
	ret.WorkProcess = work_process.New[*vertex.WrappedTx](env, WriterName, ret.consume)
	return ret
}

// IsHalted true after storage failures exhausted retries. No more ledger writes are attempted
func (w *Writer) IsHalted() bool {
	return w.halted.Load()
}

func (w *Writer) consume(msVID *vertex.WrappedTx) {
	if w.halted.Load() {
		w.Log().Warnf("[%s] ledger writes halted, milestone %s ignored", WriterName, msVID.IDShortString())
		return
	}
	for attempt := 0; ; attempt++ {
		res, err := w.engine.ApplyMilestone(msVID)
		if err == nil {
			w.MilestoneConfirmed(res)
			return
		}
		switch {
		case ledger.IsRetryable(err) && attempt < w.cfg.MaxRetries:
			w.Log().Warnf("[%s] attempt %d: %v. Retry in %v", WriterName, attempt+1, err, w.backoff(attempt))
			select {
			case <-w.Ctx().Done():
				return
			case <-time.After(w.backoff(attempt)):
			}

		case ledger.IsRetryable(err):
			w.halted.Store(true)
			w.Log().Errorf("[%s] ledger writes halted after %d attempts: %v", WriterName, attempt+1, err)
			w.LedgerHalted(err)
			return

		default:
			// missing ancestor and invariant violations must not be masked
			w.Log().Errorf("[%s] FATAL: %v. Stopping the node", WriterName, err)
			w.Stop()
			return
		}
	}
}

func (w *Writer) backoff(attempt int) time.Duration {
	return w.cfg.RetryBackoff * time.Duration(attempt+1)
}

func (w *Writer) State() *LedgerState {
	return w.engine.State()
}

func (w *Writer) Engine() *Engine {
	return w.engine
}
