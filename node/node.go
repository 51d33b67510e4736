package node

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lunfardo314/tangle/api/server"
	"github.com/lunfardo314/tangle/core/work_process/gossip"
	"github.com/lunfardo314/tangle/core/workflow"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/metrics"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/unitrie/adaptors/badger_adaptor"
	"github.com/spf13/viper"
)

type TangleNode struct {
	*global.Global
	badgerDB             *badger_adaptor.DB
	store                *store.Store
	workflow             *workflow.Workflow
	workProcessesStopped chan struct{}
	dbClosedWG           sync.WaitGroup
	started              time.Time
}

func New() *TangleNode {
	if err := initConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return &TangleNode{
		Global:               global.NewFromConfig(),
		workProcessesStopped: make(chan struct{}),
		started:              time.Now(),
	}
}

func (p *TangleNode) Start() {
	p.Log().Info(global.BannerString())

	err := util.CatchPanicOrError(func() error {
		p.initDB()
		p.initLedgerIfEmpty()
		p.startWorkflow()
		p.startMetrics()
		p.startAPIServer()
		p.startPProfIfEnabled()
		p.startMemoryLogging()
		return nil
	})
	if err != nil {
		p.Log().Errorf("error on startup: %v", err)
		os.Exit(1)
	}
	p.Log().Infof("tangle node has been started successfully. Database: %s", p.dbDescription())
	p.Log().Debug("running in debug mode")
}

// WaitAllWorkProcessesToStop wait everything to stop before closing databases
func (p *TangleNode) WaitAllWorkProcessesToStop(timeout time.Duration) {
	<-p.Ctx().Done()
	p.Log().Infof("waiting all processes to stop for up to %v", timeout)
	p.Global.MustWaitAllWorkProcessesStop(timeout)
	close(p.workProcessesStopped)
}

// WaitAllDBClosed ensuring databases has been closed
func (p *TangleNode) WaitAllDBClosed() {
	p.dbClosedWG.Wait()
}

func (p *TangleNode) UpTime() time.Duration {
	return time.Since(p.started)
}

func (p *TangleNode) startWorkflow() {
	var err error
	p.workflow, err = workflow.New(p, p.store, gossip.NullNetwork{}, workflowOptionsFromConfig()...)
	p.AssertNoError(err, "can't create workflow")
	p.workflow.Start()

	start := time.Now()
	err = p.workflow.Restore()
	p.AssertNoError(err, "can't restore vertices from the database")
	info := p.workflow.Info()
	p.Log().Infof("restored %d vertices in %v. Ledger index: %d, latest solid milestone: %d",
		info.NumVertices, time.Since(start), info.LedgerIndex, info.LatestSolidMilestoneIndex)
}

func (p *TangleNode) startMetrics() {
	if !viper.GetBool(global.ConfigKeyMetricsEnable) {
		p.Log().Infof("Prometheus metrics disabled")
		return
	}
	metrics.Start(p, mustPortFromConfig(global.ConfigKeyMetricsPort))
}

func (p *TangleNode) startAPIServer() {
	port := mustPortFromConfig(global.ConfigKeyAPIPort)
	if port == 0 {
		p.Log().Infof("API server disabled")
		return
	}
	addr := fmt.Sprintf(":%d", port)
	p.Log().Infof("starting API server on %s", addr)
	util.RunWrappedRoutine("API server", func() {
		server.Run(addr, p.workflow)
	}, func(err error) {
		p.Log().Fatalf("API server: %v", err)
	})
}
