package node

import (
	"runtime"
	"time"

	"github.com/lunfardo314/tangle/global"
	"github.com/spf13/viper"
)

func (p *TangleNode) startMemoryLogging() {
	period := viper.GetDuration(global.ConfigKeyMemStatsPeriod)
	if period <= 0 {
		return
	}
	var mstats runtime.MemStats

	p.RepeatInBackground("memstats_loop", period, func() bool {
		info := p.workflow.Info()
		health := "OK"
		if info.Degraded {
			health = "DEGRADED"
		}
		runtime.ReadMemStats(&mstats)
		p.Log().Infof("[memstats] %s, uptime: %v, LSMI: %d, ledger index: %d, vertices: %d, allocated %.1f MB, system %.1f MB, Num GC: %d, Goroutines: %d",
			health,
			p.UpTime().Round(time.Second),
			info.LatestSolidMilestoneIndex,
			info.LedgerIndex,
			info.NumVertices,
			float32(mstats.Alloc*10/(1024*1024))/10,
			float32(mstats.Sys*10/(1024*1024))/10,
			mstats.NumGC,
			runtime.NumGoroutine(),
		)
		return true
	}, true)
}
