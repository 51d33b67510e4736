package node

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/lunfardo314/tangle/global"
	"github.com/spf13/viper"
)

// startPProfIfEnabled serves profiling endpoints on localhost only, on a mux separate from the API and metrics
func (p *TangleNode) startPProfIfEnabled() {
	if !viper.GetBool(global.ConfigKeyPProfEnable) {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", mustPortFromConfig(global.ConfigKeyPProfPort)),
		Handler: mux,
	}
	p.Log().Infof("starting pprof on '%s'", srv.Addr)

	go func() {
		<-p.Ctx().Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Log().Errorf("pprof: %v", err)
		}
	}()
}
