package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lunfardo314/tangle/global"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultPort = 14000

type (
	Environment interface {
		global.NodeGlobal
	}
)

// Handler exposes the registry of the node together with Go and process collectors
func Handler(env Environment) http.Handler {
	env.MetricsRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	return promhttp.HandlerFor(
		env.MetricsRegistry(),
		promhttp.HandlerOpts{
			Registry: env.MetricsRegistry(),
		},
	)
}

func Start(env Environment, port int) {
	if port == 0 {
		env.Log().Warnf("metrics port not specified. Will use %d for Prometheus metrics exposure", DefaultPort)
		port = DefaultPort
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(env))
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		<-env.Ctx().Done()
		_ = srv.Close()
	}()
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Log().Fatal(err)
		}
	}()
	env.Log().Infof("Prometheus metrics exposed on port %d", port)
}
