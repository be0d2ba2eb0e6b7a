package healthchecker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/metrics"
)

func newSink(metricsAddr string) metrics.Sink {
	if metricsAddr == "" {
		return metrics.NewAtomicSink()
	}
	return metrics.NewPrometheusSink()
}

func (c *Checker) startMetricsServer(addr string) {
	promSink, ok := c.sink.(*metrics.PrometheusSink)
	if !ok {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promSink.Registry(), promhttp.HandlerOpts{}))
	c.httpServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := c.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("healthchecker: metrics server stopped")
		}
	}()
}
