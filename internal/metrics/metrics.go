// Package metrics exposes Prometheus instrumentation for the simulation
// engine: scheduler cadence, emitted events, and registry size.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netsimkit/ifsim/pkg/util"
)

const namespace = "ifsim"

var (
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Completed scheduler ticks.",
	})

	SchedulerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_errors_total",
		Help:      "Scheduled handlers that failed and were dropped.",
	})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_events_total",
		Help:      "Interface events emitted, by type.",
	},
		[]string{"type"},
	)

	InterfacesRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interfaces_registered",
		Help:      "Interfaces currently registered with the engine.",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Wall time spent inside one scheduler tick.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Exporter serves /metrics on its own listener.
type Exporter struct {
	srv    *http.Server
	cancel context.CancelFunc
}

// NewExporter builds an exporter listening on addr.
func NewExporter(addr string) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &Exporter{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (e *Exporter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	errCh := make(chan error, 1)
	go func() {
		util.Infof("metrics: exporter listening on %s", e.srv.Addr)
		if err := e.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		return e.srv.Shutdown(shCtx)
	case err := <-errCh:
		util.Errorf("metrics: exporter failed: %v", err)
		return err
	}
}

// Stop cancels a running exporter.
func (e *Exporter) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}
