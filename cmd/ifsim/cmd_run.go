package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iti/rngstream"
	"github.com/spf13/cobra"

	"github.com/netsimkit/ifsim/internal/metrics"
	"github.com/netsimkit/ifsim/pkg/mirror"
	"github.com/netsimkit/ifsim/pkg/sim"
	"github.com/netsimkit/ifsim/pkg/simspec"
	"github.com/netsimkit/ifsim/pkg/util"
)

var (
	runRedisAddr     string
	runRedisDB       int
	runStatePeriod   time.Duration
	runMetricsListen string
	runTick          time.Duration
	runSeed          string
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Animate a scenario until interrupted",
	Long: `Run loads a scenario, starts the scheduler, and animates the
interfaces until SIGINT or SIGTERM.

With --redis, interface state is mirrored into Redis hashes
(IFSIM_PORT|<name>) and scheduler events are published to the
ifsim:events channel. With --metrics-listen, Prometheus metrics are
served on /metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRedisAddr, "redis", "", "Mirror state to the Redis at this address (host:port)")
	runCmd.Flags().IntVar(&runRedisDB, "redis-db", 0, "Redis logical database for the mirror")
	runCmd.Flags().DurationVar(&runStatePeriod, "state-period", 10*time.Second, "How often to flush interface state to Redis")
	runCmd.Flags().StringVar(&runMetricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9161)")
	runCmd.Flags().DurationVar(&runTick, "tick", 0, "Override the scheduler tick interval")
	runCmd.Flags().StringVar(&runSeed, "seed", "", "Override the scenario's random stream name")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	f, err := simspec.Load(args[0])
	if err != nil {
		return err
	}
	opts, err := f.Options()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if runTick > 0 {
		opts.TickInterval = runTick
	}
	if runSeed != "" {
		opts.Rand = rngstream.New(runSeed)
	}

	e := sim.New(opts)
	ifaces, err := f.Apply(e)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runMetricsListen != "" {
		exp := metrics.NewExporter(runMetricsListen)
		go func() {
			if err := exp.Start(ctx); err != nil {
				util.Errorf("metrics exporter: %v", err)
			}
		}()
	}

	if runRedisAddr != "" {
		m := mirror.New(runRedisAddr, mirror.WithDB(runRedisDB))
		if err := m.Connect(); err != nil {
			return err
		}
		defer m.Close()
		detach := m.Attach(e)
		defer detach()
		go mirrorStates(ctx, e, m, runStatePeriod)
	}

	e.Start()
	fmt.Printf("ifsim: animating %d interfaces from %s; Ctrl-C to stop\n", len(ifaces), args[0])

	<-ctx.Done()
	fmt.Println("\nifsim: shutting down")
	return e.Stop()
}

// mirrorStates flushes every interface's state hash on the given period
// until ctx is canceled. The first flush happens right away so state exists
// before the first period elapses.
func mirrorStates(ctx context.Context, e *sim.Engine, m *mirror.Mirror, period time.Duration) {
	log := util.WithComponent("mirror")

	flush := func() {
		for _, idx := range e.Interfaces() {
			st, err := e.InterfaceState(idx)
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := m.WriteState(wctx, st); err != nil {
				log.Warnf("state flush for %s: %v", st.Name, err)
			}
			cancel()
		}
	}

	flush()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flush()
		}
	}
}
