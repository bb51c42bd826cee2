package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/noisemap/core"
	"github.com/signalsfoundry/noisemap/internal/logging"
	"github.com/signalsfoundry/noisemap/internal/observability"
	"github.com/signalsfoundry/noisemap/model"
)

type runOptions struct {
	order       int
	maxDistance float64
	workers     int
	wallAlpha   float64
	output      string
	metricsAddr string
	pretty      bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "noisemap",
		Short: "Compute environmental noise levels at receiver points",
		Long: `noisemap propagates sound from point and line sources to receivers,
accounting for direct paths, wall reflections and atmospheric absorption.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newValidateCmd(), newBandsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run [scenario file]",
		Short: "Evaluate every receiver of a scenario and write the levels as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.order, "order", 1, "Maximum reflection order (0 disables reflections)")
	cmd.Flags().Float64Var(&opts.maxDistance, "max-distance", 500, "Search radius around each receiver in metres")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Receivers evaluated concurrently (0 = number of CPUs)")
	cmd.Flags().Float64Var(&opts.wallAlpha, "wall-alpha", 0.2, "Absorption of walls without their own value, in [0,1)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Result file, or - for stdout")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

// applyOverrides copies explicitly set flags over the scenario settings.
func applyOverrides(cmd *cobra.Command, opts runOptions, s *model.Settings) {
	flags := cmd.Flags()
	if flags.Changed("order") {
		order := opts.order
		s.ReflectionOrder = &order
	}
	if flags.Changed("max-distance") {
		s.MaxDistance = opts.maxDistance
	}
	if flags.Changed("workers") {
		s.Workers = opts.workers
	}
	if flags.Changed("wall-alpha") {
		alpha := opts.wallAlpha
		s.WallAbsorption = &alpha
	}
}

func runScenario(cmd *cobra.Command, path string, opts runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	base := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(ctx, base)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	sc, err := core.LoadScenarioFile(path)
	if err != nil {
		return err
	}
	applyOverrides(cmd, opts, &sc.Settings)

	scene, cfg, err := core.BuildScene(ctx, sc)
	if err != nil {
		return err
	}
	engine, err := core.NewPropagationEngine(scene, cfg, nil)
	if err != nil {
		return err
	}

	se := core.NewSimulationEngine(engine)
	se.Workers = sc.Settings.Workers
	// Evaluate tags its own entries with the run id already in ctx.
	se.Log = base
	if opts.metricsAddr != "" {
		collector, err := observability.NewPropagationCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		collector.SetSceneCounts(len(scene.Sources()), len(scene.Walls()), len(scene.Receivers()))
		se.Metrics = collector
		if srv := serveMetrics(opts.metricsAddr, collector, log); srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}
	se.RegisterProgressListener(progressLogger(ctx, log))

	result, evalErr := se.Evaluate(ctx)
	if result == nil {
		return evalErr
	}
	if err := writeResult(cmd.OutOrStdout(), opts.output, result, opts.pretty); err != nil {
		return err
	}
	return evalErr
}

// progressLogger reports evaluation progress at debug level in 10% steps.
func progressLogger(ctx context.Context, log logging.Logger) func(done, total int) {
	next := 10
	return func(done, total int) {
		if total == 0 {
			return
		}
		pct := done * 100 / total
		if pct < next {
			return
		}
		for next <= pct {
			next += 10
		}
		log.Debug(ctx, "evaluation progress",
			logging.Int("done", done),
			logging.Int("total", total),
			logging.Int("percent", pct),
		)
	}
}

func writeResult(stdout io.Writer, path string, result *core.RunResult, pretty bool) error {
	out := stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.PropagationCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario file]",
		Short: "Check a scenario file and report what it contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := core.LoadScenarioFile(args[0])
			if err != nil {
				return err
			}
			scene, cfg, err := core.BuildScene(cmd.Context(), sc)
			if err != nil {
				return err
			}
			if _, err := core.NewPropagationEngine(scene, cfg, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d sources, %d walls, %d receivers, %d triangles, %d bands, reflection order %d)\n",
				args[0],
				len(scene.Sources()),
				len(scene.Walls()),
				len(scene.Receivers()),
				len(scene.Triangles()),
				scene.Bands(),
				cfg.ReflectionOrder,
			)
			return nil
		},
	}
}

func newBandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bands",
		Short: "List the default frequency bands and their atmospheric absorption",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%8s  %10s\n", "Hz", "dB/km")
			for _, f := range core.ThirdOctaveBands {
				fmt.Fprintf(out, "%8d  %10.2f\n", f, core.AtmosphericAlpha(f))
			}
		},
	}
}
