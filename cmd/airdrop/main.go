// Command airdrop reconciles airdrop reward tables against remote miner stats
// and the exclusion lists, and produces the final reward table.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"airdrop-reconciler/internal/config"
	"airdrop-reconciler/internal/observability"
)

// app holds state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	season     string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *http.Server
}

func newApp() *app {
	return &app{logger: zap.NewNop()}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

// rootCmd builds the command tree. The caller owns cleanup and must call
// shutdown once Execute returns, whatever its result.
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "airdrop",
		Short: "Reconcile airdrop reward tables",
		Long: `airdrop builds the final per-address reward table of a season.

It merges locally computed rewards with the totals reported by the stats
service (the larger figure wins), removes sybil and already-claimed
addresses, drops rows below one base token, and appends a TOTAL row.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "airdrop.yaml", "Path to YAML config (optional)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.season, "season", "", "Season label used in column names (overrides config)")

	root.AddCommand(
		newReconcileCmd(a),
		newFetchStatsCmd(a),
		newCalculateCmd(a),
		newFeaturesCmd(a),
		newExclusionsCmd(a),
		newPrefilterCmd(a),
		newServeCmd(a),
		newReportCmd(a),
	)
	return root
}

func (a *app) init() error {
	zcfg := zap.NewProductionConfig()
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.season != "" {
		cfg.Season = a.season
	}
	a.cfg = cfg

	if cfg.MetricsAddr != "" {
		a.startMetrics(cfg.MetricsAddr)
	}
	return nil
}

func (a *app) startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("starting metrics server", zap.String("addr", addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// shutdown stops the metrics server and flushes the logger. It is safe to
// call more than once.
func (a *app) shutdown() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
		a.metrics = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp()
	defer a.shutdown()

	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		a.logger.Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
