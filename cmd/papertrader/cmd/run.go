package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickhouse/papertrader/account"
	"github.com/tickhouse/papertrader/config"
	"github.com/tickhouse/papertrader/engine"
	"github.com/tickhouse/papertrader/feed"
	"github.com/tickhouse/papertrader/internal/logger"
	"github.com/tickhouse/papertrader/journal"
	"github.com/tickhouse/papertrader/market"
	sigfilter "github.com/tickhouse/papertrader/signal"
	"github.com/tickhouse/papertrader/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trading session from tick and signal feeds",
	Long: `Run one trading session: stream ticks and signals from NDJSON files,
filter and execute signals against the simulated broker, and persist the
account state for the next session.

Example:
  papertrader run -f config.yaml --ticks ticks.ndjson --signals signals.ndjson`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runTicksPath   string
	runSignalsPath string
	runSymbol      string
	runVerbose     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVar(&runTicksPath, "ticks", "", "path to NDJSON tick feed (required)")
	runCmd.Flags().StringVar(&runSignalsPath, "signals", "", "path to NDJSON signal feed (required)")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "restrict signals to one symbol")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "enable debug logging")
	runCmd.MarkFlagRequired("config")
	runCmd.MarkFlagRequired("ticks")
	runCmd.MarkFlagRequired("signals")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(runVerbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// Restore the account from the last session, or start fresh. A
	// corrupt snapshot is logged and replaced, never fatal.
	store := account.NewStore(cfg.StateFile)
	snap, err := store.Load()
	if err != nil {
		log.Warn("account snapshot unreadable, starting fresh",
			zap.String("path", cfg.StateFile), zap.Error(err))
	}
	var state *account.State
	if snap != nil {
		state = account.Restore(*snap)
		log.Info("account restored",
			zap.Float64("cash", state.Cash),
			zap.Int("session", state.SessionCount),
			zap.Int("lifetime_trades", state.LifetimeTrades))
	} else {
		state = account.NewState(cfg.Account.InitialCash)
		state.SessionCount = 1
	}

	jour, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jour.Close()

	eng, err := buildEngine(cfg, log, state, jour)
	if err != nil {
		return err
	}

	ticks, err := feed.OpenTicks(runTicksPath)
	if err != nil {
		return fmt.Errorf("open tick feed: %w", err)
	}
	signals, err := feed.OpenSignals(runSignalsPath)
	if err != nil {
		ticks.Close()
		return fmt.Errorf("open signal feed: %w", err)
	}

	fmt.Printf("Running session with config: %s\n", runConfigPath)
	fmt.Printf("  Account: $%.2f cash, session %d, %d lifetime trades\n",
		state.Cash, state.SessionCount, state.LifetimeTrades)
	fmt.Printf("  Filters: confidence >= %.2f, edge >= %.1fbp, cooldown %s\n",
		cfg.Filters.MinConfidence, cfg.Filters.MinProfitBP, cfg.Filters.MinTradeInterval)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Start()
	runner := &engine.Runner{Engine: eng, Ticks: ticks, Signals: signals, Symbol: runSymbol}
	stats, runErr := runner.Run(ctx)

	// Persist whatever state the session reached, interrupted or not.
	final := eng.Snapshot()
	if err := store.Save(final); err != nil {
		log.Error("save account snapshot", zap.Error(err))
	}

	fmt.Printf("\nSession Results:\n")
	fmt.Printf("  Ticks processed: %d\n", stats.Ticks)
	fmt.Printf("  Signals delivered: %d\n", stats.Signals)
	fmt.Printf("  Lifetime trades: %d\n", final.TradesCount)
	fmt.Printf("  Cash: $%.2f\n", final.Cash)
	fmt.Printf("  Portfolio Value: $%.2f\n", final.PortfolioValue)
	fmt.Printf("\nState saved to: %s\n", cfg.StateFile)

	if runErr != nil && ctx.Err() != nil {
		fmt.Println("Session interrupted, state persisted.")
		return nil
	}
	return runErr
}

func buildEngine(cfg *config.Config, log *zap.Logger, state *account.State, jour journal.Journal) (*engine.Engine, error) {
	hours, err := market.DefaultHours()
	if err != nil {
		return nil, err
	}
	threshold, err := cfg.Market.ParseFreshnessThreshold()
	if err != nil {
		return nil, fmt.Errorf("market.freshness_threshold: %w", err)
	}
	guard := market.NewGuard(threshold, hours, cfg.Market.AllowAfterHours)

	interval, err := cfg.Filters.ParseMinTradeInterval()
	if err != nil {
		return nil, fmt.Errorf("filters.min_trade_interval: %w", err)
	}
	pipeline := sigfilter.NewPipeline(cfg.Filters.MinConfidence, cfg.Filters.MinProfitBP,
		sigfilter.NewCooldown(interval))

	fillDelay, err := cfg.Sim.ParseFillDelay()
	if err != nil {
		return nil, fmt.Errorf("sim.fill_delay: %w", err)
	}
	broker := sim.New(sim.Options{
		Seed:          cfg.Sim.Seed,
		InitialCash:   cfg.Account.InitialCash,
		FillDelay:     fillDelay,
		RejectProb:    cfg.Sim.RejectProb,
		MaxSlippageBP: cfg.Sim.MaxSlippageBP,
	})

	fillTimeout, err := cfg.Engine.ParseFillTimeout()
	if err != nil {
		return nil, fmt.Errorf("engine.fill_timeout: %w", err)
	}
	return engine.New(log, broker, guard, pipeline, state, jour, engine.Config{
		RiskPercent:    cfg.Engine.RiskPercent,
		MaxPositionPct: cfg.Engine.MaxPositionPct,
		FillTimeout:    fillTimeout,
	}), nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	if jc.Type == "sqlite" {
		return journal.NewSQLite(jc.DBPath)
	}
	return journal.NewJSONL(jc.TradesFile, jc.EventsFile)
}
