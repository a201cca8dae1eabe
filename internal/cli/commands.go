package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/internal/debug"
	"github.com/easyfolio/easyfolio/internal/server"
	"github.com/easyfolio/easyfolio/internal/service"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "easyfolio",
		Short: "easyfolio - percentage-of-budget position tracking and AI advisory",
		Long: `easyfolio tracks positions as units of a fixed budget (100 units per
symbol) and runs an LLM-backed advisory that decides between executing a
trade and explicitly holding, then streams a markdown analysis report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode()
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAdviseCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newBudgetCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

func newLogger(debugEnabled bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debugEnabled {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// bootstrap loads the persisted config and wires the service.
func bootstrap(cmd *cobra.Command) (*service.Service, *config.Manager, zerolog.Logger, error) {
	debugFlag, _ := cmd.Flags().GetBool("debug")

	defaults := config.DefaultConfig()
	if debugFlag {
		defaults.Debug = true
	}
	log := newLogger(defaults.Debug)

	manager, err := config.NewManager(
		config.WithConfigDir(defaults.DataDir),
		config.WithInitialConfig(defaults),
	)
	if err != nil {
		return nil, nil, log, fmt.Errorf("load config: %w", err)
	}

	cfg := manager.Get()
	svc, err := service.New(cmd.Context(), &cfg, log)
	if err != nil {
		return nil, nil, log, err
	}
	return svc, manager, log, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, manager, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := debug.Init(ctx, svc.Config(), log); err != nil {
				log.Warn().Err(err).Msg("eino debug unavailable")
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = svc.Config().ServerAddr
			}

			srv := server.New(addr, svc, log, server.WithConfigPersist(func(c config.Config) error {
				return manager.Update(c)
			}))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to the configured server_addr)")
	return cmd
}

func newAdviseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advise [SYMBOL]",
		Short: "Run the advisory workflow for a symbol",
		Long: `Run the advisory workflow: fetch market data, let the model decide
between execute_trade and no_action, apply the decision to the ledger and
stream the analysis report.
Example: easyfolio advise AAPL --date=2024-03-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			date, _ := cmd.Flags().GetString("date")
			return runAdvisory(cmd.Context(), svc, args[0], date)
		},
	}
	cmd.Flags().String("date", "", "Simulated date in YYYY-MM-DD format (live if not provided)")
	return cmd
}

func runAdvisory(ctx context.Context, svc *service.Service, symbol, date string) error {
	if svc.IsDemo() {
		DisplayInfo("No API key configured: running in demo mode (no trades will be made)")
	}

	stream, runID := svc.Analyze(ctx, symbol, date)
	for chunk := range stream {
		fmt.Print(chunk)
	}
	fmt.Println()
	DisplayInfo(fmt.Sprintf("Run recorded as %s", runID))
	return nil
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [SYMBOL]",
		Short: "Show the position summary for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			DisplaySummary(svc.Summary(cmd.Context(), args[0]))
			return nil
		},
	}
}

func newBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget [SYMBOL] [AMOUNT]",
		Short: "Set the total budget for a symbol",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("amount must be a number: %w", err)
			}

			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.SetBudget(args[0], amount); err != nil {
				return err
			}
			DisplaySuccess(fmt.Sprintf("Budget for %s set to %.2f", strings.ToUpper(args[0]), amount))
			return nil
		},
	}
}

func newRecordCmd() *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Manage trade records",
	}

	addCmd := &cobra.Command{
		Use:   "add [SYMBOL]",
		Short: "Append a manual trade record",
		Long: `Append a manual trade record. Units are signed: positive buys,
negative sells, zero records an explicit no-action.
Example: easyfolio record add AAPL --date=2024-03-01 --units=30 --price=187.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			units, _ := cmd.Flags().GetInt("units")
			price, _ := cmd.Flags().GetFloat64("price")
			note, _ := cmd.Flags().GetString("note")

			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.AddRecord(args[0], date, units, price, note); err != nil {
				return err
			}
			DisplaySuccess("Record added")
			return nil
		},
	}
	addCmd.Flags().String("date", time.Now().Format("2006-01-02"), "Trade date in YYYY-MM-DD format")
	addCmd.Flags().Int("units", 0, "Signed units (positive buy, negative sell)")
	addCmd.Flags().Float64("price", 0, "Trade price")
	addCmd.Flags().String("note", "", "Optional note stored with the record")

	deleteCmd := &cobra.Command{
		Use:   "delete [SYMBOL] [INDEX]",
		Short: "Delete the record at a history index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be an integer: %w", err)
			}

			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !svc.DeleteRecord(args[0], index) {
				return fmt.Errorf("no record at index %d for %s", index, strings.ToUpper(args[0]))
			}
			DisplaySuccess("Record deleted")
			return nil
		},
	}

	recordCmd.AddCommand(addCmd)
	recordCmd.AddCommand(deleteCmd)
	return recordCmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [SYMBOL]",
		Short: "Clear a symbol's trade history (keeps the budget)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confirmed, err := PromptForConfirmation(fmt.Sprintf("Clear all history for %s?", strings.ToUpper(args[0])))
			if err != nil {
				return err
			}
			if !confirmed {
				DisplayInfo("Aborted")
				return nil
			}

			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !svc.Clear(args[0]) {
				return fmt.Errorf("no position for %s", strings.ToUpper(args[0]))
			}
			DisplaySuccess("History cleared")
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse recorded advisory runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			runs, err := svc.Runs(cmd.Context(), 0, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				DisplayInfo("No runs recorded yet")
				return nil
			}
			for _, run := range runs {
				line := fmt.Sprintf("%s  %-8s %-9s %s", run.CreatedAt, run.Symbol, run.Status, run.ID)
				if run.SimulatedDate != "" {
					line += fmt.Sprintf("  (replay %s)", run.SimulatedDate)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	listCmd.Flags().Int("limit", 20, "Maximum runs to list")

	showCmd := &cobra.Command{
		Use:   "show [RUN_ID]",
		Short: "Print a recorded run's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			transcript, err := svc.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(transcript)
			return nil
		},
	}

	runsCmd.AddCommand(listCmd)
	runsCmd.AddCommand(showCmd)
	return runsCmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, manager, _, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			cfg := svc.Config()
			fmt.Println("📋 easyfolio configuration")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("Config file:        %s\n", manager.Path())
			fmt.Printf("Data directory:     %s\n", cfg.DataDir)
			fmt.Printf("Cache directory:    %s\n", cfg.DataCacheDir)
			fmt.Println()
			fmt.Printf("LLM provider:       %s\n", cfg.LLMProvider)
			fmt.Printf("Model:              %s\n", cfg.ModelName)
			fmt.Printf("API key:            %s\n", cfg.MaskedAPIKey())
			fmt.Printf("Base URL:           %s\n", cfg.BaseURL)
			fmt.Printf("Demo mode:          %t\n", svc.IsDemo())
			fmt.Println()
			if cfg.LongportAppKey != "" {
				fmt.Println("Longport data:      ✅ Configured")
			} else {
				fmt.Println("Longport data:      ❌ Not configured")
			}
			fmt.Printf("Cache enabled:      %t\n", cfg.CacheEnabled)
			fmt.Printf("Server address:     %s\n", cfg.ServerAddr)
			return nil
		},
	})

	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("easyfolio v1.0.0")
			fmt.Println("Percentage-of-budget position tracking and AI advisory")
		},
	}
}

// runInteractiveMode is the default menu-driven loop.
func runInteractiveMode() error {
	DisplayWelcomeBanner()

	rootCtx := context.Background()
	defaults := config.DefaultConfig()
	log := newLogger(defaults.Debug)

	manager, err := config.NewManager(
		config.WithConfigDir(defaults.DataDir),
		config.WithInitialConfig(defaults),
	)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()
	svc, err := service.New(rootCtx, &cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	for {
		action, err := PromptForAction()
		if err != nil {
			return err
		}

		switch action {
		case "Run advisory":
			symbol, err := PromptForSymbol()
			if err != nil {
				return err
			}
			date, err := PromptForSimulatedDate()
			if err != nil {
				return err
			}
			if err := runAdvisory(rootCtx, svc, symbol, date); err != nil {
				DisplayError(err)
			}
		case "Show summary":
			symbol, err := PromptForSymbol()
			if err != nil {
				return err
			}
			DisplaySummary(svc.Summary(rootCtx, symbol))
		case "Set budget":
			symbol, err := PromptForSymbol()
			if err != nil {
				return err
			}
			budget, err := PromptForBudget()
			if err != nil {
				return err
			}
			if _, err := svc.SetBudget(symbol, budget); err != nil {
				DisplayError(err)
			} else {
				DisplaySuccess(fmt.Sprintf("Budget for %s set to %.2f", symbol, budget))
			}
		case "Clear history":
			symbol, err := PromptForSymbol()
			if err != nil {
				return err
			}
			confirmed, err := PromptForConfirmation(fmt.Sprintf("Clear all history for %s?", symbol))
			if err != nil {
				return err
			}
			if confirmed && svc.Clear(symbol) {
				DisplaySuccess("History cleared")
			}
		case "Quit":
			DisplayInfo("Goodbye!")
			return nil
		}

		fmt.Println()
	}
}
