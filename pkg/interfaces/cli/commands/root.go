// Package commands implements the rebalance command line.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vsinha/rebalance/pkg/infrastructure/config"
	"github.com/vsinha/rebalance/pkg/interfaces/api"
)

const appName = "rebalance"

// globalOptions are the persistent flags and what PersistentPreRunE derives from them
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	config *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the rebalance command tree
func NewRootCommand(version, buildTime string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Capacity-constrained production plan rebalancing",
		Long: `Rebalance relieves an overloaded (date, line) bucket of a production plan by
moving lot-aligned quantities to other lines or later workdays, and validates every
move against slack, routing, calendar and capacity rules.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			logger, err := NewLogger(os.Stderr, opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			opts.logger = logger

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(newAdjustCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, version, buildTime)
		},
	})

	return cmd
}

func addSourceFlags(cmd *cobra.Command, src *SourceConfig, defaultSource string) {
	cmd.Flags().StringVar(&src.Source, "source", defaultSource, "Plan source (csv, xlsx, postgres)")
	cmd.Flags().StringVarP(&src.InputFile, "input", "i", "", "Plan file for csv and xlsx sources")
	cmd.Flags().StringVar(&src.Sheet, "sheet", "", "Worksheet name for xlsx (default: first sheet)")
}

func newAdjustCmd(opts *globalOptions) *cobra.Command {
	var cfg AdjustConfig

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Run one adjustment and print the report",
		Example: `  rebalance adjust --input plan.csv --date 2026-01-21 --line ASSY1
  rebalance adjust --input plan.xlsx --source xlsx --date 2026-01-21 --sample 500 --format json
  rebalance adjust --source postgres --date 2026-01-21 --family ClassA --suggest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Writer = cmd.OutOrStdout()
			return NewAdjustCommand(cfg, opts.config, opts.logger).Execute(cmd.Context())
		},
	}

	addSourceFlags(cmd, &cfg.SourceConfig, SourceCSV)
	cmd.Flags().StringVar(&cfg.Date, "date", "", "Target date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.Line, "line", "", "Target line (default: derived from the plan)")
	cmd.Flags().StringVar(&cfg.Family, "family", "", "Family hint for line selection (ClassA, ClassB)")
	cmd.Flags().StringVar(&cfg.Utilization, "utilization", "", "Target utilization override, e.g. 0.81")
	cmd.Flags().Int64Var(&cfg.SampleQty, "sample", 0, "Sample batch quantity to insert")
	cmd.Flags().BoolVar(&cfg.Suggest, "suggest", false, "Ask the suggestion service before the fallback planner")
	cmd.Flags().StringVarP(&cfg.Format, "format", "f", "text", "Output format (text, json, csv, svg)")
	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", "", "Output directory for results")
	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		src  SourceConfig
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the adjustment HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.config.HTTP.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, release, err := OpenRepository(ctx, opts.config, src)
			if err != nil {
				return err
			}
			defer release()

			engine, err := BuildEngine(ctx, opts.config, repo, opts.logger)
			if err != nil {
				return fmt.Errorf("error wiring engine: %w", err)
			}
			defer engine.Close()

			handler := api.NewHandler(engine.Service, engine.Events, engine.Recorder.Handler(), opts.logger)
			return api.NewServer(addr, handler).Run(ctx)
		},
	}

	addSourceFlags(cmd, &src, SourcePostgres)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: http.addr from config)")

	return cmd
}
