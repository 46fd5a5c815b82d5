package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vsinha/rebalance/pkg/application/services/adjustment"
	"github.com/vsinha/rebalance/pkg/application/services/planner"
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/repositories"
	"github.com/vsinha/rebalance/pkg/infrastructure/archive"
	"github.com/vsinha/rebalance/pkg/infrastructure/config"
	"github.com/vsinha/rebalance/pkg/infrastructure/events"
	"github.com/vsinha/rebalance/pkg/infrastructure/metrics"
	plancsv "github.com/vsinha/rebalance/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/rebalance/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/rebalance/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/rebalance/pkg/infrastructure/repositories/xlsx"
)

// Plan snapshot sources
const (
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
	SourcePostgres = "postgres"
)

// NewLogger builds the process logger from the --log-level and --log-format flags
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// SourceConfig selects where plan rows come from
type SourceConfig struct {
	Source    string
	InputFile string
	Sheet     string
}

// Validate checks the source flags
func (s SourceConfig) Validate() error {
	switch s.Source {
	case SourceCSV, SourceXLSX:
		if s.InputFile == "" {
			return fmt.Errorf("--input is required for source %s", s.Source)
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("unsupported source %q (expected csv, xlsx or postgres)", s.Source)
	}
	return nil
}

// OpenRepository returns the plan repository for the source and a function releasing it
func OpenRepository(ctx context.Context, cfg *config.Config, src SourceConfig) (repositories.PlanRepository, func(), error) {
	if err := src.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		rows []*entities.PlanRow
		err  error
	)
	switch src.Source {
	case SourceCSV:
		rows, err = plancsv.NewLoader().LoadPlanRows(src.InputFile)
	case SourceXLSX:
		rows, err = xlsx.NewLoader(src.Sheet).LoadPlanRows(src.InputFile)
	case SourcePostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.Postgres.URL,
			Table:           cfg.Postgres.Table,
			PingTimeout:     cfg.Postgres.PingTimeout,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("error opening postgres: %w", err)
		}
		repo, err := postgres.NewPlanRepository(db, cfg.Postgres.Table)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error loading plan rows: %w", err)
	}

	repo := memory.NewPlanRepository(len(rows))
	if err := repo.LoadPlanRows(rows); err != nil {
		return nil, nil, fmt.Errorf("failed to load plan rows into repository: %w", err)
	}
	return repo, func() {}, nil
}

// Engine is a wired adjustment service with its side-effect collaborators
type Engine struct {
	Service  *adjustment.Service
	Recorder *metrics.Recorder
	Events   *events.InMemoryEventStore
	closers  []func()
}

// Close flushes pending event handlers and releases connections
func (e *Engine) Close() {
	e.Events.Wait()
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// BuildEngine wires the service from configuration. Optional collaborators that
// cannot be reached are logged and left out.
func BuildEngine(ctx context.Context, cfg *config.Config, repo repositories.PlanRepository, logger *slog.Logger) (*Engine, error) {
	table, err := cfg.CapacityTable()
	if err != nil {
		return nil, fmt.Errorf("invalid capacity table: %w", err)
	}

	var suggestion planner.Strategy
	if cfg.Suggestion.Enabled && cfg.Suggestion.URL != "" {
		suggestion = planner.NewSuggestionPlanner(planner.SuggestionConfig{
			URL:      cfg.Suggestion.URL,
			Timeout:  cfg.Suggestion.Timeout,
			MaxItems: cfg.Suggestion.MaxItems,
		}, &http.Client{}, logger)
	}
	plan := planner.NewPlanner(suggestion, planner.NewFallbackPlanner(logger), logger)

	engine := &Engine{
		Recorder: metrics.NewRecorder(),
		Events:   events.NewInMemoryEventStore(cfg.Events.RetainedRuns, logger),
	}
	opts := []adjustment.Option{
		adjustment.WithLogger(logger),
		adjustment.WithEventStore(engine.Events),
		adjustment.WithRecorder(engine.Recorder),
	}

	if cfg.Events.NATSURL != "" {
		conn, err := events.ConnectNATS(cfg.Events.NATSURL, logger)
		if err != nil {
			logger.Warn("Event forwarding disabled", "error", err)
		} else {
			forwarder := events.NewNATSForwarder(conn, cfg.Events.Subject, []string{events.RunCompletedEvent}, logger)
			if err := engine.Events.Subscribe([]string{events.RunCompletedEvent}, forwarder); err != nil {
				conn.Close()
				return nil, fmt.Errorf("subscribe event forwarder: %w", err)
			}
			engine.closers = append(engine.closers, func() {
				if err := conn.Drain(); err != nil {
					conn.Close()
				}
			})
		}
	}

	if cfg.Archive.Endpoint != "" {
		archiveCfg := archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		}
		client, err := archive.NewMinIOClient(archiveCfg)
		if err == nil {
			err = archive.EnsureBucket(ctx, client, archiveCfg)
		}
		if err != nil {
			logger.Warn("Result archive disabled", "error", err)
		} else {
			opts = append(opts, adjustment.WithArchiver(archive.New(client, archiveCfg.Bucket)))
		}
	}

	svc, err := adjustment.NewService(adjustment.Config{
		Capacity:          table,
		Rules:             cfg.RoutingRules(),
		TargetUtilization: cfg.Utilization(),
		TargetRounding:    entities.Quantity(cfg.Planning.TargetRounding),
		LookaheadWorkdays: cfg.Planning.LookaheadWorkdays,
		WindowDays:        cfg.Planning.WindowDays,
		AnalysisDate:      entities.PlanDate(cfg.Planning.AnalysisDate),
	}, repo, plan, opts...)
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.Service = svc

	logger.Debug("Engine wired",
		"lines", len(cfg.Lines),
		"suggestion", plan.HasSuggestion(),
		"nats", cfg.Events.NATSURL != "",
		"archive", cfg.Archive.Endpoint != "")
	return engine, nil
}
