// Package adjustment runs the reallocation pipeline for one adjustment request.
package adjustment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/application/services/planner"
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/repositories"
	"github.com/vsinha/rebalance/pkg/domain/services"
	"github.com/vsinha/rebalance/pkg/infrastructure/events"
)

const (
	// DefaultWindowDays is how far around the target date the snapshot is read
	DefaultWindowDays = 10
	// DefaultTargetRounding is the unit target quantities are rounded to
	DefaultTargetRounding entities.Quantity = 100
)

// DefaultTargetUtilization is the share of line capacity a relieved bucket aims for
var DefaultTargetUtilization = decimal.RequireFromString("0.81")

// Config holds the engine settings shared by every run
type Config struct {
	Capacity          *entities.CapacityTable
	Rules             services.RoutingRules
	TargetUtilization decimal.Decimal
	TargetRounding    entities.Quantity
	LookaheadWorkdays int
	WindowDays        int
	// AnalysisDate is recorded on results; empty means the target date
	AnalysisDate entities.PlanDate
}

// Archiver stores finished results
type Archiver interface {
	Archive(ctx context.Context, result *dto.AdjustmentResult) error
}

// Recorder observes finished results, typically for metrics
type Recorder interface {
	ObserveRun(result *dto.AdjustmentResult)
}

// Service wires the engine components into one sequential run per request
type Service struct {
	config        Config
	repo          repositories.PlanRepository
	planner       *planner.Planner
	analyzer      *services.StockAnalyzer
	slack         *services.SlackCalculator
	ledgerBuilder *services.CapacityLedgerBuilder
	classifier    *services.ConstraintClassifier
	validator     *services.MoveValidator

	eventStore events.EventStore
	archiver   Archiver
	recorder   Recorder
	logger     *slog.Logger
	newRunID   func() string
	now        func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithEventStore appends run events to store
func WithEventStore(store events.EventStore) Option {
	return func(s *Service) { s.eventStore = store }
}

// WithArchiver archives every finished result
func WithArchiver(archiver Archiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithRecorder reports every finished result
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock and run id source
func WithClock(now func() time.Time, newRunID func() string) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
		if newRunID != nil {
			s.newRunID = newRunID
		}
	}
}

// NewService creates an adjustment service
func NewService(config Config, repo repositories.PlanRepository, plan *planner.Planner, opts ...Option) (*Service, error) {
	if config.Capacity == nil {
		return nil, fmt.Errorf("capacity table is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("plan repository is required")
	}
	if plan == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if config.TargetUtilization.IsZero() {
		config.TargetUtilization = DefaultTargetUtilization
	}
	if config.TargetRounding <= 0 {
		config.TargetRounding = DefaultTargetRounding
	}
	if config.LookaheadWorkdays <= 0 {
		config.LookaheadWorkdays = entities.DefaultLookaheadWorkdays
	}
	if config.WindowDays <= 0 {
		config.WindowDays = DefaultWindowDays
	}

	classifier := services.NewConstraintClassifier(config.Rules)
	s := &Service{
		config:        config,
		repo:          repo,
		planner:       plan,
		analyzer:      services.NewStockAnalyzer(),
		slack:         services.NewSlackCalculator(),
		ledgerBuilder: services.NewCapacityLedgerBuilder(),
		classifier:    classifier,
		validator:     services.NewMoveValidator(classifier),
		logger:        slog.Default(),
		newRunID:      func() string { return uuid.New().String() },
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes one adjustment. Business-rule outcomes are reported in the result;
// an error means the request could not be run at all.
func (s *Service) Run(ctx context.Context, req dto.AdjustmentRequest) (*dto.AdjustmentResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	start := s.now()
	runID := s.newRunID()
	logger := s.logger.With("run_id", runID)

	// Step 1: Read the snapshot window; nothing is mutated before this succeeds
	from, to := req.Date.AddDays(-s.config.WindowDays), req.Date.AddDays(s.config.WindowDays)
	rows, err := s.repo.GetPlanRows(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrSnapshotUnavailable, err)
	}
	snapshot, err := entities.NewPlanSnapshot(rows)
	if err != nil {
		return nil, err
	}

	// Step 2: Resolve the target bucket
	line, err := s.resolveLine(snapshot, req)
	if err != nil {
		return nil, err
	}
	pc, err := entities.NewPlanningContext(s.config.AnalysisDate, entities.BucketKey{Date: req.Date, Line: line},
		s.config.Capacity, s.config.LookaheadWorkdays)
	if err != nil {
		return nil, err
	}

	stock, err := s.analyzer.Analyze(snapshot, pc.Target)
	if err != nil {
		return nil, err
	}
	s.emit(runID, events.NewRunStartedEvent(runID, pc.Target, req.SampleQty))

	// Step 3: Derive slack, routing classes and headroom
	profiles := s.slack.Calculate(pc, snapshot, stock)
	items := s.classifier.ClassifyMovable(pc, profiles)
	ledger := s.ledgerBuilder.Build(pc, snapshot)

	capacity, _ := pc.Capacity.Max(pc.Target.Line)
	utilization := s.config.TargetUtilization
	if req.TargetUtilization != nil {
		utilization = *req.TargetUtilization
	}
	targetQty := entities.TargetQuantity(capacity, utilization, s.config.TargetRounding)
	needQty := stock.Total + req.SampleQty - targetQty
	if needQty < 0 {
		needQty = 0
	}

	result := &dto.AdjustmentResult{
		RunID:        runID,
		AnalysisDate: pc.AnalysisDate,
		Target:       pc.Target,
		Stock:        stock,
		Profiles:     profiles,
		MovableItems: items,
		Ledger:       ledgerView(ledger),
		Candidates:   []entities.Candidate{},
		Outcome: entities.ValidationOutcome{
			Accepted:   []entities.Move{},
			Violations: []entities.Violation{},
		},
		Metrics: dto.Metrics{
			CurrentTotal:    stock.Total,
			SampleQty:       req.SampleQty,
			TargetQty:       targetQty,
			NeedQty:         needQty,
			AchievementRate: decimal.Zero,
		},
		StartedAt: start,
	}

	logger.Info("Adjustment run started",
		"target", pc.Target.String(),
		"current_total", stock.Total,
		"target_qty", targetQty,
		"need", needQty,
		"movable_items", len(items))

	if needQty == 0 {
		result.Status = dto.StatusNoActionNeeded
		result.StatusReason = fmt.Sprintf("current total %d is within target %d", stock.Total+req.SampleQty, targetQty)
		s.finish(ctx, logger, result)
		return result, nil
	}

	// Step 4: Plan candidates with one strategy
	mode := planner.ModeReduce
	if req.IsSample() {
		mode = planner.ModeSample
	}
	proposal, err := s.planner.Plan(ctx, planner.Input{
		Mode:    mode,
		Context: pc,
		NeedQty: needQty,
		Items:   items,
		Ledger:  ledger,
	}, req.PreferSuggestion)
	if err != nil {
		return nil, fmt.Errorf("plan moves: %w", err)
	}
	result.Strategy = proposal.Strategy
	result.FallbackReason = proposal.FallbackReason
	if proposal.Candidates != nil {
		result.Candidates = proposal.Candidates
	}

	// Step 5: Validate against a fresh copy of the ledger
	validation, err := s.validator.Validate(pc, result.Candidates, items, ledger)
	if err != nil {
		return nil, fmt.Errorf("validate moves: %w", err)
	}
	result.Outcome = validation.Outcome

	achieved := result.Outcome.AchievedQty()
	result.Metrics.AchievedQty = achieved
	result.Metrics.AchievementRate = entities.Ratio(achieved, needQty).Round(4)
	switch {
	case achieved == 0:
		result.Status = dto.StatusNoFeasiblePlan
		result.StatusReason = fmt.Sprintf("no feasible move among %d candidates", len(result.Candidates))
	case achieved >= needQty:
		result.Status = dto.StatusComplete
	default:
		result.Status = dto.StatusPartial
		result.StatusReason = fmt.Sprintf("moved %d of %d", achieved, needQty)
	}

	for _, v := range result.Outcome.Violations {
		logger.Debug("Candidate checked",
			"index", v.Index,
			"item", v.Item,
			"severity", v.Severity.String(),
			"message", v.Message)
	}

	s.finish(ctx, logger, result)
	return result, nil
}

// finish emits run events and hands the result to the optional side effects.
// Side-effect failures are logged and never change the result.
func (s *Service) finish(ctx context.Context, logger *slog.Logger, result *dto.AdjustmentResult) {
	result.Duration = s.now().Sub(result.StartedAt)

	for _, mv := range result.Outcome.Accepted {
		s.emit(result.RunID, events.NewMoveAcceptedEvent(result.RunID, mv))
	}
	for _, v := range result.Outcome.Violations {
		if v.Severity != entities.SeverityAdjusted {
			s.emit(result.RunID, events.NewMoveRejectedEvent(result.RunID, v))
		}
	}
	s.emit(result.RunID, events.NewRunCompletedEvent(result.RunID, events.RunCompleted{
		Target:      result.Target,
		Status:      string(result.Status),
		Strategy:    result.Strategy,
		NeedQty:     result.Metrics.NeedQty,
		AchievedQty: result.Metrics.AchievedQty,
		Accepted:    len(result.Outcome.Accepted),
		Violations:  len(result.Outcome.Violations),
	}))

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, result); err != nil {
			logger.Warn("Failed to archive result", "error", err)
		}
	}
	if s.recorder != nil {
		s.recorder.ObserveRun(result)
	}

	logger.Info("Adjustment run completed",
		"target", result.Target.String(),
		"status", result.Status,
		"strategy", result.Strategy,
		"need", result.Metrics.NeedQty,
		"achieved", result.Metrics.AchievedQty,
		"accepted", len(result.Outcome.Accepted),
		"hard", result.Outcome.CountBySeverity(entities.SeverityHard),
		"warnings", result.Outcome.CountBySeverity(entities.SeverityWarning),
		"adjusted", result.Outcome.CountBySeverity(entities.SeverityAdjusted),
		"duration", result.Duration)
}

func (s *Service) emit(runID string, event events.Event) {
	if s.eventStore == nil {
		return
	}
	if err := s.eventStore.AppendEvent(runID, event); err != nil {
		s.logger.Warn("Failed to append event", "run_id", runID, "type", event.Type(), "error", err)
	}
}
