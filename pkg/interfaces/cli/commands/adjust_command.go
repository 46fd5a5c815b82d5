package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/infrastructure/config"
	"github.com/vsinha/rebalance/pkg/interfaces/cli/output"
)

// AdjustConfig holds configuration for one adjustment run
type AdjustConfig struct {
	SourceConfig
	Date        string
	Line        string
	Family      string
	Utilization string
	SampleQty   int64
	Suggest     bool
	Format      string
	OutputDir   string
	Verbose     bool
	// Writer receives the report; nil means os.Stdout
	Writer io.Writer
}

// AdjustCommand handles a single adjustment run
type AdjustCommand struct {
	config AdjustConfig
	app    *config.Config
	logger *slog.Logger
}

// NewAdjustCommand creates a new adjust command
func NewAdjustCommand(cmdConfig AdjustConfig, app *config.Config, logger *slog.Logger) *AdjustCommand {
	if cmdConfig.Writer == nil {
		cmdConfig.Writer = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdjustCommand{config: cmdConfig, app: app, logger: logger}
}

// Execute runs the adjustment and renders the report. Only contract errors are
// returned; an infeasible plan is a normal outcome.
func (c *AdjustCommand) Execute(ctx context.Context) error {
	req, err := c.buildRequest()
	if err != nil {
		return err
	}
	if err := c.config.SourceConfig.Validate(); err != nil {
		return err
	}

	if c.config.Verbose {
		c.printHeader()
	}

	repo, release, err := OpenRepository(ctx, c.app, c.config.SourceConfig)
	if err != nil {
		return err
	}
	defer release()

	engine, err := BuildEngine(ctx, c.app, repo, c.logger)
	if err != nil {
		return fmt.Errorf("error wiring engine: %w", err)
	}
	defer engine.Close()

	startTime := time.Now()
	result, err := engine.Service.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("adjustment failed: %w", err)
	}
	if c.config.Verbose {
		fmt.Fprintf(c.config.Writer, "✅ Adjustment completed in %v\n\n", time.Since(startTime))
	}

	err = output.Generate(result, output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Writer:    c.config.Writer,
	})
	if err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	return nil
}

// buildRequest validates the flags and turns them into a request
func (c *AdjustCommand) buildRequest() (dto.AdjustmentRequest, error) {
	if c.config.Date == "" {
		return dto.AdjustmentRequest{}, fmt.Errorf("%w: --date is required", dto.ErrInvalidRequest)
	}
	date, err := entities.ParsePlanDate(c.config.Date)
	if err != nil {
		return dto.AdjustmentRequest{}, fmt.Errorf("%w: %v", dto.ErrInvalidRequest, err)
	}

	req := dto.AdjustmentRequest{
		Date:             date,
		Line:             entities.Line(c.config.Line),
		FamilyHint:       c.config.Family,
		SampleQty:        entities.Quantity(c.config.SampleQty),
		PreferSuggestion: c.config.Suggest,
	}
	if c.config.Utilization != "" {
		u, err := decimal.NewFromString(c.config.Utilization)
		if err != nil {
			return dto.AdjustmentRequest{}, fmt.Errorf("%w: invalid utilization %q", dto.ErrInvalidRequest, c.config.Utilization)
		}
		req.TargetUtilization = &u
	}
	return req, req.Validate()
}

// printHeader prints the command header information
func (c *AdjustCommand) printHeader() {
	w := c.config.Writer
	fmt.Fprintf(w, "🚀 Rebalance CLI\n")
	fmt.Fprintf(w, "Source: %s", c.config.Source)
	if c.config.InputFile != "" {
		fmt.Fprintf(w, " (%s)", c.config.InputFile)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Date: %s\n", c.config.Date)
	if c.config.Line != "" {
		fmt.Fprintf(w, "Line: %s\n", c.config.Line)
	}
	if c.config.SampleQty > 0 {
		fmt.Fprintf(w, "Sample: %d\n", c.config.SampleQty)
	}
	fmt.Fprintf(w, "Output format: %s\n", c.config.Format)
	if c.config.OutputDir != "" {
		fmt.Fprintf(w, "Output directory: %s\n", c.config.OutputDir)
	}
	fmt.Fprintln(w)
}
