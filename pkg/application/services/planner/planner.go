package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// Proposal is the candidate list of one run and the strategy that produced it
type Proposal struct {
	Strategy       string
	FallbackReason string
	Candidates     []entities.Candidate
}

// Planner picks one strategy per run. The suggestion strategy is tried first when
// configured and requested; any error or empty answer switches the whole run to the
// fallback strategy. Strategies are never mixed.
type Planner struct {
	suggestion Strategy
	fallback   Strategy
	logger     *slog.Logger
}

// NewPlanner creates a planner. suggestion may be nil.
func NewPlanner(suggestion, fallback Strategy, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{suggestion: suggestion, fallback: fallback, logger: logger}
}

// HasSuggestion reports whether an external strategy is configured
func (p *Planner) HasSuggestion() bool {
	return p.suggestion != nil
}

// Plan returns the candidate proposal for the run
func (p *Planner) Plan(ctx context.Context, in Input, preferSuggestion bool) (*Proposal, error) {
	if p.fallback == nil {
		return nil, fmt.Errorf("fallback strategy is required")
	}

	var fallbackReason string
	if preferSuggestion && p.suggestion != nil {
		candidates, err := p.suggestion.Plan(ctx, in)
		switch {
		case err != nil:
			fallbackReason = err.Error()
		case len(candidates) == 0:
			fallbackReason = ErrNoSuggestion.Error()
		default:
			return &Proposal{Strategy: p.suggestion.Name(), Candidates: candidates}, nil
		}
		p.logger.Warn("Suggestion unavailable, using fallback",
			"strategy", p.suggestion.Name(),
			"reason", fallbackReason)
	}

	candidates, err := p.fallback.Plan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s strategy: %w", p.fallback.Name(), err)
	}
	return &Proposal{
		Strategy:       p.fallback.Name(),
		FallbackReason: fallbackReason,
		Candidates:     candidates,
	}, nil
}
