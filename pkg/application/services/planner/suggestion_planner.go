package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

const (
	// DefaultSuggestionTimeout bounds one suggestion call
	DefaultSuggestionTimeout = 20 * time.Second
	// DefaultSuggestionMaxItems caps the items sent in one fact document
	DefaultSuggestionMaxItems = 80

	maxSuggestionResponseSize = 1024 * 1024
)

// ErrNoSuggestion means the service answered with a well-formed but empty move list
var ErrNoSuggestion = errors.New("suggestion service returned no moves")

// SuggestionConfig configures the external suggestion adapter
type SuggestionConfig struct {
	URL      string
	Timeout  time.Duration
	MaxItems int
}

// SuggestionPlanner asks an external service for candidate moves.
// Any failure is returned as an error so the caller can fall back.
type SuggestionPlanner struct {
	config     SuggestionConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSuggestionPlanner creates the adapter. A nil client uses http.DefaultClient.
func NewSuggestionPlanner(config SuggestionConfig, httpClient *http.Client, logger *slog.Logger) *SuggestionPlanner {
	if config.Timeout <= 0 {
		config.Timeout = DefaultSuggestionTimeout
	}
	if config.MaxItems <= 0 {
		config.MaxItems = DefaultSuggestionMaxItems
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SuggestionPlanner{config: config, httpClient: httpClient, logger: logger}
}

// Name returns the strategy name used in reports
func (p *SuggestionPlanner) Name() string {
	return "suggestion"
}

// FactDocument is the request body sent to the suggestion service
type FactDocument struct {
	Mode              Mode                                     `json:"mode"`
	Target            FactTarget                               `json:"target"`
	CapacityRemaining map[entities.BucketKey]entities.Quantity `json:"capacity_remaining"`
	Items             []FactItem                               `json:"items"`
	From              string                                   `json:"from"`
}

// FactTarget describes the bucket being relieved
type FactTarget struct {
	Date    entities.PlanDate `json:"date"`
	Line    entities.Line     `json:"line"`
	NeedQty entities.Quantity `json:"need_qty"`
}

// FactItem is one movable item as the service sees it
type FactItem struct {
	Name       entities.ItemName `json:"name"`
	LotSize    entities.Quantity `json:"lot_size"`
	MaxMovable entities.Quantity `json:"max_movable"`
	ClassFlags ClassFlags        `json:"class_flags"`
	Constraint string            `json:"constraint"`
	Priority   string            `json:"priority"`
}

// ClassFlags mark family membership of a fact item
type ClassFlags struct {
	ClassA bool `json:"class_a"`
	ClassB bool `json:"class_b"`
}

type suggestionResponse struct {
	Moves *[]suggestedMove `json:"moves"`
}

type suggestedMove struct {
	Item   entities.ItemName `json:"item"`
	Qty    entities.Quantity `json:"qty"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Reason string            `json:"reason"`
}

// BuildFactDocument serializes the run facts the service plans from
func (p *SuggestionPlanner) BuildFactDocument(in Input) FactDocument {
	remaining := make(map[entities.BucketKey]entities.Quantity, in.Ledger.Len())
	for _, entry := range in.Ledger.Entries() {
		remaining[entry.Bucket] = entry.Remaining
	}

	items := in.Items
	if len(items) > p.config.MaxItems {
		items = items[:p.config.MaxItems]
	}
	facts := make([]FactItem, 0, len(items))
	for _, item := range items {
		facts = append(facts, FactItem{
			Name:       item.Item,
			LotSize:    item.LotSize,
			MaxMovable: item.MaxMovable,
			ClassFlags: ClassFlags{
				ClassA: item.Class == entities.ClassA,
				ClassB: item.Class == entities.ClassB,
			},
			Constraint: item.Constraint,
			Priority:   item.Priority,
		})
	}

	return FactDocument{
		Mode: in.Mode,
		Target: FactTarget{
			Date:    in.Context.Target.Date,
			Line:    in.Context.Target.Line,
			NeedQty: in.NeedQty,
		},
		CapacityRemaining: remaining,
		Items:             facts,
		From:              in.Context.Target.String(),
	}
}

// Plan posts the fact document and decodes the returned move list
func (p *SuggestionPlanner) Plan(ctx context.Context, in Input) ([]entities.Candidate, error) {
	if in.Context == nil || in.Ledger == nil {
		return nil, fmt.Errorf("suggestion planner: planning context and ledger are required")
	}
	if p.config.URL == "" {
		return nil, fmt.Errorf("suggestion service url not configured")
	}

	body, err := json.Marshal(p.BuildFactDocument(in))
	if err != nil {
		return nil, fmt.Errorf("marshal fact document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestion service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSuggestionResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read suggestion response: %w", err)
	}

	var decoded suggestionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode suggestion response: %w", err)
	}
	if decoded.Moves == nil {
		return nil, fmt.Errorf("decode suggestion response: missing moves")
	}
	if len(*decoded.Moves) == 0 {
		return nil, ErrNoSuggestion
	}

	candidates := make([]entities.Candidate, 0, len(*decoded.Moves))
	for _, mv := range *decoded.Moves {
		candidates = append(candidates, entities.Candidate{
			Item:   mv.Item,
			Qty:    mv.Qty,
			From:   mv.From,
			To:     mv.To,
			Reason: mv.Reason,
		})
	}

	p.logger.Debug("Suggestion received",
		"target", in.Context.Target.String(),
		"candidates", len(candidates),
		"elapsed", time.Since(start))

	return candidates, nil
}
