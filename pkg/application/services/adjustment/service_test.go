package adjustment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/application/services/planner"
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/services"
	"github.com/vsinha/rebalance/pkg/infrastructure/events"
	testhelpers "github.com/vsinha/rebalance/pkg/infrastructure/testing"
)

type countingStrategy struct {
	inner planner.Strategy
	calls int
}

func (s *countingStrategy) Name() string { return s.inner.Name() }

func (s *countingStrategy) Plan(ctx context.Context, in planner.Input) ([]entities.Candidate, error) {
	s.calls++
	return s.inner.Plan(ctx, in)
}

type failingRepository struct{}

func (failingRepository) GetPlanRows(context.Context, entities.PlanDate, entities.PlanDate) ([]entities.PlanRow, error) {
	return nil, errors.New("connection refused")
}

type recordingSink struct {
	archived []*dto.AdjustmentResult
	observed []*dto.AdjustmentResult
	err      error
}

func (r *recordingSink) Archive(_ context.Context, result *dto.AdjustmentResult) error {
	r.archived = append(r.archived, result)
	return r.err
}

func (r *recordingSink) ObserveRun(result *dto.AdjustmentResult) {
	r.observed = append(r.observed, result)
}

func assemblyConfig() Config {
	classA, classB, forbidden := testhelpers.AssemblyRoutingRules()
	return Config{
		Capacity: testhelpers.AssemblyCapacityTable(),
		Rules: services.RoutingRules{
			ClassAPatterns:       classA,
			ClassBPatterns:       classB,
			ClassBForbiddenLines: forbidden,
		},
	}
}

func fixedClock() Option {
	start := time.Date(2026, 1, 21, 8, 0, 0, 0, time.UTC)
	return WithClock(func() time.Time { return start }, func() string { return "run-1" })
}

func newAssemblyService(t *testing.T, plan *planner.Planner, opts ...Option) *Service {
	t.Helper()
	if plan == nil {
		plan = planner.NewPlanner(nil, planner.NewFallbackPlanner(nil), nil)
	}
	opts = append([]Option{fixedClock()}, opts...)
	svc, err := NewService(assemblyConfig(), testhelpers.BuildAssemblyRepository(), plan, opts...)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

func assemblyRequest() dto.AdjustmentRequest {
	return dto.AdjustmentRequest{Date: testhelpers.AssemblyTargetDate, Line: testhelpers.AssemblyTargetLine}
}

func TestService_Run_Reduce(t *testing.T) {
	svc := newAssemblyService(t, nil)

	result, err := svc.Run(context.Background(), assemblyRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RunID != "run-1" {
		t.Errorf("Expected run id run-1, got %s", result.RunID)
	}
	if result.Metrics.CurrentTotal != 3000 {
		t.Errorf("Expected current total 3000, got %d", result.Metrics.CurrentTotal)
	}
	// 3300 * 0.81 = 2673, rounded to 2700
	if result.Metrics.TargetQty != 2700 {
		t.Errorf("Expected target qty 2700, got %d", result.Metrics.TargetQty)
	}
	if result.Metrics.NeedQty != 300 {
		t.Errorf("Expected need 300, got %d", result.Metrics.NeedQty)
	}
	if result.Strategy != "fallback" {
		t.Errorf("Expected fallback strategy, got %s", result.Strategy)
	}
	if len(result.Outcome.Accepted) != 1 {
		t.Fatalf("Expected 1 accepted move, got %d", len(result.Outcome.Accepted))
	}
	mv := result.Outcome.Accepted[0]
	if mv.Item != "T6-ALPHA" || mv.Qty != 300 || mv.To.String() != "2026-01-21_ASSY3" {
		t.Errorf("Unexpected move: %+v", mv)
	}
	if result.Metrics.AchievedQty != 300 || !result.Metrics.AchievementRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected full achievement, got %d (%s)", result.Metrics.AchievedQty, result.Metrics.AchievementRate)
	}
	if result.Status != dto.StatusComplete {
		t.Errorf("Expected status complete, got %s", result.Status)
	}
	if len(result.Profiles) != 4 || len(result.MovableItems) != 3 {
		t.Errorf("Expected 4 profiles and 3 movable items, got %d and %d", len(result.Profiles), len(result.MovableItems))
	}
	if len(result.Ledger) != 9 {
		t.Errorf("Expected 9 ledger buckets, got %d", len(result.Ledger))
	}
}

func TestService_Run_NoActionNeeded(t *testing.T) {
	fallback := &countingStrategy{inner: planner.NewFallbackPlanner(nil)}
	svc := newAssemblyService(t, planner.NewPlanner(nil, fallback, nil))

	req := assemblyRequest()
	full := decimal.NewFromInt(1)
	req.TargetUtilization = &full

	result, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Metrics.TargetQty != 3300 {
		t.Errorf("Expected target qty 3300, got %d", result.Metrics.TargetQty)
	}
	if result.Metrics.NeedQty != 0 {
		t.Errorf("Expected need 0, got %d", result.Metrics.NeedQty)
	}
	if result.Status != dto.StatusNoActionNeeded {
		t.Errorf("Expected no_action_needed, got %s", result.Status)
	}
	if len(result.Outcome.Accepted) != 0 {
		t.Errorf("Expected no accepted moves, got %d", len(result.Outcome.Accepted))
	}
	if !result.Metrics.AchievementRate.IsZero() {
		t.Errorf("Expected zero achievement rate, got %s", result.Metrics.AchievementRate)
	}
	if fallback.calls != 0 {
		t.Errorf("Expected planner not to be invoked, got %d calls", fallback.calls)
	}
}

func TestService_Run_SampleMode(t *testing.T) {
	tests := []struct {
		name           string
		sample         entities.Quantity
		expectNeed     entities.Quantity
		expectAchieved entities.Quantity
		expectAccepted int
		expectStatus   dto.RunStatus
	}{
		{name: "fits on other lines", sample: 500, expectNeed: 800, expectAchieved: 800, expectAccepted: 2, expectStatus: dto.StatusComplete},
		{name: "partially absorbed", sample: 1500, expectNeed: 1800, expectAchieved: 1500, expectAccepted: 5, expectStatus: dto.StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newAssemblyService(t, nil)
			req := assemblyRequest()
			req.SampleQty = tt.sample

			result, err := svc.Run(context.Background(), req)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if result.Metrics.NeedQty != tt.expectNeed {
				t.Errorf("Expected need %d, got %d", tt.expectNeed, result.Metrics.NeedQty)
			}
			if result.Metrics.AchievedQty != tt.expectAchieved {
				t.Errorf("Expected achieved %d, got %d", tt.expectAchieved, result.Metrics.AchievedQty)
			}
			if len(result.Outcome.Accepted) != tt.expectAccepted {
				t.Errorf("Expected %d accepted moves, got %d", tt.expectAccepted, len(result.Outcome.Accepted))
			}
			if result.Status != tt.expectStatus {
				t.Errorf("Expected status %s, got %s", tt.expectStatus, result.Status)
			}
			for _, mv := range result.Outcome.Accepted {
				if mv.From != result.Target {
					t.Errorf("Expected move from target bucket, got %s", mv.From)
				}
			}
		})
	}
}

func TestService_Run_MalformedSuggestionFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Sure! Here is the plan: move some T6 units to ASSY3."))
	}))
	defer server.Close()

	suggestion := planner.NewSuggestionPlanner(planner.SuggestionConfig{URL: server.URL, Timeout: time.Second}, server.Client(), nil)
	svc := newAssemblyService(t, planner.NewPlanner(suggestion, planner.NewFallbackPlanner(nil), nil))

	req := assemblyRequest()
	req.PreferSuggestion = true
	result, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Strategy != "fallback" {
		t.Errorf("Expected fallback strategy, got %s", result.Strategy)
	}
	if result.FallbackReason == "" {
		t.Error("Expected a fallback reason")
	}
	if len(result.Outcome.Accepted) == 0 {
		t.Error("Expected accepted moves from the fallback plan")
	}
}

func TestService_Run_SuggestionCandidatesAreValidated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"moves":[
			{"item":"A2XX-BETA","qty":200,"from":"2026-01-21_ASSY1","to":"2026-01-21_ASSY3","reason":"roomiest line"},
			{"item":"T6-ALPHA","qty":300,"from":"2026-01-21_ASSY1","to":"2026-01-21_ASSY3","reason":"family allows it"}
		]}`))
	}))
	defer server.Close()

	suggestion := planner.NewSuggestionPlanner(planner.SuggestionConfig{URL: server.URL, Timeout: time.Second}, server.Client(), nil)
	svc := newAssemblyService(t, planner.NewPlanner(suggestion, planner.NewFallbackPlanner(nil), nil))

	req := assemblyRequest()
	req.PreferSuggestion = true
	result, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Strategy != "suggestion" {
		t.Errorf("Expected suggestion strategy, got %s", result.Strategy)
	}
	if len(result.Outcome.Accepted) != 1 || result.Outcome.Accepted[0].Item != "T6-ALPHA" {
		t.Errorf("Expected only T6-ALPHA accepted, got %+v", result.Outcome.Accepted)
	}
	if result.Outcome.CountBySeverity(entities.SeverityHard) != 1 {
		t.Errorf("Expected 1 hard violation, got %+v", result.Outcome.Violations)
	}
}

func TestService_Run_ResolvesTargetLine(t *testing.T) {
	tests := []struct {
		name       string
		familyHint string
		expected   entities.Line
	}{
		{name: "largest committed total", expected: "ASSY2"},
		{name: "class a hint", familyHint: "ClassA", expected: "ASSY1"},
		{name: "class b hint", familyHint: "classb", expected: "ASSY1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newAssemblyService(t, nil)
			result, err := svc.Run(context.Background(), dto.AdjustmentRequest{
				Date:       testhelpers.AssemblyTargetDate,
				FamilyHint: tt.familyHint,
			})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if result.Target.Line != tt.expected {
				t.Errorf("Expected target line %s, got %s", tt.expected, result.Target.Line)
			}
		})
	}
}

func TestService_Run_NormalizesRequestDate(t *testing.T) {
	svc := newAssemblyService(t, nil)
	result, err := svc.Run(context.Background(), dto.AdjustmentRequest{
		Date: " " + testhelpers.AssemblyTargetDate + " ",
		Line: " ASSY1",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	expected := entities.BucketKey{Date: testhelpers.AssemblyTargetDate, Line: "ASSY1"}
	if result.Target != expected {
		t.Errorf("Expected target %s, got %s", expected, result.Target)
	}
	if result.Metrics.CurrentTotal != 3000 || len(result.Outcome.Accepted) != 1 {
		t.Errorf("Expected the ASSY1 run to relieve 3000 with one move, got %d and %+v",
			result.Metrics.CurrentTotal, result.Outcome.Accepted)
	}
}

func TestService_Run_ContractErrors(t *testing.T) {
	tests := []struct {
		name    string
		repo    bool
		req     dto.AdjustmentRequest
		isError error
	}{
		{name: "invalid date", req: dto.AdjustmentRequest{Date: "21/01/2026"}, isError: dto.ErrInvalidRequest},
		{name: "unknown family", req: dto.AdjustmentRequest{Date: "2026-01-21", FamilyHint: "ClassZ"}, isError: dto.ErrInvalidRequest},
		{name: "unknown line", req: dto.AdjustmentRequest{Date: "2026-01-21", Line: "ASSY9"}, isError: entities.ErrTargetUnresolved},
		{name: "nothing committed", req: dto.AdjustmentRequest{Date: "2026-03-10"}, isError: entities.ErrTargetUnresolved},
		{name: "empty bucket", req: dto.AdjustmentRequest{Date: "2026-03-10", Line: "ASSY1"}, isError: entities.ErrNoPlan},
		{name: "snapshot unavailable", repo: true, req: assemblyRequest(), isError: entities.ErrSnapshotUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var svc *Service
			if tt.repo {
				var err error
				svc, err = NewService(assemblyConfig(), failingRepository{}, planner.NewPlanner(nil, planner.NewFallbackPlanner(nil), nil))
				if err != nil {
					t.Fatalf("Failed to create service: %v", err)
				}
			} else {
				svc = newAssemblyService(t, nil)
			}

			result, err := svc.Run(context.Background(), tt.req)
			if !errors.Is(err, tt.isError) {
				t.Fatalf("Expected %v, got %v", tt.isError, err)
			}
			if result != nil {
				t.Errorf("Expected no result, got %+v", result)
			}
		})
	}
}

func TestService_Run_SideEffects(t *testing.T) {
	store := events.NewInMemoryEventStore(0, nil)
	sink := &recordingSink{err: errors.New("bucket missing")}
	svc := newAssemblyService(t, nil, WithEventStore(store), WithArchiver(sink), WithRecorder(sink))

	result, err := svc.Run(context.Background(), assemblyRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != dto.StatusComplete {
		t.Errorf("Expected archive failure not to change status, got %s", result.Status)
	}

	runEvents, err := store.ReadEvents("run-1", 1)
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	expected := []string{events.RunStartedEvent, events.MoveAcceptedEvent, events.RunCompletedEvent}
	if len(runEvents) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(runEvents))
	}
	for i, want := range expected {
		if runEvents[i].Type() != want {
			t.Errorf("Event %d: expected %s, got %s", i, want, runEvents[i].Type())
		}
	}

	if len(sink.archived) != 1 || len(sink.observed) != 1 {
		t.Errorf("Expected one archive and one observation, got %d and %d", len(sink.archived), len(sink.observed))
	}
}

func TestService_Run_BoundsEventHistory(t *testing.T) {
	store := events.NewInMemoryEventStore(5, nil)
	runs := 0
	start := time.Date(2026, 1, 21, 8, 0, 0, 0, time.UTC)
	svc := newAssemblyService(t, nil, WithEventStore(store), WithClock(
		func() time.Time { return start },
		func() string { runs++; return fmt.Sprintf("run-%d", runs) },
	))

	for i := 0; i < 200; i++ {
		if _, err := svc.Run(context.Background(), assemblyRequest()); err != nil {
			t.Fatalf("Run %d failed: %v", i+1, err)
		}
	}

	if got := store.RetainedRuns(); got != 5 {
		t.Errorf("Expected 5 retained runs, got %d", got)
	}
	oldest, _ := store.ReadEvents("run-195", 1)
	if len(oldest) != 0 {
		t.Errorf("Expected run-195 to be evicted, got %d events", len(oldest))
	}
	latest, _ := store.ReadEvents("run-200", 1)
	if len(latest) != 3 {
		t.Errorf("Expected 3 events for run-200, got %d", len(latest))
	}
}

func TestService_Run_Deterministic(t *testing.T) {
	req := assemblyRequest()
	req.SampleQty = 1500

	first, err := newAssemblyService(t, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := newAssemblyService(t, nil).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.Outcome, second.Outcome) {
		t.Errorf("Expected identical outcomes:\n%+v\n%+v", first.Outcome, second.Outcome)
	}
	if !reflect.DeepEqual(first.Candidates, second.Candidates) {
		t.Error("Expected identical candidate lists")
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		current, max entities.Quantity
		expected     string
	}{
		{current: 3300, max: 3300, expected: "full"},
		{current: 3000, max: 3300, expected: "tight"},
		{current: 2900, max: 3300, expected: "open"},
	}

	for _, tt := range tests {
		entry := entities.CapacityLedgerEntry{Max: tt.max, Current: tt.current, Remaining: tt.max - tt.current}
		if got := Badge(entry); got != tt.expected {
			t.Errorf("Badge(%d/%d): expected %s, got %s", tt.current, tt.max, tt.expected, got)
		}
	}
}
