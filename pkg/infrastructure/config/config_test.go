package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rebalance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	table, err := cfg.CapacityTable()
	require.NoError(t, err)
	assert.Equal(t, []entities.Line{"ASSY1", "ASSY2", "ASSY3"}, table.Lines())
	assert.Equal(t, "0.81", cfg.Utilization().String())
	assert.Equal(t, int64(100), cfg.Planning.TargetRounding)
	assert.Equal(t, 80, cfg.Suggestion.MaxItems)
	assert.False(t, cfg.Suggestion.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
lines:
  - name: L2
    max_daily_qty: 2000
  - name: L1
    max_daily_qty: 1000
routing:
  class_a:
    patterns: [X9]
  class_b:
    patterns: [Y7, Y8]
    forbidden_lines: [L1]
planning:
  target_utilization: 0.9
  lookahead_workdays: 5
suggestion:
  enabled: true
  url: http://planner.local/suggest
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	table, err := cfg.CapacityTable()
	require.NoError(t, err)
	assert.Equal(t, []entities.Line{"L2", "L1"}, table.Lines())

	rules := cfg.RoutingRules()
	assert.Equal(t, []string{"X9"}, rules.ClassAPatterns)
	assert.Equal(t, []string{"Y7", "Y8"}, rules.ClassBPatterns)
	assert.Equal(t, []entities.Line{"L1"}, rules.ClassBForbiddenLines)

	assert.Equal(t, 5, cfg.Planning.LookaheadWorkdays)
	assert.Equal(t, int64(100), cfg.Planning.TargetRounding, "unset keys keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Suggestion.Timeout)
	assert.True(t, cfg.Suggestion.Enabled)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"REBALANCE_TARGET_UTILIZATION":   "0.75",
		"REBALANCE_SUGGESTION_URL":       "http://suggest:9000",
		"REBALANCE_SUGGESTION_ENABLED":   "true",
		"REBALANCE_NATS_URL":             "nats://broker:4222",
		"REBALANCE_HTTP_ADDR":            " :9090 ",
		"REBALANCE_EVENTS_RETAINED_RUNS": "25",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.75, cfg.Planning.TargetUtilization)
	assert.Equal(t, "http://suggest:9000", cfg.Suggestion.URL)
	assert.True(t, cfg.Suggestion.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.Events.NATSURL)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 25, cfg.Events.RetainedRuns)
}

func TestApplyEnv_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(key string) (string, bool) {
		if key == "REBALANCE_SUGGESTION_TIMEOUT" {
			return "soon", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REBALANCE_SUGGESTION_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "no lines", mutate: func(c *Config) { c.Lines = nil }, wantErr: "at least one line"},
		{name: "zero capacity", mutate: func(c *Config) { c.Lines[0].MaxDailyQty = 0 }, wantErr: "lines"},
		{name: "duplicate line", mutate: func(c *Config) { c.Lines[1].Name = "ASSY1" }, wantErr: "lines"},
		{name: "utilization zero", mutate: func(c *Config) { c.Planning.TargetUtilization = 0 }, wantErr: "target_utilization"},
		{name: "utilization too high", mutate: func(c *Config) { c.Planning.TargetUtilization = 1.6 }, wantErr: "target_utilization"},
		{name: "rounding", mutate: func(c *Config) { c.Planning.TargetRounding = 0 }, wantErr: "target_rounding"},
		{name: "lookahead", mutate: func(c *Config) { c.Planning.LookaheadWorkdays = -1 }, wantErr: "lookahead_workdays"},
		{name: "analysis date", mutate: func(c *Config) { c.Planning.AnalysisDate = "tomorrow" }, wantErr: "analysis_date"},
		{name: "suggestion without url", mutate: func(c *Config) { c.Suggestion.Enabled = true }, wantErr: "suggestion.url"},
		{name: "event retention", mutate: func(c *Config) { c.Events.RetainedRuns = 0 }, wantErr: "retained_runs"},
		{name: "archive scheme", mutate: func(c *Config) { c.Archive.Endpoint = "http://minio:9000" }, wantErr: "scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}
