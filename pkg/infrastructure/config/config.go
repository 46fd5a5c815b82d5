// Package config loads the rebalance configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/services"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "REBALANCE_"

// Config represents the complete rebalance configuration
type Config struct {
	Lines      []LineConfig     `yaml:"lines"`
	Routing    RoutingConfig    `yaml:"routing"`
	Planning   PlanningConfig   `yaml:"planning"`
	Suggestion SuggestionConfig `yaml:"suggestion"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Events     EventsConfig     `yaml:"events"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// LineConfig is one row of the static capacity table. Order is significant.
type LineConfig struct {
	Name        string `yaml:"name"`
	MaxDailyQty int64  `yaml:"max_daily_qty"`
}

// RoutingConfig names the product families
type RoutingConfig struct {
	ClassA FamilyConfig `yaml:"class_a"`
	ClassB FamilyConfig `yaml:"class_b"`
}

// FamilyConfig matches item names by case-insensitive substring.
// ForbiddenLines is only honored for class_b.
type FamilyConfig struct {
	Patterns       []string `yaml:"patterns"`
	ForbiddenLines []string `yaml:"forbidden_lines"`
}

// PlanningConfig tunes target derivation and the ledger horizon
type PlanningConfig struct {
	TargetUtilization float64 `yaml:"target_utilization"`
	TargetRounding    int64   `yaml:"target_rounding"`
	LookaheadWorkdays int     `yaml:"lookahead_workdays"`
	WindowDays        int     `yaml:"window_days"`
	// AnalysisDate pins the reported analysis date (YYYY-MM-DD); empty means the target date
	AnalysisDate string `yaml:"analysis_date"`
}

// SuggestionConfig configures the optional external suggestion service
type SuggestionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxItems int           `yaml:"max_items"`
}

// PostgresConfig configures the plan snapshot database
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	Table           string        `yaml:"table"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ArchiveConfig configures the result archive bucket
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// EventsConfig configures event forwarding
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	// RetainedRuns bounds how many runs keep their event history in memory
	RetainedRuns int `yaml:"retained_runs"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with the three assembly lines and their families
func DefaultConfig() *Config {
	return &Config{
		Lines: []LineConfig{
			{Name: "ASSY1", MaxDailyQty: 3300},
			{Name: "ASSY2", MaxDailyQty: 3700},
			{Name: "ASSY3", MaxDailyQty: 3600},
		},
		Routing: RoutingConfig{
			ClassA: FamilyConfig{Patterns: []string{"T6"}},
			ClassB: FamilyConfig{Patterns: []string{"A2XX"}, ForbiddenLines: []string{"ASSY3"}},
		},
		Planning: PlanningConfig{
			TargetUtilization: 0.81,
			TargetRounding:    100,
			LookaheadWorkdays: entities.DefaultLookaheadWorkdays,
			WindowDays:        10,
		},
		Suggestion: SuggestionConfig{
			Timeout:  20 * time.Second,
			MaxItems: 80,
		},
		Postgres: PostgresConfig{
			Table:           "production_plan",
			PingTimeout:     2 * time.Second,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Bucket: "rebalance-runs",
		},
		Events: EventsConfig{
			Subject:      "rebalance.runs.completed",
			RetainedRuns: 100,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path (optional) and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides scalar settings from REBALANCE_* variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"ANALYSIS_DATE":      &c.Planning.AnalysisDate,
		"SUGGESTION_URL":     &c.Suggestion.URL,
		"POSTGRES_URL":       &c.Postgres.URL,
		"POSTGRES_TABLE":     &c.Postgres.Table,
		"ARCHIVE_ENDPOINT":   &c.Archive.Endpoint,
		"ARCHIVE_ACCESS_KEY": &c.Archive.AccessKey,
		"ARCHIVE_SECRET_KEY": &c.Archive.SecretKey,
		"ARCHIVE_BUCKET":     &c.Archive.Bucket,
		"NATS_URL":           &c.Events.NATSURL,
		"EVENTS_SUBJECT":     &c.Events.Subject,
		"HTTP_ADDR":          &c.HTTP.Addr,
	}
	for key, target := range strs {
		if v, ok := get(key); ok {
			*target = v
		}
	}

	if v, ok := get("TARGET_UTILIZATION"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTARGET_UTILIZATION: %w", EnvPrefix, err)
		}
		c.Planning.TargetUtilization = f
	}
	if v, ok := get("SUGGESTION_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSUGGESTION_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Suggestion.Timeout = d
	}
	if v, ok := get("SUGGESTION_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSUGGESTION_ENABLED: %w", EnvPrefix, err)
		}
		c.Suggestion.Enabled = b
	}
	if v, ok := get("EVENTS_RETAINED_RUNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sEVENTS_RETAINED_RUNS: %w", EnvPrefix, err)
		}
		c.Events.RetainedRuns = n
	}
	if v, ok := get("ARCHIVE_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sARCHIVE_USE_SSL: %w", EnvPrefix, err)
		}
		c.Archive.UseSSL = b
	}
	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Lines) == 0 {
		return fmt.Errorf("lines: at least one line is required")
	}
	if _, err := c.CapacityTable(); err != nil {
		return fmt.Errorf("lines: %w", err)
	}
	if u := c.Planning.TargetUtilization; u <= 0 || u > 1.5 {
		return fmt.Errorf("planning.target_utilization must be in (0, 1.5], got %v", u)
	}
	if c.Planning.TargetRounding <= 0 {
		return fmt.Errorf("planning.target_rounding must be positive")
	}
	if c.Planning.LookaheadWorkdays <= 0 {
		return fmt.Errorf("planning.lookahead_workdays must be positive")
	}
	if c.Planning.WindowDays <= 0 {
		return fmt.Errorf("planning.window_days must be positive")
	}
	if c.Planning.AnalysisDate != "" {
		if _, err := entities.ParsePlanDate(c.Planning.AnalysisDate); err != nil {
			return fmt.Errorf("planning.analysis_date: %w", err)
		}
	}
	if c.Suggestion.Enabled && c.Suggestion.URL == "" {
		return fmt.Errorf("suggestion.url is required when suggestion is enabled")
	}
	if c.Suggestion.Timeout < 0 {
		return fmt.Errorf("suggestion.timeout must be non-negative")
	}
	if c.Events.RetainedRuns <= 0 {
		return fmt.Errorf("events.retained_runs must be positive")
	}
	if strings.Contains(c.Archive.Endpoint, "://") {
		return fmt.Errorf("archive.endpoint must not include scheme: %q", c.Archive.Endpoint)
	}
	return nil
}

// CapacityTable builds the ordered line capacity table
func (c *Config) CapacityTable() (*entities.CapacityTable, error) {
	entries := make([]entities.LineCapacity, 0, len(c.Lines))
	for _, line := range c.Lines {
		entries = append(entries, entities.LineCapacity{
			Line:        entities.Line(strings.TrimSpace(line.Name)),
			MaxDailyQty: entities.Quantity(line.MaxDailyQty),
		})
	}
	return entities.NewCapacityTable(entries)
}

// RoutingRules returns the classifier rules
func (c *Config) RoutingRules() services.RoutingRules {
	forbidden := make([]entities.Line, 0, len(c.Routing.ClassB.ForbiddenLines))
	for _, line := range c.Routing.ClassB.ForbiddenLines {
		forbidden = append(forbidden, entities.Line(line))
	}
	return services.RoutingRules{
		ClassAPatterns:       c.Routing.ClassA.Patterns,
		ClassBPatterns:       c.Routing.ClassB.Patterns,
		ClassBForbiddenLines: forbidden,
	}
}

// Utilization returns the default target utilization as a decimal
func (c *Config) Utilization() decimal.Decimal {
	return decimal.NewFromFloat(c.Planning.TargetUtilization)
}
