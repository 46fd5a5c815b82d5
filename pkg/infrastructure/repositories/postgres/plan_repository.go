// Package postgres reads plan snapshots from a Postgres table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/repositories"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Config describes the plan database connection and source table
type Config struct {
	URL             string
	Table           string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Validate checks the connection settings and the table name
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("postgres url is required")
	}
	if !identifierPattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	if c.PingTimeout <= 0 {
		return errors.New("postgres ping timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("postgres max open conns must be >= 1")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("postgres max idle conns must be between 0 and max open conns")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("postgres conn max lifetime must be >= 0")
	}
	return nil
}

// Open connects through the pgx driver and pings the server
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return db, nil
}

// PlanRepository reads plan rows with one windowed query per run
type PlanRepository struct {
	db    *sql.DB
	query string
}

var _ repositories.PlanRepository = (*PlanRepository)(nil)

// NewPlanRepository creates a repository over table. The table name is validated
// because it cannot be passed as a query parameter.
func NewPlanRepository(db *sql.DB, table string) (*PlanRepository, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	query, err := windowQuery(table)
	if err != nil {
		return nil, err
	}
	return &PlanRepository{db: db, query: query}, nil
}

func windowQuery(table string) (string, error) {
	if !identifierPattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return fmt.Sprintf(`SELECT plan_date, line, item, committed_qty, demand_qty, lot_size, is_workday
FROM %s
WHERE plan_date BETWEEN $1 AND $2
ORDER BY plan_date, line, item`, table), nil
}

// GetPlanRows returns rows dated within [from, to]
func (r *PlanRepository) GetPlanRows(ctx context.Context, from, to entities.PlanDate) ([]entities.PlanRow, error) {
	rows, err := r.db.QueryContext(ctx, r.query, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query plan rows: %w", err)
	}
	defer rows.Close()

	result := make([]entities.PlanRow, 0)
	for rows.Next() {
		var (
			date                       time.Time
			line, item                 string
			committed, demand, lotSize int64
			workday                    sql.NullBool
		)
		if err := rows.Scan(&date, &line, &item, &committed, &demand, &lotSize, &workday); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		result = append(result, entities.PlanRow{
			Date:         entities.NewPlanDate(date),
			Line:         entities.Line(line),
			Item:         entities.ItemName(item),
			CommittedQty: entities.Quantity(committed),
			DemandQty:    entities.Quantity(demand),
			LotSize:      entities.Quantity(lotSize),
			// a missing flag never makes a bucket a valid destination
			IsWorkday: workday.Valid && workday.Bool,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan rows: %w", err)
	}
	return result, nil
}
