package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gramseva/mgnrega-tracker/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it for
// unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS districts (
	district_code TEXT PRIMARY KEY,
	district_name TEXT NOT NULL,
	state_name    TEXT NOT NULL,
	state_code    TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS performance_data (
	district_code    TEXT NOT NULL,
	month            INTEGER NOT NULL,
	year             INTEGER NOT NULL,
	total_households BIGINT NOT NULL DEFAULT 0,
	total_persons    BIGINT NOT NULL DEFAULT 0,
	total_work_days  BIGINT NOT NULL DEFAULT 0,
	total_wages_paid DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_material_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_expenditure   DOUBLE PRECISION NOT NULL DEFAULT 0,
	works_completed  BIGINT NOT NULL DEFAULT 0,
	works_ongoing    BIGINT NOT NULL DEFAULT 0,
	works_sanctioned BIGINT NOT NULL DEFAULT 0,
	data_source      TEXT NOT NULL DEFAULT 'api',
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (district_code, month, year)
);

CREATE TABLE IF NOT EXISTS api_cache (
	id         TEXT PRIMARY KEY,
	endpoint   TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_performance_district ON performance_data(district_code);
CREATE INDEX IF NOT EXISTS idx_performance_month_year ON performance_data(month, year);
CREATE INDEX IF NOT EXISTS idx_api_cache_endpoint ON api_cache(endpoint);
CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertDistricts(ctx context.Context, districts []model.District) error {
	for _, d := range districts {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO districts (district_code, district_name, state_name, state_code)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (district_code) DO UPDATE SET
				district_name = excluded.district_name,
				state_name = excluded.state_name,
				state_code = excluded.state_code`,
			d.Code, d.Name, d.StateName, d.StateCode,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert district %s", d.Code)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertPerformance(ctx context.Context, records []model.PerformanceRecord) error {
	for _, r := range records {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO performance_data
				(district_code, month, year, total_households, total_persons, total_work_days,
				 total_wages_paid, total_material_cost, total_expenditure, works_completed,
				 works_ongoing, works_sanctioned, data_source, last_updated)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
			 ON CONFLICT (district_code, month, year) DO UPDATE SET
				total_households = excluded.total_households,
				total_persons = excluded.total_persons,
				total_work_days = excluded.total_work_days,
				total_wages_paid = excluded.total_wages_paid,
				total_material_cost = excluded.total_material_cost,
				total_expenditure = excluded.total_expenditure,
				works_completed = excluded.works_completed,
				works_ongoing = excluded.works_ongoing,
				works_sanctioned = excluded.works_sanctioned,
				data_source = excluded.data_source,
				last_updated = excluded.last_updated`,
			r.DistrictCode, r.Month, r.Year, r.Households, r.Persons, r.WorkDays,
			r.WagesPaid, r.MaterialCost, r.Expenditure, r.WorksCompleted,
			r.WorksOngoing, r.WorksSanctioned, string(r.Source),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert performance %s %d/%d", r.DistrictCode, r.Month, r.Year)
		}
	}
	return nil
}

func (s *PostgresStore) ListDistricts(ctx context.Context) ([]model.District, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT district_code, district_name, state_name, state_code, created_at
		 FROM districts ORDER BY district_name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list districts")
	}
	defer rows.Close()

	var districts []model.District
	for rows.Next() {
		var d model.District
		if err := rows.Scan(&d.Code, &d.Name, &d.StateName, &d.StateCode, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "postgres: list districts iterate")
}

func (s *PostgresStore) GetDistrict(ctx context.Context, code string) (*model.District, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT district_code, district_name, state_name, state_code, created_at
		 FROM districts WHERE district_code = $1`,
		code,
	)
	var d model.District
	err := row.Scan(&d.Code, &d.Name, &d.StateName, &d.StateCode, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get district %s", code)
	}
	return &d, nil
}

func (s *PostgresStore) MonthlyPerformance(ctx context.Context, code string, year int) ([]model.PerformanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT district_code, month, year, total_households, total_persons, total_work_days,
			total_wages_paid, total_material_cost, total_expenditure, works_completed,
			works_ongoing, works_sanctioned, data_source, last_updated
		 FROM performance_data
		 WHERE district_code = $1 AND year = $2
		 ORDER BY month ASC`,
		code, year,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: monthly performance %s", code)
	}
	defer rows.Close()

	var records []model.PerformanceRecord
	for rows.Next() {
		var r model.PerformanceRecord
		var source string
		err := rows.Scan(&r.DistrictCode, &r.Month, &r.Year, &r.Households, &r.Persons,
			&r.WorkDays, &r.WagesPaid, &r.MaterialCost, &r.Expenditure, &r.WorksCompleted,
			&r.WorksOngoing, &r.WorksSanctioned, &source, &r.LastUpdated)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan performance")
		}
		r.Source = model.DataSource(source)
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: monthly performance iterate")
}

func (s *PostgresStore) SummarizeDistrict(ctx context.Context, code string, year int) (*model.Summary, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT SUM(total_households), SUM(total_persons), SUM(total_work_days),
			SUM(total_wages_paid), SUM(total_expenditure), SUM(works_completed),
			AVG(total_households), AVG(total_persons)
		 FROM performance_data
		 WHERE district_code = $1 AND year = $2`,
		code, year,
	)
	sum, err := scanSummary(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: summarize district %s", code)
	}
	return sum, nil
}

func (s *PostgresStore) CompareDistricts(ctx context.Context, codes []string, year int) ([]model.ComparisonRow, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(codes))
	args := make([]any, 0, len(codes)+1)
	args = append(args, year)
	for i, c := range codes {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, c)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT d.district_code, d.district_name,
			SUM(p.total_households), SUM(p.total_persons), SUM(p.total_work_days),
			SUM(p.total_wages_paid), SUM(p.works_completed)
		 FROM districts d
		 LEFT JOIN performance_data p
			ON p.district_code = d.district_code AND p.year = $1
		 WHERE d.district_code IN (`+strings.Join(placeholders, ", ")+`)
		 GROUP BY d.district_code, d.district_name
		 ORDER BY SUM(p.total_households) DESC NULLS LAST`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: compare districts")
	}
	defer rows.Close()

	var result []model.ComparisonRow
	for rows.Next() {
		var cr model.ComparisonRow
		err := rows.Scan(&cr.DistrictCode, &cr.DistrictName,
			&cr.Households, &cr.Persons, &cr.WorkDays, &cr.WagesPaid, &cr.WorksCompleted)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparison row")
		}
		result = append(result, cr)
	}
	return result, eris.Wrap(rows.Err(), "postgres: compare districts iterate")
}

func (s *PostgresStore) StateSummary(ctx context.Context, year int) ([]model.StateSummaryRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.state_name, COUNT(DISTINCT d.district_code),
			SUM(p.total_households), SUM(p.total_persons), SUM(p.total_work_days),
			SUM(p.total_wages_paid), SUM(p.works_completed)
		 FROM districts d
		 LEFT JOIN performance_data p
			ON p.district_code = d.district_code AND p.year = $1
		 GROUP BY d.state_name
		 ORDER BY SUM(p.total_households) DESC NULLS LAST`,
		year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: state summary")
	}
	defer rows.Close()

	var result []model.StateSummaryRow
	for rows.Next() {
		var sr model.StateSummaryRow
		err := rows.Scan(&sr.StateName, &sr.TotalDistricts,
			&sr.Households, &sr.Persons, &sr.WorkDays, &sr.WagesPaid, &sr.WorksCompleted)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan state summary row")
		}
		result = append(result, sr)
	}
	return result, eris.Wrap(rows.Err(), "postgres: state summary iterate")
}

func (s *PostgresStore) GetCache(ctx context.Context, key string) ([]byte, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM api_cache
		 WHERE endpoint = $1 AND expires_at > now()
		 ORDER BY created_at DESC LIMIT 1`,
		key,
	)
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cache %s", key)
	}
	return data, nil
}

func (s *PostgresStore) PutCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_cache (id, endpoint, data, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), key, payload, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put cache %s", key)
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}
