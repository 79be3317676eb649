package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gramseva/mgnrega-tracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS districts (
	district_code TEXT PRIMARY KEY,
	district_name TEXT NOT NULL,
	state_name    TEXT NOT NULL,
	state_code    TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS performance_data (
	district_code    TEXT NOT NULL,
	month            INTEGER NOT NULL,
	year             INTEGER NOT NULL,
	total_households INTEGER NOT NULL DEFAULT 0,
	total_persons    INTEGER NOT NULL DEFAULT 0,
	total_work_days  INTEGER NOT NULL DEFAULT 0,
	total_wages_paid REAL NOT NULL DEFAULT 0,
	total_material_cost REAL NOT NULL DEFAULT 0,
	total_expenditure   REAL NOT NULL DEFAULT 0,
	works_completed  INTEGER NOT NULL DEFAULT 0,
	works_ongoing    INTEGER NOT NULL DEFAULT 0,
	works_sanctioned INTEGER NOT NULL DEFAULT 0,
	data_source      TEXT NOT NULL DEFAULT 'api',
	last_updated     DATETIME NOT NULL,
	PRIMARY KEY (district_code, month, year)
);

CREATE TABLE IF NOT EXISTS api_cache (
	id         TEXT PRIMARY KEY,
	endpoint   TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_performance_district ON performance_data(district_code);
CREATE INDEX IF NOT EXISTS idx_performance_month_year ON performance_data(month, year);
CREATE INDEX IF NOT EXISTS idx_api_cache_endpoint ON api_cache(endpoint);
CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertDistricts(ctx context.Context, districts []model.District) error {
	now := time.Now().UTC()
	for _, d := range districts {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO districts (district_code, district_name, state_name, state_code, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(district_code) DO UPDATE SET
				district_name = excluded.district_name,
				state_name = excluded.state_name,
				state_code = excluded.state_code`,
			d.Code, d.Name, d.StateName, d.StateCode, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert district %s", d.Code)
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertPerformance(ctx context.Context, records []model.PerformanceRecord) error {
	now := time.Now().UTC()
	for _, r := range records {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO performance_data
				(district_code, month, year, total_households, total_persons, total_work_days,
				 total_wages_paid, total_material_cost, total_expenditure, works_completed,
				 works_ongoing, works_sanctioned, data_source, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(district_code, month, year) DO UPDATE SET
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
			r.WorksOngoing, r.WorksSanctioned, string(r.Source), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert performance %s %d/%d", r.DistrictCode, r.Month, r.Year)
		}
	}
	return nil
}

func (s *SQLiteStore) ListDistricts(ctx context.Context) ([]model.District, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT district_code, district_name, state_name, state_code, created_at
		 FROM districts ORDER BY district_name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list districts")
	}
	defer rows.Close()

	var districts []model.District
	for rows.Next() {
		var d model.District
		if err := rows.Scan(&d.Code, &d.Name, &d.StateName, &d.StateCode, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan district")
		}
		districts = append(districts, d)
	}
	return districts, eris.Wrap(rows.Err(), "sqlite: list districts iterate")
}

func (s *SQLiteStore) GetDistrict(ctx context.Context, code string) (*model.District, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT district_code, district_name, state_name, state_code, created_at
		 FROM districts WHERE district_code = ?`,
		code,
	)
	var d model.District
	err := row.Scan(&d.Code, &d.Name, &d.StateName, &d.StateCode, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get district %s", code)
	}
	return &d, nil
}

func (s *SQLiteStore) MonthlyPerformance(ctx context.Context, code string, year int) ([]model.PerformanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT district_code, month, year, total_households, total_persons, total_work_days,
			total_wages_paid, total_material_cost, total_expenditure, works_completed,
			works_ongoing, works_sanctioned, data_source, last_updated
		 FROM performance_data
		 WHERE district_code = ? AND year = ?
		 ORDER BY month ASC`,
		code, year,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: monthly performance %s", code)
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
			return nil, eris.Wrap(err, "sqlite: scan performance")
		}
		r.Source = model.DataSource(source)
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: monthly performance iterate")
}

func (s *SQLiteStore) SummarizeDistrict(ctx context.Context, code string, year int) (*model.Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT SUM(total_households), SUM(total_persons), SUM(total_work_days),
			SUM(total_wages_paid), SUM(total_expenditure), SUM(works_completed),
			AVG(total_households), AVG(total_persons)
		 FROM performance_data
		 WHERE district_code = ? AND year = ?`,
		code, year,
	)
	sum, err := scanSummary(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: summarize district %s", code)
	}
	return sum, nil
}

func (s *SQLiteStore) CompareDistricts(ctx context.Context, codes []string, year int) ([]model.ComparisonRow, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(codes))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(codes)+1)
	args = append(args, year)
	for _, c := range codes {
		args = append(args, c)
	}

	// Year filter lives in the join condition so districts with no rows for
	// the year still appear, with NULL aggregates.
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.district_code, d.district_name,
			SUM(p.total_households), SUM(p.total_persons), SUM(p.total_work_days),
			SUM(p.total_wages_paid), SUM(p.works_completed)
		 FROM districts d
		 LEFT JOIN performance_data p
			ON p.district_code = d.district_code AND p.year = ?
		 WHERE d.district_code IN (`+placeholders+`)
		 GROUP BY d.district_code, d.district_name
		 ORDER BY SUM(p.total_households) DESC`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: compare districts")
	}
	defer rows.Close()

	var result []model.ComparisonRow
	for rows.Next() {
		var cr model.ComparisonRow
		var households, persons, workDays, worksCompleted sql.NullInt64
		var wages sql.NullFloat64
		err := rows.Scan(&cr.DistrictCode, &cr.DistrictName,
			&households, &persons, &workDays, &wages, &worksCompleted)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparison row")
		}
		cr.Households = nullInt(households)
		cr.Persons = nullInt(persons)
		cr.WorkDays = nullInt(workDays)
		cr.WagesPaid = nullFloat(wages)
		cr.WorksCompleted = nullInt(worksCompleted)
		result = append(result, cr)
	}
	return result, eris.Wrap(rows.Err(), "sqlite: compare districts iterate")
}

func (s *SQLiteStore) StateSummary(ctx context.Context, year int) ([]model.StateSummaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.state_name, COUNT(DISTINCT d.district_code),
			SUM(p.total_households), SUM(p.total_persons), SUM(p.total_work_days),
			SUM(p.total_wages_paid), SUM(p.works_completed)
		 FROM districts d
		 LEFT JOIN performance_data p
			ON p.district_code = d.district_code AND p.year = ?
		 GROUP BY d.state_name
		 ORDER BY SUM(p.total_households) DESC`,
		year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: state summary")
	}
	defer rows.Close()

	var result []model.StateSummaryRow
	for rows.Next() {
		var sr model.StateSummaryRow
		var households, persons, workDays, worksCompleted sql.NullInt64
		var wages sql.NullFloat64
		err := rows.Scan(&sr.StateName, &sr.TotalDistricts,
			&households, &persons, &workDays, &wages, &worksCompleted)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state summary row")
		}
		sr.Households = nullInt(households)
		sr.Persons = nullInt(persons)
		sr.WorkDays = nullInt(workDays)
		sr.WagesPaid = nullFloat(wages)
		sr.WorksCompleted = nullInt(worksCompleted)
		result = append(result, sr)
	}
	return result, eris.Wrap(rows.Err(), "sqlite: state summary iterate")
}

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM api_cache
		 WHERE endpoint = ? AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		key, time.Now().UTC(),
	)
	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cache %s", key)
	}
	return data, nil
}

func (s *SQLiteStore) PutCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_cache (id, endpoint, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), key, payload, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: put cache %s", key)
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_cache WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSummary(row scannable) (*model.Summary, error) {
	var households, persons, workDays, worksCompleted sql.NullInt64
	var wages, expenditure, avgHouseholds, avgPersons sql.NullFloat64

	err := row.Scan(&households, &persons, &workDays, &wages, &expenditure,
		&worksCompleted, &avgHouseholds, &avgPersons)
	if err != nil {
		return nil, err
	}
	return &model.Summary{
		Households:         nullInt(households),
		Persons:            nullInt(persons),
		WorkDays:           nullInt(workDays),
		WagesPaid:          nullFloat(wages),
		Expenditure:        nullFloat(expenditure),
		WorksCompleted:     nullInt(worksCompleted),
		AvgHouseholdsMonth: nullFloat(avgHouseholds),
		AvgPersonsMonth:    nullFloat(avgPersons),
	}, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
