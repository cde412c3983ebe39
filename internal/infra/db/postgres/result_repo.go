package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Save(ctx context.Context, res *domain.Result) error {
	const q = `
INSERT INTO analysis_results
(region_id, language, errors, suggestions, simulation, snapshot_url, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);
`
	issues, err := json.Marshal(res.Issues)
	if err != nil {
		return err
	}
	suggestions, err := json.Marshal(res.Suggestions)
	if err != nil {
		return err
	}
	var simulation []byte
	if res.Simulation != nil {
		if simulation, err = json.Marshal(res.Simulation); err != nil {
			return err
		}
	}
	_, err = r.db.ExecContext(ctx, q,
		res.RegionID, res.Language, issues, suggestions, simulation,
		res.SnapshotURL, res.CompletedAt,
	)
	return err
}

func (r *ResultRepository) Latest(ctx context.Context, limit int) ([]*domain.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT region_id, language, errors, suggestions, simulation, snapshot_url, completed_at
FROM analysis_results
ORDER BY completed_at DESC LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

func (r *ResultRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Result, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	const q = `
SELECT region_id, language, errors, suggestions, simulation, snapshot_url, completed_at
FROM analysis_results
ORDER BY completed_at DESC LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]*domain.Result, error) {
	var out []*domain.Result
	for rows.Next() {
		var res domain.Result
		var regionID string
		var issues, suggestions, simulation []byte
		if err := rows.Scan(
			&regionID, &res.Language, &issues, &suggestions, &simulation,
			&res.SnapshotURL, &res.CompletedAt,
		); err != nil {
			return nil, err
		}
		res.RegionID = vision.RegionID(regionID)
		if len(issues) > 0 {
			if err := json.Unmarshal(issues, &res.Issues); err != nil {
				return nil, err
			}
		}
		if len(suggestions) > 0 {
			if err := json.Unmarshal(suggestions, &res.Suggestions); err != nil {
				return nil, err
			}
		}
		if len(simulation) > 0 {
			if err := json.Unmarshal(simulation, &res.Simulation); err != nil {
				return nil, err
			}
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}
