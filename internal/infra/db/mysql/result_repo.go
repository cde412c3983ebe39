package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/domain/vision"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save appends one analysis result to the history table.
func (r *ResultRepository) Save(ctx context.Context, res *domain.Result) error {
	const q = `
INSERT INTO analysis_results
(region_id, language, errors, suggestions, simulation, snapshot_url, completed_at)
VALUES (?,?,?,?,?,?,?);
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

// Latest returns the most recent results, newest first.
func (r *ResultRepository) Latest(ctx context.Context, limit int) ([]*domain.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT region_id, language, errors, suggestions, simulation, snapshot_url, completed_at
FROM analysis_results
ORDER BY completed_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

// Paginate returns one page of history, newest first.
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
ORDER BY completed_at DESC LIMIT ? OFFSET ?;
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
