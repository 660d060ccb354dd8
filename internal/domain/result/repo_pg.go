package result

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const resCols = `id, test_request_id, parameter_id, parameter_snapshot,
	value, interpretation, instrument_id, entered_by, entered_at, updated_at`

func scanResult(row pgx.Row) (*TestResult, error) {
	var res TestResult
	var snapshot []byte
	err := row.Scan(&res.ID, &res.TestRequestID, &res.ParameterID, &snapshot,
		&res.Value, &res.Interpretation, &res.InstrumentID,
		&res.EnteredBy, &res.EnteredAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &res.ParameterSnapshot); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repoPG) Upsert(ctx context.Context, res *TestResult) error {
	snapshot, err := json.Marshal(res.ParameterSnapshot)
	if err != nil {
		return err
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	// Re-submission replaces the value and interpretation but keeps the
	// original entry stamp.
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO test_result (id, test_request_id, parameter_id, parameter_snapshot,
			value, interpretation, instrument_id, entered_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (test_request_id, parameter_id) DO UPDATE SET
			parameter_snapshot = EXCLUDED.parameter_snapshot,
			value = EXCLUDED.value,
			interpretation = EXCLUDED.interpretation,
			instrument_id = EXCLUDED.instrument_id,
			updated_at = NOW()`,
		res.ID, res.TestRequestID, res.ParameterID, snapshot,
		res.Value, res.Interpretation, res.InstrumentID, res.EnteredBy)
	return err
}

func (r *repoPG) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*TestResult, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+resCols+` FROM test_result WHERE test_request_id = $1 ORDER BY entered_at, id`,
		requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TestResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *repoPG) CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM test_result WHERE test_request_id = $1`, requestID).Scan(&count)
	return count, err
}
