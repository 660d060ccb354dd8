package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/db"
	"github.com/lims/lims/internal/platform/laberr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const trCols = `id, patient_id, visit_id, test_type_id, specimen_type_id,
	specimen_barcode, status, rejection_reason,
	specimen_collected_by, specimen_collected_at,
	specimen_accepted_by, specimen_accepted_at,
	tested_by, tested_at, completed_at,
	verified_by, verified_at, approved_by, approved_at,
	rejected_by, rejected_at,
	version_id, created_by, created_at, updated_at`

func scanTR(row pgx.Row) (*TestRequest, error) {
	var tr TestRequest
	err := row.Scan(&tr.ID, &tr.PatientID, &tr.VisitID, &tr.TestTypeID, &tr.SpecimenTypeID,
		&tr.SpecimenBarcode, &tr.Status, &tr.RejectionReason,
		&tr.CollectedBy, &tr.CollectedAt,
		&tr.AcceptedBy, &tr.AcceptedAt,
		&tr.TestedBy, &tr.TestedAt, &tr.CompletedAt,
		&tr.VerifiedBy, &tr.VerifiedAt, &tr.ApprovedBy, &tr.ApprovedAt,
		&tr.RejectedBy, &tr.RejectedAt,
		&tr.VersionID, &tr.CreatedBy, &tr.CreatedAt, &tr.UpdatedAt)
	return &tr, err
}

func (r *repoPG) Create(ctx context.Context, tr *TestRequest) error {
	tr.ID = uuid.New()
	tr.VersionID = 1
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_request (id, patient_id, visit_id, test_type_id,
			specimen_barcode, status, version_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tr.ID, tr.PatientID, tr.VisitID, tr.TestTypeID,
		tr.SpecimenBarcode, tr.Status, tr.VersionID, tr.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestRequest, error) {
	tr, err := scanTR(r.conn(ctx).QueryRow(ctx,
		`SELECT `+trCols+` FROM test_request WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, laberr.E(laberr.KindNotFound, "test request %s not found", id)
		}
		return nil, err
	}
	return tr, nil
}

// UpdateTransition is a compare-and-swap on (id, version_id). Concurrent
// writers against the same request race on the version column; the loser
// matches zero rows and reports invalid_transition so the caller sees the
// same failure as any other stale-status attempt.
func (r *repoPG) UpdateTransition(ctx context.Context, tr *TestRequest) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE test_request SET
			status=$3, specimen_type_id=$4, rejection_reason=$5,
			specimen_collected_by=$6, specimen_collected_at=$7,
			specimen_accepted_by=$8, specimen_accepted_at=$9,
			tested_by=$10, tested_at=$11, completed_at=$12,
			verified_by=$13, verified_at=$14,
			approved_by=$15, approved_at=$16,
			rejected_by=$17, rejected_at=$18,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2`,
		tr.ID, tr.VersionID,
		tr.Status, tr.SpecimenTypeID, tr.RejectionReason,
		tr.CollectedBy, tr.CollectedAt,
		tr.AcceptedBy, tr.AcceptedAt,
		tr.TestedBy, tr.TestedAt, tr.CompletedAt,
		tr.VerifiedBy, tr.VerifiedAt,
		tr.ApprovedBy, tr.ApprovedAt,
		tr.RejectedBy, tr.RejectedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return laberr.E(laberr.KindInvalidTransition,
			"test request %s was modified concurrently", tr.ID).
			WithDetail("attempted_status", string(tr.Status))
	}
	tr.VersionID++
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestRequest, int, error) {
	query := `SELECT ` + trCols + ` FROM test_request WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM test_request WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["visit"]; ok {
		query += fmt.Sprintf(` AND visit_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND visit_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["test_type"]; ok {
		query += fmt.Sprintf(` AND test_type_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND test_type_id = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TestRequest
	for rows.Next() {
		tr, err := scanTR(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tr)
	}
	return items, total, rows.Err()
}

// =========== StatusHistory Repository ===========

type statusHistoryRepoPG struct{ pool *pgxpool.Pool }

func NewStatusHistoryRepoPG(pool *pgxpool.Pool) StatusHistoryRepository {
	return &statusHistoryRepoPG{pool: pool}
}

func (r *statusHistoryRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

func (r *statusHistoryRepoPG) Create(ctx context.Context, h *StatusHistory) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO request_status_history (id, test_request_id, from_status, to_status, changed_by, changed_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.TestRequestID, h.FromStatus, h.ToStatus, h.ChangedBy, h.ChangedAt, h.Reason)
	return err
}

func (r *statusHistoryRepoPG) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*StatusHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, test_request_id, from_status, to_status, changed_by, changed_at, reason
		FROM request_status_history
		WHERE test_request_id = $1
		ORDER BY changed_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.TestRequestID, &h.FromStatus, &h.ToStatus,
			&h.ChangedBy, &h.ChangedAt, &h.Reason); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}
