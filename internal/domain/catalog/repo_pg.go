package catalog

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

func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return laberr.E(laberr.KindNotFound, format, args...)
	}
	return err
}

// =========== SpecimenType Repository ===========

type specimenTypeRepoPG struct{ pool *pgxpool.Pool }

func NewSpecimenTypeRepoPG(pool *pgxpool.Pool) SpecimenTypeRepository {
	return &specimenTypeRepoPG{pool: pool}
}

func (r *specimenTypeRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const stCols = `id, name, description, created_at, updated_at`

func scanSpecimenType(row pgx.Row) (*SpecimenType, error) {
	var st SpecimenType
	err := row.Scan(&st.ID, &st.Name, &st.Description, &st.CreatedAt, &st.UpdatedAt)
	return &st, err
}

func (r *specimenTypeRepoPG) Create(ctx context.Context, st *SpecimenType) error {
	st.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO specimen_type (id, name, description)
		VALUES ($1, $2, $3)`,
		st.ID, st.Name, st.Description)
	return err
}

func (r *specimenTypeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SpecimenType, error) {
	st, err := scanSpecimenType(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stCols+` FROM specimen_type WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "specimen type %s not found", id)
	}
	return st, nil
}

func (r *specimenTypeRepoPG) Update(ctx context.Context, st *SpecimenType) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE specimen_type SET name=$2, description=$3, updated_at=NOW()
		WHERE id = $1`,
		st.ID, st.Name, st.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return laberr.E(laberr.KindNotFound, "specimen type %s not found", st.ID)
	}
	return nil
}

func (r *specimenTypeRepoPG) List(ctx context.Context, limit, offset int) ([]*SpecimenType, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM specimen_type`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+stCols+` FROM specimen_type ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*SpecimenType
	for rows.Next() {
		st, err := scanSpecimenType(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, st)
	}
	return items, total, rows.Err()
}

// =========== TestType Repository ===========

type testTypeRepoPG struct{ pool *pgxpool.Pool }

func NewTestTypeRepoPG(pool *pgxpool.Pool) TestTypeRepository {
	return &testTypeRepoPG{pool: pool}
}

func (r *testTypeRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const ttCols = `id, name, code, category, price, description, active, created_at, updated_at`

func scanTestType(row pgx.Row) (*TestType, error) {
	var tt TestType
	err := row.Scan(&tt.ID, &tt.Name, &tt.Code, &tt.Category, &tt.Price,
		&tt.Description, &tt.Active, &tt.CreatedAt, &tt.UpdatedAt)
	return &tt, err
}

func (r *testTypeRepoPG) Create(ctx context.Context, tt *TestType) error {
	tt.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_type (id, name, code, category, price, description, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tt.ID, tt.Name, tt.Code, tt.Category, tt.Price, tt.Description, tt.Active)
	return err
}

func (r *testTypeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestType, error) {
	tt, err := scanTestType(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ttCols+` FROM test_type WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "test type %s not found", id)
	}
	return tt, nil
}

func (r *testTypeRepoPG) Update(ctx context.Context, tt *TestType) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE test_type SET name=$2, code=$3, category=$4, price=$5,
			description=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		tt.ID, tt.Name, tt.Code, tt.Category, tt.Price, tt.Description, tt.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return laberr.E(laberr.KindNotFound, "test type %s not found", tt.ID)
	}
	return nil
}

func (r *testTypeRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TestType, int, error) {
	query := `SELECT ` + ttCols + ` FROM test_type WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM test_type WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["category"]; ok {
		query += fmt.Sprintf(` AND category = $%d`, idx)
		countQuery += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["code"]; ok {
		query += fmt.Sprintf(` AND code = $%d`, idx)
		countQuery += fmt.Sprintf(` AND code = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["active"]; ok {
		query += fmt.Sprintf(` AND active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, p == "true")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TestType
	for rows.Next() {
		tt, err := scanTestType(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tt)
	}
	return items, total, rows.Err()
}

// =========== Instrument Repository ===========

type instrumentRepoPG struct{ pool *pgxpool.Pool }

func NewInstrumentRepoPG(pool *pgxpool.Pool) InstrumentRepository {
	return &instrumentRepoPG{pool: pool}
}

func (r *instrumentRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const inCols = `id, name, serial_no, active, created_at, updated_at`

func scanInstrument(row pgx.Row) (*Instrument, error) {
	var in Instrument
	err := row.Scan(&in.ID, &in.Name, &in.SerialNo, &in.Active, &in.CreatedAt, &in.UpdatedAt)
	return &in, err
}

func (r *instrumentRepoPG) Create(ctx context.Context, in *Instrument) error {
	in.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO instrument (id, name, serial_no, active)
		VALUES ($1, $2, $3, $4)`,
		in.ID, in.Name, in.SerialNo, in.Active)
	return err
}

func (r *instrumentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Instrument, error) {
	in, err := scanInstrument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+inCols+` FROM instrument WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "instrument %s not found", id)
	}
	return in, nil
}

func (r *instrumentRepoPG) Update(ctx context.Context, in *Instrument) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE instrument SET name=$2, serial_no=$3, active=$4, updated_at=NOW()
		WHERE id = $1`,
		in.ID, in.Name, in.SerialNo, in.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return laberr.E(laberr.KindNotFound, "instrument %s not found", in.ID)
	}
	return nil
}

func (r *instrumentRepoPG) List(ctx context.Context, limit, offset int) ([]*Instrument, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM instrument`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+inCols+` FROM instrument ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Instrument
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, in)
	}
	return items, total, rows.Err()
}

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

func (r *assignmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

func (r *assignmentRepoPG) Assign(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error {
	// Re-assigning an existing pair is a no-op.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_type_specimen_type (test_type_id, specimen_type_id)
		VALUES ($1, $2)
		ON CONFLICT (test_type_id, specimen_type_id) DO NOTHING`,
		testTypeID, specimenTypeID)
	return err
}

func (r *assignmentRepoPG) Unassign(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM test_type_specimen_type
		WHERE test_type_id = $1 AND specimen_type_id = $2`,
		testTypeID, specimenTypeID)
	return err
}

func (r *assignmentRepoPG) ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*SpecimenType, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT st.id, st.name, st.description, st.created_at, st.updated_at
		FROM specimen_type st
		JOIN test_type_specimen_type tst ON tst.specimen_type_id = st.id
		WHERE tst.test_type_id = $1
		ORDER BY st.name`, testTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SpecimenType
	for rows.Next() {
		st, err := scanSpecimenType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, st)
	}
	return items, rows.Err()
}

func (r *assignmentRepoPG) IsAssigned(ctx context.Context, testTypeID, specimenTypeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM test_type_specimen_type
			WHERE test_type_id = $1 AND specimen_type_id = $2
		)`, testTypeID, specimenTypeID).Scan(&exists)
	return exists, err
}
