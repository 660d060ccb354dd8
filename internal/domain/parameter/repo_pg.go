package parameter

import (
	"context"
	"errors"

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

const rpCols = `id, test_type_id, name, code, kind,
	si_unit, reference_range, normal_min, normal_max,
	flag_low, flag_normal, flag_high, position, created_at, updated_at`

// The numeric columns are nullable in the table; scanRP packs them into a
// NumericSpec only for Numeric rows.
func scanRP(row pgx.Row) (*ResultParameter, error) {
	var p ResultParameter
	var siUnit, refRange, flagLow, flagNormal, flagHigh *string
	var normalMin, normalMax *float64
	err := row.Scan(&p.ID, &p.TestTypeID, &p.Name, &p.Code, &p.Kind,
		&siUnit, &refRange, &normalMin, &normalMax,
		&flagLow, &flagNormal, &flagHigh, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Kind == KindNumeric {
		p.Numeric = &NumericSpec{}
		if siUnit != nil {
			p.Numeric.SIUnit = *siUnit
		}
		if refRange != nil {
			p.Numeric.ReferenceRange = *refRange
		}
		if normalMin != nil {
			p.Numeric.NormalMin = *normalMin
		}
		if normalMax != nil {
			p.Numeric.NormalMax = *normalMax
		}
		if flagLow != nil {
			p.Numeric.FlagLow = *flagLow
		}
		if flagNormal != nil {
			p.Numeric.FlagNormal = *flagNormal
		}
		if flagHigh != nil {
			p.Numeric.FlagHigh = *flagHigh
		}
	}
	return &p, nil
}

func numericArgs(p *ResultParameter) (siUnit, refRange *string, normalMin, normalMax *float64, flagLow, flagNormal, flagHigh *string) {
	if p.Numeric == nil {
		return
	}
	n := p.Numeric
	return &n.SIUnit, &n.ReferenceRange, &n.NormalMin, &n.NormalMax, &n.FlagLow, &n.FlagNormal, &n.FlagHigh
}

func (r *repoPG) Create(ctx context.Context, p *ResultParameter) error {
	p.ID = uuid.New()
	siUnit, refRange, normalMin, normalMax, flagLow, flagNormal, flagHigh := numericArgs(p)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO result_parameter (id, test_type_id, name, code, kind,
			si_unit, reference_range, normal_min, normal_max,
			flag_low, flag_normal, flag_high, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.TestTypeID, p.Name, p.Code, p.Kind,
		siUnit, refRange, normalMin, normalMax,
		flagLow, flagNormal, flagHigh, p.Position)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ResultParameter, error) {
	p, err := scanRP(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rpCols+` FROM result_parameter WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, laberr.E(laberr.KindNotFound, "result parameter %s not found", id)
		}
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *ResultParameter) error {
	siUnit, refRange, normalMin, normalMax, flagLow, flagNormal, flagHigh := numericArgs(p)
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE result_parameter SET name=$2, code=$3, kind=$4,
			si_unit=$5, reference_range=$6, normal_min=$7, normal_max=$8,
			flag_low=$9, flag_normal=$10, flag_high=$11, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Code, p.Kind,
		siUnit, refRange, normalMin, normalMax,
		flagLow, flagNormal, flagHigh)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return laberr.E(laberr.KindNotFound, "result parameter %s not found", p.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM result_parameter WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return laberr.E(laberr.KindNotFound, "result parameter %s not found", id)
	}
	return nil
}

func (r *repoPG) ListByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*ResultParameter, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+rpCols+` FROM result_parameter WHERE test_type_id = $1 ORDER BY position, created_at`,
		testTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ResultParameter
	for rows.Next() {
		p, err := scanRP(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) CountByTestType(ctx context.Context, testTypeID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM result_parameter WHERE test_type_id = $1`, testTypeID).Scan(&count)
	return count, err
}
