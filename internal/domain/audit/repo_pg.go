package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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

const aeCols = `id, actor, action, entity_type, entity_id, outcome, detail, recorded_at`

func (r *repoPG) Create(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_event (id, actor, action, entity_type, entity_id, outcome, detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Actor, e.Action, e.EntityType, e.EntityID, e.Outcome, e.Detail, e.RecordedAt)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error) {
	query := `SELECT ` + aeCols + ` FROM audit_event WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_event WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["entity_id"]; ok {
		query += fmt.Sprintf(` AND entity_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND entity_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["entity_type"]; ok {
		query += fmt.Sprintf(` AND entity_type = $%d`, idx)
		countQuery += fmt.Sprintf(` AND entity_type = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["actor"]; ok {
		query += fmt.Sprintf(` AND actor = $%d`, idx)
		countQuery += fmt.Sprintf(` AND actor = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["action"]; ok {
		query += fmt.Sprintf(` AND action = $%d`, idx)
		countQuery += fmt.Sprintf(` AND action = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID,
			&e.Outcome, &e.Detail, &e.RecordedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
