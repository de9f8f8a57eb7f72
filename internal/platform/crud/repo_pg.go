package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carehub/internal/platform/db"
)

const (
	recordTable = "resource_record"
	sqlFlavor   = sqlbuilder.PostgreSQL
)

// PGRepo stores records of one kind as JSONB rows in resource_record.
type PGRepo[T Entity] struct {
	pool *pgxpool.Pool
	kind *Kind[T]
}

func NewPGRepo[T Entity](pool *pgxpool.Pool, kind *Kind[T]) *PGRepo[T] {
	return &PGRepo[T]{pool: pool, kind: kind}
}

func (r *PGRepo[T]) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *PGRepo[T]) scan(row pgx.Row) (T, error) {
	var (
		zero T
		body []byte
		meta Meta
	)
	if err := row.Scan(&meta.ID, &body, &meta.VersionID, &meta.CreatedAt, &meta.UpdatedAt); err != nil {
		return zero, err
	}
	rec := r.kind.New()
	if err := json.Unmarshal(body, rec); err != nil {
		return zero, fmt.Errorf("decode %s %s: %w", r.kind.ResourceType, meta.ID, err)
	}
	*rec.Base() = meta
	return rec, nil
}

func (r *PGRepo[T]) Create(ctx context.Context, rec T) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.kind.ResourceType, err)
	}
	m := rec.Base()

	ib := sqlFlavor.NewInsertBuilder()
	ib.InsertInto(recordTable)
	ib.Cols("kind", "id", "body", "version_id", "created_at", "updated_at")
	ib.Values(r.kind.Name, m.ID, body, m.VersionID, m.CreatedAt, m.UpdatedAt)
	query, args := ib.Build()

	if _, err := r.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.kind.ResourceType, err)
	}
	return nil
}

func (r *PGRepo[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "body", "version_id", "created_at", "updated_at").From(recordTable)
	sb.Where(sb.Equal("kind", r.kind.Name), sb.Equal("id", id)).Limit(1)
	query, args := sb.Build()

	rec, err := r.scan(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("get %s %s: %w", r.kind.ResourceType, id, err)
	}
	return rec, nil
}

func (r *PGRepo[T]) Update(ctx context.Context, rec T) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.kind.ResourceType, err)
	}
	m := rec.Base()

	ub := sqlFlavor.NewUpdateBuilder().Update(recordTable)
	ub.Set(
		ub.Assign("body", body),
		ub.Assign("version_id", m.VersionID),
		ub.Assign("updated_at", m.UpdatedAt),
	)
	ub.Where(ub.Equal("kind", r.kind.Name), ub.Equal("id", m.ID))
	query, args := ub.Build()

	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", r.kind.ResourceType, m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo[T]) Delete(ctx context.Context, id uuid.UUID) error {
	dlb := sqlFlavor.NewDeleteBuilder().DeleteFrom(recordTable)
	dlb.Where(dlb.Equal("kind", r.kind.Name), dlb.Equal("id", id))
	query, args := dlb.Build()

	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", r.kind.ResourceType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo[T]) List(ctx context.Context, q Query) ([]T, int, error) {
	conds, text, err := resolveQuery(r.kind.Filters, q)
	if err != nil {
		return nil, 0, err
	}

	cb := sqlFlavor.NewSelectBuilder()
	cb.Select("COUNT(*)").From(recordTable)
	applyConditions(cb, r.kind.Name, conds, text)
	countQuery, countArgs := cb.Build()

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.kind.ResourceType, err)
	}

	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "body", "version_id", "created_at", "updated_at").From(recordTable)
	applyConditions(sb, r.kind.Name, conds, text)
	if r.kind.SortField != "" {
		sb.OrderBy(jsonText(splitPath(r.kind.SortField))+" DESC NULLS LAST", "created_at", "id")
	} else {
		sb.OrderBy("created_at", "id")
	}
	if q.Limit > 0 {
		sb.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sb.Offset(q.Offset)
	}
	query, args := sb.Build()

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.kind.ResourceType, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", r.kind.ResourceType, err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", r.kind.ResourceType, err)
	}
	return items, total, nil
}

// applyConditions adds the kind and filter predicates. Paths come from Kind
// declarations checked against fieldPathPattern, never from requests.
func applyConditions(sb *sqlbuilder.SelectBuilder, kind string, conds []condition, text string) {
	sb.Where(sb.Equal("kind", kind))
	for _, c := range conds {
		expr := jsonText(c.path)
		switch c.op {
		case FilterEqual:
			sb.Where(sb.Equal(expr, c.value))
		case FilterContains:
			sb.Where(expr + " ILIKE " + sb.Var("%"+escapeLike(c.value)+"%"))
		case FilterFrom:
			sb.Where(sb.GreaterEqualThan("("+expr+")::timestamptz", c.when))
		case FilterTo:
			sb.Where(sb.LessEqualThan("("+expr+")::timestamptz", c.when))
		}
	}
	if text != "" {
		sb.Where("body::text ILIKE " + sb.Var("%"+escapeLike(text)+"%"))
	}
}

// jsonText renders body #>> '{a,b}' for a field path.
func jsonText(path []string) string {
	return "body #>> '{" + strings.Join(path, ",") + "}'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
