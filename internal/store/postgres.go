package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore keeps every collection in one JSONB table (see database.RunMigrations).
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, doc any, opts ...CreateOption) error {
	o := applyCreateOptions(opts)
	data, err := encode(doc)
	if err != nil {
		return err
	}

	var acl any
	if len(o.acl) > 0 {
		if acl, err = encode(o.acl); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO documents (collection, id, data, acl)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, collection, id, data, acl)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, out any) error {
	var data []byte
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	err := s.db.GetContext(ctx, &data, query, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decode(data, out)
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	data, err := encode(patch)
	if err != nil {
		return err
	}
	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`
	res, err := s.db.ExecContext(ctx, query, collection, id, data)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string, q Query, out any) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}

	b := &sqlBuilder{args: []any{collection}}
	where := "collection = $1"
	if len(q.Predicates) > 0 {
		clause, err := b.and(q.Predicates)
		if err != nil {
			return 0, err
		}
		where += " AND " + clause
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM documents WHERE " + where
	if err := s.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}

	selectQuery := "SELECT data FROM documents WHERE " + where + " ORDER BY " + orderClause(q.Sort)
	if q.Limit > 0 {
		selectQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		selectQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, selectQuery, b.args...); err != nil {
		return 0, fmt.Errorf("list %s: %w", collection, err)
	}
	return total, decodeList(rows, out)
}

// sqlBuilder renders predicates into a WHERE fragment with positional args.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) and(preds []Predicate) (string, error) {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		clause, err := b.predicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	return strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) predicate(p Predicate) (string, error) {
	if p.Op == OpOr {
		if len(p.Any) == 0 {
			return "FALSE", nil
		}
		parts := make([]string, 0, len(p.Any))
		for _, sub := range p.Any {
			clause, err := b.predicate(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, clause)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}

	switch p.Op {
	case OpIsNull:
		j := jsonPath(p.Field)
		return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", j, j), nil
	case OpNotNull:
		j := jsonPath(p.Field)
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> 'null'::jsonb)", j, j), nil
	case OpSearch:
		return fmt.Sprintf("%s ILIKE %s", textPath(p.Field), b.arg("%"+escapeLike(p.Value.(string))+"%")), nil
	case OpContains:
		needle, err := encode([]any{p.Value})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s @> %s::jsonb", jsonPath(p.Field), b.arg(string(needle))), nil
	case OpIn:
		return b.in(p)
	}

	expr := typedPath(p.Field, kindOf(p.Value))
	var sqlOp string
	switch p.Op {
	case OpEq:
		sqlOp = "="
	case OpNe:
		// IS DISTINCT FROM keeps documents where the field is missing
		sqlOp = "IS DISTINCT FROM"
	case OpGt:
		sqlOp = ">"
	case OpGte:
		sqlOp = ">="
	case OpLt:
		sqlOp = "<"
	case OpLte:
		sqlOp = "<="
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", ErrInvalid, p.Op)
	}
	return fmt.Sprintf("%s %s %s", expr, sqlOp, b.arg(p.Value)), nil
}

func (b *sqlBuilder) in(p Predicate) (string, error) {
	if len(p.Values) == 0 {
		return "FALSE", nil
	}
	switch kindOf(p.Values[0]) {
	case kindNumber:
		nums := make([]float64, 0, len(p.Values))
		for _, v := range p.Values {
			f, ok := toFloat(v)
			if !ok {
				return "", fmt.Errorf("%w: mixed value types in IN on %q", ErrInvalid, p.Field)
			}
			nums = append(nums, f)
		}
		return fmt.Sprintf("%s = ANY(%s)", typedPath(p.Field, kindNumber), b.arg(pq.Array(nums))), nil
	case kindString:
		strs := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			s, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("%w: mixed value types in IN on %q", ErrInvalid, p.Field)
			}
			strs = append(strs, s)
		}
		return fmt.Sprintf("%s = ANY(%s)", textPath(p.Field), b.arg(pq.Array(strs))), nil
	default:
		return "", fmt.Errorf("%w: IN on %q supports strings and numbers only", ErrInvalid, p.Field)
	}
}

// jsonPath renders data->'a'->'b' for a dotted field. Fields are validated
// against fieldPattern before they get here.
func jsonPath(field string) string {
	if field == "id" {
		return "to_jsonb(id)"
	}
	parts := strings.Split(field, ".")
	var sb strings.Builder
	sb.WriteString("data")
	for _, part := range parts {
		sb.WriteString("->'")
		sb.WriteString(part)
		sb.WriteString("'")
	}
	return sb.String()
}

// textPath renders data->'a'->>'b'.
func textPath(field string) string {
	if field == "id" {
		return "id"
	}
	parts := strings.Split(field, ".")
	var sb strings.Builder
	sb.WriteString("data")
	for i, part := range parts {
		if i == len(parts)-1 {
			sb.WriteString("->>'")
		} else {
			sb.WriteString("->'")
		}
		sb.WriteString(part)
		sb.WriteString("'")
	}
	return sb.String()
}

func typedPath(field string, kind valueKind) string {
	switch kind {
	case kindNumber:
		return "(" + textPath(field) + ")::numeric"
	case kindBool:
		return "(" + textPath(field) + ")::boolean"
	case kindTime:
		return "(" + textPath(field) + ")::timestamptz"
	default:
		return textPath(field)
	}
}

func orderClause(sorts []Sort) string {
	parts := make([]string, 0, len(sorts)+2)
	for _, s := range sorts {
		expr := jsonPath(s.Field)
		if s.Time {
			expr = typedPath(s.Field, kindTime)
		}
		dir := "ASC NULLS FIRST"
		if s.Desc {
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, "created_at ASC", "id ASC")
	return strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
