package engine

import (
	"context"
	"database/sql"
	"fmt"

	"badgeetl/internal/table"
)

// Query runs query and returns every row. Values come back in SQLite storage
// form (int64, float64, string, nil); columns named in decode are converted
// to their table type with Decode.
func (s *Session) Query(ctx context.Context, decode table.Schema, query string, args ...any) ([]string, [][]any, error) {
	if err := s.check(); err != nil {
		return nil, nil, err
	}
	rows, err := s.repo.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("engine: columns: %w", err)
	}
	types := make([]table.Type, len(cols))
	for i, c := range cols {
		if col, ok := decode.Lookup(c); ok {
			types[i] = col.Type
		}
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("engine: scan: %w", err)
		}
		for i, t := range types {
			if t != "" {
				vals[i] = Decode(t, vals[i])
			} else if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("engine: rows: %w", err)
	}
	return cols, out, nil
}

// QueryInt runs a query returning a single integer. NULL reads as 0.
func (s *Session) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n sql.NullInt64
	if err := s.repo.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("engine: query int: %w", err)
	}
	return n.Int64, nil
}

// Query runs query with the frame's schema as the decode schema.
func (f *Frame) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	_, rows, err := f.sess.Query(ctx, f.Schema, query, args...)
	return rows, err
}

// Decode converts a value read from the session back to type t. Values that
// do not fit are returned unchanged.
func Decode(t table.Type, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch t {
	case table.TypeBoolean:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case table.TypeTimestamp:
		if s, ok := v.(string); ok {
			if ts, ok := table.ParseTimestamp(s); ok {
				return ts
			}
		}
	case table.TypeShort, table.TypeInt:
		if out, ok := table.Cast(v, t); ok {
			return out
		}
	}
	return v
}
