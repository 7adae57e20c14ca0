package db

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Psql builds statements with PostgreSQL $n placeholders. Every filterable
// list query goes through it so user input only ever reaches the driver as
// bound arguments.
var Psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Queryable is the subset of pgxpool.Pool, pgxpool.Conn and pgx.Tx used by
// the repositories.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Conn returns the transaction bound to ctx when present, else fallback.
func Conn(ctx context.Context, fallback Queryable) Queryable {
	if tx := ConnFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

// Page applies LIMIT/OFFSET to a select builder.
func Page(b sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}
	return b
}

// Count runs SELECT COUNT(*) over the FROM/WHERE of a select builder that
// has not had columns, ordering or paging applied.
func Count(ctx context.Context, q Queryable, from sq.SelectBuilder) (int, error) {
	sql, args, err := from.Columns("COUNT(*)").ToSql()
	if err != nil {
		return 0, err
	}
	var total int
	if err := q.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains turns free text into a LIKE pattern matching it anywhere.
func Contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
