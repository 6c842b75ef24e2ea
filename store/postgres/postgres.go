/*
 * BankFeed - Copyright (C) 2026 OpenLedger
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

// Package postgres implements the generic row store on a pgx connection
// pool. SQL is built dynamically from row maps; identifiers are
// sanitized, values always travel as bind parameters.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/openledger/bankfeed/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Trace("postgres_connected")
	return &Store{pool: pool}, nil
}

func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Select(ctx context.Context, table string, filter store.Filter, columns []string) ([]store.Row, error) {
	sql, args := buildSelect(table, filter, columns)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err)
	}
	return collectRows(rows)
}

func (s *Store) SelectIn(ctx context.Context, table, keyColumn string, keys []string, columns []string) ([]store.Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		projection(columns),
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{keyColumn}.Sanitize())

	rows, err := s.pool.Query(ctx, sql, keys)
	if err != nil {
		return nil, translate(err)
	}
	return collectRows(rows)
}

func (s *Store) Insert(ctx context.Context, table string, rows []store.Row) error {
	if len(rows) == 0 {
		return nil
	}

	sql, args := buildInsert(table, rows)
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, set store.Row, filter store.Filter) (int64, error) {
	sql, args := buildUpdate(table, set, filter)
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func projection(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// sortedKeys gives deterministic column order for generated SQL.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildSelect(table string, filter store.Filter, columns []string) (string, []any) {
	var b strings.Builder
	var args []any

	fmt.Fprintf(&b, "SELECT %s FROM %s", projection(columns), pgx.Identifier{table}.Sanitize())

	where := buildWhere(filter, &args)
	if where != "" {
		b.WriteString(" WHERE " + where)
	}

	return b.String(), args
}

func buildWhere(filter store.Filter, args *[]any) string {
	var clauses []string
	for _, k := range sortedKeys(filter) {
		value := filter[k]
		if value == nil {
			clauses = append(clauses, pgx.Identifier{k}.Sanitize()+" IS NULL")
			continue
		}
		*args = append(*args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", pgx.Identifier{k}.Sanitize(), len(*args)))
	}
	return strings.Join(clauses, " AND ")
}

// buildInsert generates a multi-row insert over the union of the rows'
// columns; a row lacking a column contributes NULL.
func buildInsert(table string, rows []store.Row) (string, []any) {
	union := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			union[k] = struct{}{}
		}
	}
	columns := sortedKeys(union)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pgx.Identifier{table}.Sanitize(), projection(columns))

	var args []any
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		placeholders := make([]string, len(columns))
		for j, col := range columns {
			args = append(args, row[col])
			placeholders[j] = fmt.Sprintf("$%d", len(args))
		}
		b.WriteString("(" + strings.Join(placeholders, ", ") + ")")
	}

	return b.String(), args
}

func buildUpdate(table string, set store.Row, filter store.Filter) (string, []any) {
	var b strings.Builder
	var args []any

	fmt.Fprintf(&b, "UPDATE %s SET ", pgx.Identifier{table}.Sanitize())

	var assignments []string
	for _, k := range sortedKeys(set) {
		args = append(args, set[k])
		assignments = append(assignments, fmt.Sprintf("%s = $%d", pgx.Identifier{k}.Sanitize(), len(args)))
	}
	b.WriteString(strings.Join(assignments, ", "))

	where := buildWhere(filter, &args)
	if where != "" {
		b.WriteString(" WHERE " + where)
	}

	return b.String(), args
}

func collectRows(rows pgx.Rows) ([]store.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []store.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := store.Row{}
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

var undefinedColumnRe = regexp.MustCompile(`column "([^"]+)"`)

// translate maps SQLSTATE 42703 (undefined_column) onto the store-level
// unknown-column error so the ingestion engine can strip and retry.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42703" {
		if m := undefinedColumnRe.FindStringSubmatch(pgErr.Message); m != nil {
			return &store.UnknownColumnError{Column: m[1]}
		}
	}
	return err
}
