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

// Package store defines the generic row-store surface the pipeline
// writes through. The backend is an external collaborator; the pipeline
// only assumes select-with-filter, chunked select-with-IN, batch insert,
// and update-with-filter, with payload and IN-list ceilings that force
// the caller to chunk.
package store

import (
	"context"
	"errors"
	"fmt"
)

type Row map[string]any

// Filter is an equality filter; a nil value matches NULL.
type Filter map[string]any

type RowStore interface {
	// Select returns rows matching filter. columns narrows the
	// projection; empty means all columns.
	Select(ctx context.Context, table string, filter Filter, columns []string) ([]Row, error)

	// SelectIn returns rows whose keyColumn value is one of keys. The
	// caller is responsible for chunking keys below the backend's
	// IN-list ceiling.
	SelectIn(ctx context.Context, table, keyColumn string, keys []string, columns []string) ([]Row, error)

	// Insert appends rows. The caller chunks below the payload ceiling.
	Insert(ctx context.Context, table string, rows []Row) error

	// Update applies set to rows matching filter and reports how many
	// rows changed.
	Update(ctx context.Context, table string, set Row, filter Filter) (int64, error)
}

// UnknownColumnError reports an insert that referenced a column the
// backing table does not have. The ingestion engine strips the column
// and retries the batch once.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

// UnknownColumn extracts the offending column name if err is an
// unknown-column failure.
func UnknownColumn(err error) (string, bool) {
	var uc *UnknownColumnError
	if errors.As(err, &uc) {
		return uc.Column, true
	}
	return "", false
}
