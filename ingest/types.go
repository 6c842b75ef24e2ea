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

package ingest

import (
	"github.com/openledger/bankfeed/store"
)

type Config struct {
	Store store.RowStore

	// Seen is an optional Redis-backed pre-filter over transaction
	// numbers. It only ever short-circuits storage lookups; storage
	// remains the source of truth.
	Seen *SeenCache

	StatementTable string
	PaymentTable   string
	LedgerTable    string

	// SelectChunk bounds IN-list sizes, InsertBatch bounds insert
	// payloads. Zero means the defaults.
	SelectChunk int
	InsertBatch int
}

const (
	DefaultSelectChunk = 200
	DefaultInsertBatch = 50
)

// Counts are the accumulators of one ingestion pass. They are threaded
// through and returned, never kept as ambient state.
type Counts struct {
	// Inserted is the number of rows newly written this run.
	Inserted int

	// Skipped is the number of rows whose transaction number already
	// existed (first-write-wins; duplicates are never updated).
	Skipped int

	// Failed is the number of rows lost to a batch that failed even
	// after the unknown-column retry. Surfaced separately from Skipped
	// so lost rows are not mistaken for legitimate duplicates.
	Failed int
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.SelectChunk == 0 {
		cfg.SelectChunk = DefaultSelectChunk
	}
	if cfg.InsertBatch == 0 {
		cfg.InsertBatch = DefaultInsertBatch
	}
	return &Engine{cfg: cfg}
}
