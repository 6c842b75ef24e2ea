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

// Package ingest deduplicates normalized statement records against the
// statement ledger, batch-inserts the new ones, and cross-links them
// into the payment ledger. Statements are immutable once issued by the
// bank, so dedup is strictly first-write-wins: duplicates are counted
// and never re-inserted or updated.
package ingest

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/openledger/bankfeed/sheet"
	"github.com/openledger/bankfeed/store"
)

// Ingest partitions records into new and duplicate by transaction
// number, inserts the new ones in fixed-size batches, and returns the
// accumulated counts together with the records actually inserted (the
// reconciliation input).
func (e *Engine) Ingest(ctx context.Context, records []sheet.Record) (Counts, []sheet.Record, error) {
	var counts Counts

	if len(records) == 0 {
		return counts, nil, nil
	}

	keys := make([]string, 0, len(records))
	keySet := map[string]bool{}
	for _, rec := range records {
		key := rec.TxnNumber()
		if !keySet[key] {
			keySet[key] = true
			keys = append(keys, key)
		}
	}

	seen, err := e.existingKeys(ctx, keys)
	if err != nil {
		return counts, nil, fmt.Errorf("dedup lookup: %w", err)
	}

	var fresh []sheet.Record
	taken := map[string]bool{}
	for _, rec := range records {
		key := rec.TxnNumber()
		// In-file repeats of a transaction number count as duplicates
		// too; the key is unique across all time.
		if seen[key] || taken[key] {
			counts.Skipped++
			continue
		}
		taken[key] = true
		fresh = append(fresh, rec)
	}

	log.WithFields(log.Fields{
		"candidates": len(records),
		"new":        len(fresh),
		"duplicate":  counts.Skipped,
	}).Info("ingest_partitioned")

	inserted := e.insertBatches(ctx, fresh, &counts)

	if e.cfg.Seen != nil && len(inserted) > 0 {
		insertedKeys := make([]string, len(inserted))
		for i, rec := range inserted {
			insertedKeys[i] = rec.TxnNumber()
		}
		if err := e.cfg.Seen.Add(ctx, insertedKeys); err != nil {
			log.WithError(err).Warn("ingest_seen_cache_add_failed")
		}
	}

	return counts, inserted, nil
}

// existingKeys builds the set of transaction numbers already present.
// The optional seen-cache answers first; remaining keys are resolved
// against storage in IN-list-sized chunks.
func (e *Engine) existingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	seen := map[string]bool{}
	unresolved := keys

	if e.cfg.Seen != nil {
		known, err := e.cfg.Seen.Known(ctx, keys)
		if err != nil {
			log.WithError(err).Warn("ingest_seen_cache_lookup_failed")
		} else {
			unresolved = unresolved[:0:0]
			for _, key := range keys {
				if known[key] {
					seen[key] = true
				} else {
					unresolved = append(unresolved, key)
				}
			}
		}
	}

	for start := 0; start < len(unresolved); start += e.cfg.SelectChunk {
		end := min(start+e.cfg.SelectChunk, len(unresolved))
		rows, err := e.cfg.Store.SelectIn(ctx, e.cfg.StatementTable, sheet.KeyTxnNumber,
			unresolved[start:end], []string{sheet.KeyTxnNumber})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			seen[fmt.Sprint(row[sheet.KeyTxnNumber])] = true
		}
	}

	return seen, nil
}

// insertBatches writes records one batch at a time, in order. A batch
// that fails with an unknown-column error has that column stripped from
// every row and is retried once; a second failure abandons the batch and
// its rows are counted as failed.
func (e *Engine) insertBatches(ctx context.Context, records []sheet.Record, counts *Counts) []sheet.Record {
	var inserted []sheet.Record

	for start := 0; start < len(records); start += e.cfg.InsertBatch {
		end := min(start+e.cfg.InsertBatch, len(records))
		batch := records[start:end]

		rows := make([]store.Row, len(batch))
		for i, rec := range batch {
			row := store.Row{}
			for k, v := range rec {
				row[k] = v
			}
			rows[i] = row
		}

		err := e.cfg.Store.Insert(ctx, e.cfg.StatementTable, rows)
		if err != nil {
			if column, ok := store.UnknownColumn(err); ok {
				log.WithField("column", column).Warn("ingest_unknown_column_stripped")
				for _, row := range rows {
					delete(row, column)
				}
				err = e.cfg.Store.Insert(ctx, e.cfg.StatementTable, rows)
			}
		}

		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"batch_start": start,
				"batch_size":  len(batch),
			}).Error("ingest_batch_abandoned")
			counts.Failed += len(batch)
			continue
		}

		counts.Inserted += len(batch)
		inserted = append(inserted, batch...)
	}

	return inserted
}
