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

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusNoEmail    RunStatus = "no_email"
	StatusEmpty      RunStatus = "empty"
	StatusCompleted  RunStatus = "completed"
	StatusError      RunStatus = "error"
)

// Terminal reports whether the status ends a run. A terminal run log is
// immutable.
func (s RunStatus) Terminal() bool {
	return s != StatusProcessing
}

// RunLog is the single audit record of one pipeline invocation. It is
// created at pipeline start, mutated at phase boundaries, and frozen
// once terminal. The pipeline is its only writer.
type RunLog struct {
	ID              string
	Status          RunStatus
	EmailSubject    string
	MissingColumns  []string
	ExtraColumns    []string
	RecordsInserted int
	RecordsSkipped  int
	RecordsFailed   int
	ErrorMessage    string
	StartedAt       time.Time
	FinishedAt      *time.Time
}

var errRunLogFrozen = errors.New("run log already terminal")

// NewRunLog creates a fresh run log in the processing state.
func NewRunLog(now time.Time) *RunLog {
	return &RunLog{
		ID:        uuid.NewString(),
		Status:    StatusProcessing,
		StartedAt: now,
	}
}

// Finish transitions the run log to a terminal status and stamps the
// finish time.
func (r *RunLog) Finish(status RunStatus, now time.Time) {
	r.Status = status
	r.FinishedAt = &now
}

// RunLogStore persists run logs through the generic row store.
type RunLogStore struct {
	Store RowStore
	Table string
}

func (s *RunLogStore) Create(ctx context.Context, r *RunLog) error {
	return s.Store.Insert(ctx, s.Table, []Row{runLogRow(r)})
}

// Save writes the current state of the run log. Saving a record that
// was already terminal in storage is refused to keep terminal records
// immutable.
func (s *RunLogStore) Save(ctx context.Context, r *RunLog) error {
	existing, err := s.Store.Select(ctx, s.Table, Filter{"id": r.ID}, []string{"status"})
	if err != nil {
		return err
	}

	if len(existing) == 1 {
		if status, _ := existing[0]["status"].(string); RunStatus(status).Terminal() {
			log.WithFields(log.Fields{
				"id":     r.ID,
				"status": status,
			}).Warn("runlog_terminal_write_refused")
			return errRunLogFrozen
		}
	}

	_, err = s.Store.Update(ctx, s.Table, runLogRow(r), Filter{"id": r.ID})
	return err
}

func runLogRow(r *RunLog) Row {
	row := Row{
		"id":               r.ID,
		"status":           string(r.Status),
		"email_subject":    r.EmailSubject,
		"missing_columns":  strings.Join(r.MissingColumns, ", "),
		"extra_columns":    strings.Join(r.ExtraColumns, ", "),
		"records_inserted": r.RecordsInserted,
		"records_skipped":  r.RecordsSkipped,
		"records_failed":   r.RecordsFailed,
		"error_message":    r.ErrorMessage,
		"started_at":       r.StartedAt,
	}
	if r.FinishedAt != nil {
		row["finished_at"] = *r.FinishedAt
	}
	return row
}
