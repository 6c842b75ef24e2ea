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

// Package pump orchestrates one pipeline invocation: run-log creation,
// mailbox search, attachment extraction, spreadsheet ingestion,
// reconciliation, notification, and run-log finalization. Everything
// runs strictly sequentially on one IMAP session, one ingestion pass,
// and one SMTP session.
package pump

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openledger/bankfeed/extract"
	"github.com/openledger/bankfeed/ingest"
	"github.com/openledger/bankfeed/mailbox"
	"github.com/openledger/bankfeed/sheet"
	"github.com/openledger/bankfeed/store"
)

// Run executes the pipeline once and returns its run log. The returned
// error is non-nil only when the run terminated with status error;
// no_email and empty are ordinary outcomes.
func Run(ctx context.Context, cfg *Config, opts Options) (*store.RunLog, error) {
	loc := cfg.Location
	if loc == nil {
		loc = statementZone
	}
	date := targetDate(opts, loc)

	runLog := store.NewRunLog(time.Now())
	runs := &store.RunLogStore{Store: cfg.Store, Table: cfg.RunLogTable}
	if err := runs.Create(ctx, runLog); err != nil {
		return runLog, err
	}

	log.WithFields(log.Fields{
		"run_id": runLog.ID,
		"date":   date.Format("2006-01-02"),
		"manual": opts.Manual,
	}).Info("pump_run_started")

	att, subject, err := fetchStatement(cfg, date)
	if err != nil {
		runLog.ErrorMessage = err.Error()
		return runLog, finalize(ctx, cfg, runs, runLog, store.StatusError, opts, err)
	}
	if att == nil {
		return runLog, finalize(ctx, cfg, runs, runLog, store.StatusNoEmail, opts, nil)
	}
	runLog.EmailSubject = subject

	result, err := sheet.Parse(att.Data)
	if err != nil {
		runLog.ErrorMessage = err.Error()
		return runLog, finalize(ctx, cfg, runs, runLog, store.StatusError, opts, err)
	}
	runLog.MissingColumns = result.Missing
	runLog.ExtraColumns = result.Extra

	if len(result.Records) == 0 {
		return runLog, finalize(ctx, cfg, runs, runLog, store.StatusEmpty, opts, nil)
	}

	engine := ingest.NewEngine(ingest.Config{
		Store:          cfg.Store,
		Seen:           cfg.Seen,
		StatementTable: cfg.StatementTable,
		PaymentTable:   cfg.PaymentTable,
		LedgerTable:    cfg.LedgerTable,
		SelectChunk:    cfg.SelectChunk,
		InsertBatch:    cfg.InsertBatch,
	})

	counts, inserted, err := engine.Ingest(ctx, result.Records)
	runLog.RecordsInserted = counts.Inserted
	runLog.RecordsSkipped = counts.Skipped
	runLog.RecordsFailed = counts.Failed
	if err != nil {
		runLog.ErrorMessage = err.Error()
		return runLog, finalize(ctx, cfg, runs, runLog, store.StatusError, opts, err)
	}

	// The statements are already durable; a reconciliation failure is
	// recoverable on the next run thanks to the null-only link guard.
	if _, err := engine.Reconcile(ctx, inserted); err != nil {
		log.WithError(err).WithField("run_id", runLog.ID).Warn("pump_reconcile_failed")
	}

	return runLog, finalize(ctx, cfg, runs, runLog, store.StatusCompleted, opts, nil)
}

func targetDate(opts Options, loc *time.Location) time.Time {
	if opts.Date != nil {
		return *opts.Date
	}
	return time.Now().In(loc).AddDate(0, 0, -1)
}

// fetchStatement runs the whole IMAP leg: connect, authenticate,
// search, then walk the candidates newest-first and return the first
// one that yields a decodable spreadsheet. A nil attachment with nil
// error means nothing qualified today.
func fetchStatement(cfg *Config, date time.Time) (*extract.Attachment, string, error) {
	client, err := mailbox.Connect(&cfg.Mailbox)
	if err != nil {
		return nil, "", err
	}
	defer client.Logout()

	if err := client.Login(); err != nil {
		return nil, "", err
	}
	if err := client.Select(); err != nil {
		return nil, "", err
	}

	ids, err := client.SearchSince(date, cfg.Sender, cfg.Subject)
	if err != nil {
		return nil, "", err
	}
	if len(ids) == 0 {
		log.WithField("date", date.Format("2006-01-02")).Info("pump_no_candidates")
		return nil, "", nil
	}

	// Newest first: if the bank resends a statement, the most recent
	// copy wins and older candidates are only tried after it fails.
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]

		header, err := client.FetchHeaders(id)
		if err != nil {
			log.WithError(err).WithField("id", id).Warn("pump_header_fetch_failed")
			continue
		}
		subject := mailbox.Subject(header)

		raw, err := client.FetchMessage(id)
		if err != nil {
			log.WithError(err).WithField("id", id).Warn("pump_fetch_failed")
			continue
		}

		att, err := extract.Find(raw)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"id":      id,
				"subject": subject,
			}).Warn("pump_no_attachment")
			continue
		}

		log.WithFields(log.Fields{
			"id":       id,
			"subject":  subject,
			"filename": att.Filename,
			"size":     len(att.Data),
		}).Info("pump_attachment_found")
		return att, subject, nil
	}

	return nil, "", nil
}

// finalize stamps the terminal status, sends the notification, saves
// the run log, and touches the schedule record for scheduled runs. It
// returns cause so callers can propagate the original failure.
func finalize(ctx context.Context, cfg *Config, runs *store.RunLogStore, runLog *store.RunLog, status store.RunStatus, opts Options, cause error) error {
	runLog.Finish(status, time.Now())

	notifyRun(cfg, runLog)

	if err := runs.Save(ctx, runLog); err != nil {
		log.WithError(err).WithField("run_id", runLog.ID).Error("pump_runlog_save_failed")
		if cause == nil {
			cause = err
		}
	}

	if !opts.Manual && cfg.ScheduleTable != "" {
		if err := store.TouchSchedule(ctx, cfg.Store, cfg.ScheduleTable, cfg.ScheduleJob, time.Now()); err != nil {
			log.WithError(err).Warn("pump_schedule_touch_failed")
		}
	}

	log.WithFields(log.Fields{
		"run_id":   runLog.ID,
		"status":   string(status),
		"inserted": runLog.RecordsInserted,
		"skipped":  runLog.RecordsSkipped,
		"failed":   runLog.RecordsFailed,
	}).Info("pump_run_finished")

	return cause
}

func notifyRun(cfg *Config, runLog *store.RunLog) {
	if cfg.Notifier == nil {
		return
	}

	subject, body := buildReport(runLog)
	if err := cfg.Notifier.Send(subject, body); err != nil {
		log.WithError(err).WithField("run_id", runLog.ID).Error("pump_notify_failed")
	}
}
