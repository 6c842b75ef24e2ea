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

package run

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/openledger/bankfeed/cmd/config"
	"github.com/openledger/bankfeed/ingest"
	"github.com/openledger/bankfeed/pump"
	"github.com/openledger/bankfeed/store/postgres"
)

const (
	runLogTable    = "pipeline_runs"
	statementTable = "bank_statements"
	paymentTable   = "payment_ledger"
	ledgerTable    = "bank_ledger"
	scheduleTable  = "schedule_jobs"
	scheduleJob    = "bank_statement_pull"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.CliConfig{}

	var date string
	var manual bool

	flags := cfg.Parameters()
	flags = append(flags,
		&cli.StringFlag{
			Name:        "date",
			Usage:       "statement date to search for (YYYY-MM-DD), default yesterday",
			Destination: &date,
		},
		&cli.BoolFlag{
			Name:        "manual",
			Usage:       "operator-triggered run; skips schedule bookkeeping",
			Destination: &manual,
		},
	)

	app.Commands = append(app.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Run the statement pipeline once",
		Flags:  flags,
		Action: func(c *cli.Context) error { return run(c.Context, cfg, date, manual) },
	})
	return app
}

func run(parent context.Context, cfg *config.CliConfig, date string, manual bool) error {
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(logLevel)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	log.WithFields(log.Fields{
		"imap_url":        cfg.IMAP.URL,
		"imap_username":   cfg.IMAP.Username,
		"smtp_url":        cfg.SMTP.URL,
		"sender":          cfg.Sender,
		"subject":         cfg.Subject,
		"log_level":       cfg.LogLevel,
		"log_format":      cfg.LogFormat,
		"command_timeout": cfg.CommandTimeout,
		"fetch_ceiling":   cfg.FetchCeiling,
		"select_chunk":    cfg.SelectChunk,
		"insert_batch":    cfg.InsertBatch,
		"date":            date,
		"manual":          manual,
	}).Info("starting")

	pipeConfig := pump.Config{}
	if err := cfg.BuildPipelineConfig(&pipeConfig); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	pipeConfig.Store = pg

	if cfg.RedisURL != "" {
		seen, err := ingest.NewSeenCacheFromURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		pipeConfig.Seen = seen
	}

	pipeConfig.RunLogTable = runLogTable
	pipeConfig.StatementTable = statementTable
	pipeConfig.PaymentTable = paymentTable
	pipeConfig.LedgerTable = ledgerTable
	pipeConfig.ScheduleTable = scheduleTable
	pipeConfig.ScheduleJob = scheduleJob

	opts := pump.Options{Manual: manual}
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return err
		}
		opts.Date = &d
	}

	runLog, err := pump.Run(ctx, &pipeConfig, opts)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"run_id": runLog.ID,
		"status": string(runLog.Status),
	}).Info("pipeline_terminated")
	return nil
}
