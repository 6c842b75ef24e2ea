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

package config

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/openledger/bankfeed/ingest"
	"github.com/openledger/bankfeed/mailbox"
	"github.com/openledger/bankfeed/notify"
	"github.com/openledger/bankfeed/pump"
)

func DefaultConfig() CliConfig {
	return CliConfig{
		LogLevel:       "info",
		LogFormat:      "text",
		CommandTimeout: mailbox.DefaultCommandTimeout,
		FetchCeiling:   mailbox.DefaultFetchCeiling,
		SelectChunk:    ingest.DefaultSelectChunk,
		InsertBatch:    ingest.DefaultInsertBatch,
	}
}

func (cfg *CliConfig) Parameters() []cli.Flag {
	def := DefaultConfig()

	var flags []cli.Flag
	flags = append(flags, cfg.IMAP.makeMailParameters("imap", true)...)
	flags = append(flags, cfg.SMTP.makeMailParameters("smtp", false)...)
	flags = append(flags, []cli.Flag{
		&cli.StringFlag{
			Name:        "sender",
			Usage:       "bank sender address the statement search filters on",
			EnvVars:     []string{"BANKFEED_SENDER"},
			Destination: &cfg.Sender,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "subject",
			Usage:       "subject substring the statement search filters on",
			EnvVars:     []string{"BANKFEED_SUBJECT"},
			Destination: &cfg.Subject,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "database-url",
			Usage:       "postgres connection url",
			EnvVars:     []string{"BANKFEED_DATABASE_URL"},
			Destination: &cfg.DatabaseURL,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Usage:       "redis url for the advisory seen-cache (optional)",
			EnvVars:     []string{"BANKFEED_REDIS_URL"},
			Destination: &cfg.RedisURL,
		},
		&cli.StringFlag{
			Name:        "notify-from",
			Usage:       "status email sender (defaults to the smtp username)",
			EnvVars:     []string{"BANKFEED_NOTIFY_FROM"},
			Destination: &cfg.NotifyFrom,
		},
		&cli.StringFlag{
			Name:        "notify-to",
			Usage:       "comma-separated status email recipients",
			EnvVars:     []string{"BANKFEED_NOTIFY_TO"},
			Destination: &cfg.NotifyTo,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"BANKFEED_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"BANKFEED_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
		&cli.DurationFlag{
			Name:        "command-timeout",
			Usage:       "timeout for imap control responses",
			EnvVars:     []string{"BANKFEED_COMMAND_TIMEOUT"},
			Destination: &cfg.CommandTimeout,
			Value:       def.CommandTimeout,
		},
		&cli.DurationFlag{
			Name:        "fetch-ceiling",
			Usage:       "hard ceiling for full-message fetches",
			EnvVars:     []string{"BANKFEED_FETCH_CEILING"},
			Destination: &cfg.FetchCeiling,
			Value:       def.FetchCeiling,
		},
		&cli.UintFlag{
			Name:        "select-chunk",
			Usage:       "dedup query chunk size",
			EnvVars:     []string{"BANKFEED_SELECT_CHUNK"},
			Destination: &cfg.SelectChunk,
			Value:       def.SelectChunk,
		},
		&cli.UintFlag{
			Name:        "insert-batch",
			Usage:       "statement insert batch size",
			EnvVars:     []string{"BANKFEED_INSERT_BATCH"},
			Destination: &cfg.InsertBatch,
			Value:       def.InsertBatch,
		},
	}...)

	return flags
}

// BuildPipelineConfig resolves the CLI surface into a pump
// configuration. The storage layer and seen-cache are wired by the
// caller, which owns their lifecycles.
func (cfg *CliConfig) BuildPipelineConfig(pipeConfig *pump.Config) error {
	def := DefaultConfig()

	hostPort, mbox, useTLS, tlsConfig, pass, err := cfg.IMAP.resolve("imap")
	if err != nil {
		return err
	}

	if mbox == "" {
		mbox = "INBOX"
	}

	pipeConfig.Mailbox = mailbox.Config{
		HostPort:       hostPort,
		TLS:            useTLS,
		TLSConfig:      tlsConfig,
		Username:       cfg.IMAP.Username,
		Password:       pass,
		Mailbox:        mbox,
		CommandTimeout: cfg.CommandTimeout,
		FetchCeiling:   cfg.FetchCeiling,
	}
	if pipeConfig.Mailbox.CommandTimeout == 0 {
		pipeConfig.Mailbox.CommandTimeout = def.CommandTimeout
	}
	if pipeConfig.Mailbox.FetchCeiling == 0 {
		pipeConfig.Mailbox.FetchCeiling = def.FetchCeiling
	}

	pipeConfig.Sender = cfg.Sender
	pipeConfig.Subject = cfg.Subject

	if cfg.SMTP.URL != "" {
		hostPort, _, useTLS, tlsConfig, pass, err := cfg.SMTP.resolve("smtp")
		if err != nil {
			return err
		}

		to := splitRecipients(cfg.NotifyTo)
		if len(to) == 0 {
			return fmt.Errorf("\"notify-to\" is required when an smtp url is configured")
		}

		from := cfg.NotifyFrom
		if from == "" {
			from = cfg.SMTP.Username
		}

		pipeConfig.Notifier = notify.New(notify.Config{
			HostPort:  hostPort,
			TLS:       useTLS,
			TLSConfig: tlsConfig,
			Username:  cfg.SMTP.Username,
			Password:  pass,
			From:      from,
			To:        to,
		})
	}

	pipeConfig.SelectChunk = int(cfg.SelectChunk)
	pipeConfig.InsertBatch = int(cfg.InsertBatch)

	return nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
