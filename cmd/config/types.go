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
	"errors"
	"time"
)

var (
	errInvalidScheme = errors.New("invalid uri scheme")
)

// MailConfig describes one mail endpoint (the IMAP source or the SMTP
// notification relay), addressed by URL.
type MailConfig struct {
	URL           string `json:"url"`
	Username      string `json:"username"`
	Password      string `json:"-"`
	PasswordFile  string `json:"password_file"`
	TLSSkipVerify bool   `json:"tls_skip_verify"`
}

type CliConfig struct {
	IMAP MailConfig `json:"imap"`
	SMTP MailConfig `json:"smtp"`

	// Sender and Subject filter the statement search.
	Sender  string `json:"sender"`
	Subject string `json:"subject"`

	DatabaseURL string `json:"-"`
	RedisURL    string `json:"-"`

	NotifyFrom string `json:"notify_from"`
	NotifyTo   string `json:"notify_to"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	CommandTimeout time.Duration `json:"command_timeout"`
	FetchCeiling   time.Duration `json:"fetch_ceiling"`

	SelectChunk uint `json:"select_chunk"`
	InsertBatch uint `json:"insert_batch"`
}
