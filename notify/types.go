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

package notify

import (
	"crypto/tls"
	"fmt"
	"time"
)

type Config struct {
	HostPort  string
	TLS       bool
	TLSConfig *tls.Config
	Username  string
	Password  string
	From      string
	To        []string

	// ReplyTimeout bounds each server reply.
	ReplyTimeout time.Duration
}

const DefaultReplyTimeout = 30 * time.Second

// UnexpectedStatusError aborts the send at the step whose reply did not
// carry the expected status class. Notification failure is logged by
// the caller and never affects an already-completed ingestion.
type UnexpectedStatusError struct {
	Step   string
	Want   string
	Status string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("smtp %s: want status %s*, got %q", e.Step, e.Want, e.Status)
}
