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

package pump

import (
	"time"

	"github.com/openledger/bankfeed/ingest"
	"github.com/openledger/bankfeed/mailbox"
	"github.com/openledger/bankfeed/store"
)

// Notifier delivers the status email at the end of a run. Satisfied by
// notify.Notifier; a nil Notifier disables notification.
type Notifier interface {
	Send(subject, htmlBody string) error
}

type Config struct {
	Mailbox mailbox.Config

	// Sender and Subject filter the SEARCH for statement emails.
	Sender  string
	Subject string

	Store store.RowStore

	RunLogTable    string
	StatementTable string
	PaymentTable   string
	LedgerTable    string

	// ScheduleTable/ScheduleJob locate the schedule-metadata record
	// touched after scheduled (non-manual) runs. Empty disables.
	ScheduleTable string
	ScheduleJob   string

	Seen        *ingest.SeenCache
	SelectChunk int
	InsertBatch int

	Notifier Notifier

	// Location is the timezone the bank issues statements in; the
	// default target date is "yesterday" in this zone.
	Location *time.Location
}

// Options are per-invocation overrides.
type Options struct {
	// Date is the statement date to search for; nil means yesterday in
	// the configured location.
	Date *time.Time

	// Manual marks an operator-triggered run, which must not touch the
	// schedule metadata.
	Manual bool
}

// statementZone is the bank's reporting timezone. Statements for day D
// arrive early on D+1 local time, so runs target "yesterday" in this
// zone regardless of where the pipeline itself is deployed.
var statementZone = time.FixedZone("UTC+3", 3*60*60)
