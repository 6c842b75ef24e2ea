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
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/openledger/bankfeed/internal"
	"github.com/openledger/bankfeed/mailbox"
	"github.com/openledger/bankfeed/sheet"
	"github.com/openledger/bankfeed/store"
)

type fakeNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (f *fakeNotifier) Send(subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return f.err
}

func testPumpConfig(addr string, ms *internal.MemStore, n Notifier) *Config {
	return &Config{
		Mailbox: mailbox.Config{
			HostPort: addr,
			TLS:      false,
			Username: "username",
			Password: "password",
			Mailbox:  "INBOX",
		},
		Sender:         "bank@example.com",
		Subject:        "Statement",
		Store:          ms,
		RunLogTable:    "pipeline_runs",
		StatementTable: "statements",
		PaymentTable:   "payments",
		LedgerTable:    "ledger",
		ScheduleTable:  "schedule",
		ScheduleJob:    "bank_statement",
		Notifier:       n,
	}
}

// makeStatementXLSX builds a workbook with the canonical header row and
// one data row per transaction number.
func makeStatementXLSX(t *testing.T, txnNumbers []string, refs []string) []byte {
	f := excelize.NewFile()

	header := []interface{}{"Txn. Number", "Txn. Amount", "Acquirer Private Data"}
	assert.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))

	for i, txn := range txnNumbers {
		ref := ""
		if i < len(refs) {
			ref = refs[i]
		}
		row := []interface{}{txn, "10.00", ref}
		cell := fmt.Sprintf("A%d", i+2)
		assert.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}
	return buf.Bytes()
}

func makeStatementEmail(subject string, attachment []byte) string {
	var b strings.Builder

	h := func(line string) { b.WriteString(line + "\r\n") }
	h("From: bank@example.com")
	h("To: reports@example.com")
	h("Subject: " + subject)
	h("MIME-Version: 1.0")
	h(`Content-Type: multipart/mixed; boundary="stmt"`)
	h("")
	h("--stmt")
	h("Content-Type: text/plain")
	h("")
	h("Daily statement attached.")
	h("--stmt")
	h(`Content-Type: application/vnd.ms-excel; name="report.xlsx"`)
	h(`Content-Disposition: attachment; filename="report.xlsx"`)
	h("Content-Transfer-Encoding: base64")
	h("")

	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		h(encoded[:76])
		encoded = encoded[76:]
	}
	h(encoded)
	h("--stmt--")

	return b.String()
}

func makePlainEmail(subject string) string {
	var b strings.Builder
	h := func(line string) { b.WriteString(line + "\r\n") }
	h("From: bank@example.com")
	h("To: reports@example.com")
	h("Subject: " + subject)
	h("Content-Type: text/plain")
	h("")
	h("No attachment here.")
	return b.String()
}

func yesterday() *time.Time {
	d := time.Now().AddDate(0, 0, -1)
	return &d
}

func TestRunNoEmail(t *testing.T) {
	_, addr, _ := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	fn := &fakeNotifier{}
	cfg := testPumpConfig(addr, ms, fn)
	ms.Seed("schedule", store.Row{"job_name": "bank_statement", "last_run_at": nil})

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusNoEmail, runLog.Status)
	assert.NotNil(t, runLog.FinishedAt)

	// Nothing written to the ledgers.
	assert.Equal(t, 0, ms.Inserts["statements"])

	// The outcome is still notified and recorded.
	assert.Len(t, fn.bodies, 1)
	assert.Contains(t, fn.bodies[0], "no_email")
	assert.Len(t, ms.Tables["pipeline_runs"], 1)
	assert.Equal(t, "no_email", ms.Tables["pipeline_runs"][0]["status"])

	// Scheduled run: the schedule record was touched.
	assert.NotNil(t, ms.Tables["schedule"][0]["last_run_at"])
}

func TestRunManualLeavesSchedule(t *testing.T) {
	_, addr, _ := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	cfg := testPumpConfig(addr, ms, &fakeNotifier{})
	ms.Seed("schedule", store.Row{"job_name": "bank_statement", "last_run_at": nil})

	_, err := Run(context.Background(), cfg, Options{Date: yesterday(), Manual: true})
	assert.NoError(t, err)
	assert.Nil(t, ms.Tables["schedule"][0]["last_run_at"])
}

func TestRunCompleted(t *testing.T) {
	_, addr, mb := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	fn := &fakeNotifier{}
	cfg := testPumpConfig(addr, ms, fn)

	xlsx := makeStatementXLSX(t, []string{"T-1", "T-2", "T-3"}, []string{"REF-1", "", ""})
	internal.SeedMessage(mb, 1, time.Now(), makeStatementEmail("Daily Statement 2026-08-27", xlsx))

	ms.Seed("payments", store.Row{sheet.KeyPaymentReference: "REF-1", sheet.KeyPaymentNumber: "P-100"})
	ms.Seed("ledger", store.Row{sheet.KeyPaymentReference: "REF-1", sheet.KeyPaymentNumber: nil})

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, runLog.Status)
	assert.Equal(t, "Daily Statement 2026-08-27", runLog.EmailSubject)
	assert.Equal(t, 3, runLog.RecordsInserted)
	assert.Equal(t, 0, runLog.RecordsSkipped)

	assert.Len(t, ms.Tables["statements"], 3)
	assert.Equal(t, "P-100", ms.Tables["ledger"][0][sheet.KeyPaymentNumber])

	assert.Len(t, fn.subjects, 1)
	assert.Contains(t, fn.subjects[0], "completed")
	assert.Contains(t, fn.bodies[0], "Daily Statement 2026-08-27")

	assert.Equal(t, "completed", ms.Tables["pipeline_runs"][0]["status"])
}

func TestRunSecondPassSkipsDuplicates(t *testing.T) {
	_, addr, mb := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	cfg := testPumpConfig(addr, ms, nil)

	xlsx := makeStatementXLSX(t, []string{"T-1", "T-2"}, nil)
	internal.SeedMessage(mb, 1, time.Now(), makeStatementEmail("Daily Statement", xlsx))

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, 2, runLog.RecordsInserted)

	runLog, err = Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, runLog.Status)
	assert.Equal(t, 0, runLog.RecordsInserted)
	assert.Equal(t, 2, runLog.RecordsSkipped)
	assert.Len(t, ms.Tables["statements"], 2)
}

func TestRunNewestCandidateWins(t *testing.T) {
	_, addr, mb := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	cfg := testPumpConfig(addr, ms, nil)

	older := makeStatementXLSX(t, []string{"T-OLD"}, nil)
	newer := makeStatementXLSX(t, []string{"T-NEW"}, nil)
	internal.SeedMessage(mb, 1, time.Now().Add(-2*time.Hour), makeStatementEmail("Daily Statement (original)", older))
	internal.SeedMessage(mb, 2, time.Now(), makeStatementEmail("Daily Statement (corrected)", newer))

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, runLog.Status)
	assert.Equal(t, "Daily Statement (corrected)", runLog.EmailSubject)
	assert.Equal(t, 1, runLog.RecordsInserted)
	assert.Equal(t, "T-NEW", ms.Tables["statements"][0][sheet.KeyTxnNumber])
}

func TestRunSkipsCandidateWithoutAttachment(t *testing.T) {
	_, addr, mb := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	cfg := testPumpConfig(addr, ms, nil)

	xlsx := makeStatementXLSX(t, []string{"T-1"}, nil)
	internal.SeedMessage(mb, 1, time.Now().Add(-2*time.Hour), makeStatementEmail("Daily Statement", xlsx))
	// Newest candidate matches the search but carries no spreadsheet.
	internal.SeedMessage(mb, 2, time.Now(), makePlainEmail("Daily Statement reminder"))

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, runLog.Status)
	assert.Equal(t, "Daily Statement", runLog.EmailSubject)
	assert.Equal(t, 1, runLog.RecordsInserted)
}

func TestRunEmptySpreadsheet(t *testing.T) {
	_, addr, mb := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	fn := &fakeNotifier{}
	cfg := testPumpConfig(addr, ms, fn)

	xlsx := makeStatementXLSX(t, nil, nil) // header only
	internal.SeedMessage(mb, 1, time.Now(), makeStatementEmail("Daily Statement", xlsx))

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusEmpty, runLog.Status)
	assert.Equal(t, 0, ms.Inserts["statements"])
	assert.Len(t, fn.bodies, 1)
}

func TestRunAuthFailure(t *testing.T) {
	_, addr, _ := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	cfg := testPumpConfig(addr, ms, nil)
	cfg.Mailbox.Password = "wrong"

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.Error(t, err)
	assert.Equal(t, store.StatusError, runLog.Status)
	assert.NotEmpty(t, runLog.ErrorMessage)
	assert.Equal(t, "error", ms.Tables["pipeline_runs"][0]["status"])
}

func TestRunNotifyFailureDoesNotAffectStatus(t *testing.T) {
	_, addr, mb := internal.BuildTestIMAPServer(t)
	ms := internal.NewMemStore()
	fn := &fakeNotifier{err: fmt.Errorf("smtp unreachable")}
	cfg := testPumpConfig(addr, ms, fn)

	xlsx := makeStatementXLSX(t, []string{"T-1"}, nil)
	internal.SeedMessage(mb, 1, time.Now(), makeStatementEmail("Daily Statement", xlsx))

	runLog, err := Run(context.Background(), cfg, Options{Date: yesterday()})
	assert.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, runLog.Status)
	assert.Equal(t, "completed", ms.Tables["pipeline_runs"][0]["status"])
}
