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
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/openledger/bankfeed/store"
)

// buildReport renders the status email for a finished run.
func buildReport(r *store.RunLog) (string, string) {
	subject := fmt.Sprintf("Bank statement run %s: %s",
		r.StartedAt.Format("2006-01-02"), r.Status)

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h3>Bank statement run</h3>")
	b.WriteString("<table border=\"0\" cellpadding=\"4\">")

	row := func(name, value string) {
		b.WriteString("<tr><td><b>" + name + "</b></td><td>" +
			html.EscapeString(value) + "</td></tr>")
	}

	row("Run", r.ID)
	row("Status", string(r.Status))
	if r.EmailSubject != "" {
		row("Email", r.EmailSubject)
	}
	row("Inserted", strconv.Itoa(r.RecordsInserted))
	row("Skipped (duplicate)", strconv.Itoa(r.RecordsSkipped))
	if r.RecordsFailed > 0 {
		row("Failed", strconv.Itoa(r.RecordsFailed))
	}
	if len(r.MissingColumns) > 0 {
		row("Missing columns", strings.Join(r.MissingColumns, ", "))
	}
	if len(r.ExtraColumns) > 0 {
		row("Extra columns", strings.Join(r.ExtraColumns, ", "))
	}
	if r.ErrorMessage != "" {
		row("Error", r.ErrorMessage)
	}

	b.WriteString("</table></body></html>")
	return subject, b.String()
}
