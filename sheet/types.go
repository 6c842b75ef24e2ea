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

package sheet

// Canonical statement row fields. Key is the storage column, Label the
// header name the bank report is expected to carry.
type Column struct {
	Key   string
	Label string
}

const (
	KeyTxnNumber           = "txn_number"
	KeyAcquirerPrivateData = "acquirer_private_data"
	KeyPaymentReference    = "payment_reference"
	KeyPaymentNumber       = "payment_number"
)

var Columns = []Column{
	{KeyTxnNumber, "Txn. Number"},
	{"txn_date", "Txn. Date"},
	{"card_number", "Card Number"},
	{"txn_amount", "Txn. Amount"},
	{"fee", "Fee"},
	{"vat", "VAT"},
	{"vat_percent", "VAT %"},
	{"net_amount", "Net Amount"},
	{"auth_code", "Auth Code"},
	{"txn_type", "Txn. Type"},
	{"card_type", "Card Type"},
	{"terminal_id", "Terminal ID"},
	{"payment_date", "Payment Date"},
	{"posting_date", "Posting Date"},
	{KeyPaymentNumber, "Payment Number"},
	{"merchant_account", "Merchant Account"},
	{"txn_certificate", "Txn. Certificate"},
	{KeyAcquirerPrivateData, "Acquirer Private Data"},
	{KeyPaymentReference, "Payment Reference"},
}

// Record maps canonical field keys to cell values. Cells that were
// empty in the source are simply absent, never defaulted.
type Record map[string]string

// TxnNumber returns the dedup key, or "" for an invalid record.
func (r Record) TxnNumber() string {
	return r[KeyTxnNumber]
}

// Result is the outcome of mapping one spreadsheet.
type Result struct {
	Records []Record

	// Missing lists canonical labels no source column matched; Extra
	// lists source headers with no canonical counterpart. Both feed the
	// run log for operator visibility.
	Missing []string
	Extra   []string

	HeaderRow int

	// Degraded is set when no header row was recognized within the scan
	// window and row 0 was assumed. Mapping may be empty or wrong, but
	// the pipeline carries on.
	Degraded bool

	// DroppedInvalid counts rows discarded for lacking a transaction
	// number. They appear in neither the inserted nor the duplicate
	// counts.
	DroppedInvalid int
}

// headerScanWindow is how many physical rows are searched for the
// anchor column before falling back to row 0. Bank reports prepend a
// few banner rows of report metadata; 20 is well past anything seen in
// practice.
const headerScanWindow = 20
