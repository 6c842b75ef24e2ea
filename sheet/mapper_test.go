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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func TestNormalizeVariants(t *testing.T) {
	variants := []string{"Txn. Number", "txn number", "TXN-NUMBER", " Txn  Number ", "Txn.Number"}
	for _, v := range variants {
		assert.Equal(t, "txnnumber", Normalize(v), v)
	}

	// '%' is load-bearing: it separates VAT from VAT %.
	assert.Equal(t, "vat", Normalize("VAT"))
	assert.Equal(t, "vat%", Normalize("VAT %"))
}

func TestMapRowsBannerHeader(t *testing.T) {
	rows := [][]string{
		{"Acquiring Bank Daily Report"},
		{"Merchant: 001234", "Period: 27.08.2026"},
		{},
		{"Txn. Number", "Txn. Date", "Txn. Amount", "VAT", "VAT %", "Acquirer Private Data"},
		{"T-1001", "27.08.2026", "150.00", "7.50", "5", "REF-9"},
		{"T-1002", "27.08.2026", "80.00", "", "5", ""},
	}

	result := MapRows(rows)
	assert.Equal(t, 3, result.HeaderRow)
	assert.False(t, result.Degraded)
	assert.Len(t, result.Records, 2)

	first := result.Records[0]
	assert.Equal(t, "T-1001", first.TxnNumber())
	assert.Equal(t, "150.00", first["txn_amount"])
	assert.Equal(t, "7.50", first["vat"])
	assert.Equal(t, "5", first["vat_percent"])
	assert.Equal(t, "REF-9", first[KeyAcquirerPrivateData])

	// Empty cells are absent, not defaulted.
	second := result.Records[1]
	_, hasVAT := second["vat"]
	assert.False(t, hasVAT)
	_, hasRef := second[KeyAcquirerPrivateData]
	assert.False(t, hasRef)
}

func TestMapRowsMissingAndExtra(t *testing.T) {
	rows := [][]string{
		{"Txn. Number", "Mystery Column", "Fee"},
		{"T-1", "whatever", "1.00"},
	}

	result := MapRows(rows)
	assert.Contains(t, result.Extra, "Mystery Column")
	assert.Contains(t, result.Missing, "Txn. Amount")
	assert.NotContains(t, result.Missing, "Fee")
	assert.NotContains(t, result.Missing, "Txn. Number")
}

func TestMapRowsNoHeaderFallsBack(t *testing.T) {
	rows := [][]string{
		{"nothing", "recognizable", "here"},
		{"a", "b", "c"},
	}

	result := MapRows(rows)
	assert.Equal(t, 0, result.HeaderRow)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Records)
}

func TestMapRowsDropsRowsWithoutTxnNumber(t *testing.T) {
	rows := [][]string{
		{"Txn. Number", "Txn. Amount"},
		{"T-1", "10.00"},
		{"", "99.00"},
		{"T-2", "20.00"},
	}

	result := MapRows(rows)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.DroppedInvalid)
	assert.Equal(t, "T-1", result.Records[0].TxnNumber())
	assert.Equal(t, "T-2", result.Records[1].TxnNumber())
}

func TestMapRowsEmpty(t *testing.T) {
	result := MapRows(nil)
	assert.Empty(t, result.Records)
	assert.Equal(t, 0, result.DroppedInvalid)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)

	cells := [][]any{
		{"Daily Acquiring Report"},
		{"Txn. Number", "Card Number", "Txn. Amount", "Payment Reference"},
		{"T-5001", "516899******1234", "42.00", "PAY-1"},
		{"T-5002", "516899******5678", "13.37", "PAY-2"},
	}
	for i, row := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		assert.NoError(t, err)
		assert.NoError(t, f.SetSheetRow(sheetName, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	result, err := Parse(buf.Bytes())
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	assert.Equal(t, 1, result.HeaderRow)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, "T-5001", result.Records[0].TxnNumber())
	assert.Equal(t, "PAY-2", result.Records[1][KeyPaymentReference])
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse([]byte("this is not a spreadsheet"))
	assert.Error(t, err)
}
