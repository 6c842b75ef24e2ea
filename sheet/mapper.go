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

// Package sheet maps the decoded statement spreadsheet into normalized
// records. Column matching is exact after normalization (lowercase,
// punctuation stripped), which tolerates the formatting drift seen in
// bank report headers without resorting to fuzzy matching.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Parse opens the spreadsheet container and maps the first sheet.
func Parse(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return MapRows(rows), nil
}

// MapRows maps raw cell rows into canonical records.
func MapRows(rows [][]string) *Result {
	result := &Result{}

	if len(rows) == 0 {
		return result
	}

	anchor := Normalize(Columns[0].Label)
	result.HeaderRow = -1
	for i := 0; i < len(rows) && i < headerScanWindow; i++ {
		for _, cell := range rows[i] {
			if Normalize(cell) == anchor {
				result.HeaderRow = i
				break
			}
		}
		if result.HeaderRow >= 0 {
			break
		}
	}

	if result.HeaderRow < 0 {
		log.WithField("scanned", min(len(rows), headerScanWindow)).
			Warn("sheet_header_not_found_fallback_row0")
		result.HeaderRow = 0
		result.Degraded = true
	}

	byNormalized := map[string]Column{}
	for _, col := range Columns {
		n := Normalize(col.Label)
		if _, dup := byNormalized[n]; !dup {
			byNormalized[n] = col
		}
	}

	// column index -> canonical key
	mapping := map[int]string{}
	matched := map[string]bool{}
	for idx, label := range rows[result.HeaderRow] {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}

		col, ok := byNormalized[Normalize(trimmed)]
		if !ok || matched[col.Key] {
			result.Extra = append(result.Extra, trimmed)
			continue
		}

		mapping[idx] = col.Key
		matched[col.Key] = true
	}

	for _, col := range Columns {
		if !matched[col.Key] {
			result.Missing = append(result.Missing, col.Label)
		}
	}

	for _, row := range rows[result.HeaderRow+1:] {
		record := Record{}
		for idx, key := range mapping {
			if idx >= len(row) {
				continue
			}
			if value := strings.TrimSpace(row[idx]); value != "" {
				record[key] = value
			}
		}

		if len(record) == 0 {
			continue
		}

		// Sole mandatory-field rule: no transaction number, no record.
		if record.TxnNumber() == "" {
			result.DroppedInvalid++
			continue
		}

		result.Records = append(result.Records, record)
	}

	log.WithFields(log.Fields{
		"header_row": result.HeaderRow,
		"degraded":   result.Degraded,
		"records":    len(result.Records),
		"dropped":    result.DroppedInvalid,
		"missing":    result.Missing,
		"extra":      result.Extra,
	}).Info("sheet_mapped")

	return result
}

// Normalize lowercases and strips everything that is not a letter, a
// digit, or a percent sign. Keeping '%' is deliberate: it is the only
// thing distinguishing the "VAT" and "VAT %" columns.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '%':
			b.WriteRune(r)
		case r > 127:
			// Non-ASCII letters survive; the bank occasionally localizes
			// header text.
			b.WriteRune(r)
		}
	}
	return b.String()
}
