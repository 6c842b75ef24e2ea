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

package extract

import "errors"

// ErrNotFound means no part of the message carried a decodable
// spreadsheet attachment. This is a "nothing to do" signal, not a
// failure: the pipeline records a no-email-class outcome.
var ErrNotFound = errors.New("no spreadsheet attachment found")

// Part is one node of the MIME tree. A multipart node carries its
// boundary and children; a leaf carries its decoded-ready body text.
type Part struct {
	Headers  map[string]string
	Body     string
	Boundary string
	Children []*Part
}

// Attachment is the located spreadsheet: its declared filename and the
// base64-decoded payload.
type Attachment struct {
	Filename string
	Data     []byte
}

var spreadsheetExtensions = []string{".xlsx", ".xlsm", ".xls"}
