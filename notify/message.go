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
	"encoding/base64"
	"strings"
	"time"
)

// mimeLineLength is the folding width for base64 body lines.
const mimeLineLength = 76

// buildMessage composes the outbound status email. The subject is
// encoded as an RFC 2047 word so non-ASCII report titles survive; the
// HTML body travels base64-encoded and folded. Base64 lines can never
// begin with a dot, so no dot-stuffing is needed before the DATA
// terminator.
func buildMessage(from string, to []string, subject, htmlBody string, now time.Time) string {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + encodeSubject(subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(foldBase64(base64.StdEncoding.EncodeToString([]byte(htmlBody))))

	return b.String()
}

func encodeSubject(subject string) string {
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?="
}

func foldBase64(encoded string) string {
	var b strings.Builder
	for len(encoded) > mimeLineLength {
		b.WriteString(encoded[:mimeLineLength] + "\r\n")
		encoded = encoded[mimeLineLength:]
	}
	b.WriteString(encoded + "\r\n")
	return b.String()
}
