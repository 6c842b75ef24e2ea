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

package mailbox

import (
	"bufio"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	log "github.com/sirupsen/logrus"
)

// Subject extracts and decodes the Subject field from a raw header
// block. RFC 2047 encoded words are decoded; on any parse failure the
// raw (undecoded) value is returned so the run log still captures
// something useful.
func Subject(rawHeader string) string {
	th, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(rawHeader)))
	if err != nil {
		log.WithError(err).Trace("mailbox_header_parse_failed")
		return rawSubject(rawHeader)
	}

	h := message.Header{Header: th}
	subject, err := h.Text("Subject")
	if err != nil {
		log.WithError(err).Trace("mailbox_subject_decode_failed")
		return h.Get("Subject")
	}

	return subject
}

func rawSubject(rawHeader string) string {
	for _, line := range strings.Split(rawHeader, "\r\n") {
		if len(line) >= 8 && strings.EqualFold(line[:8], "Subject:") {
			return strings.TrimSpace(line[8:])
		}
	}
	return ""
}
