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

// Package extract locates the base64 spreadsheet attachment buried
// inside a forwarded banking report email. The message is modelled as a
// recursive MIME tree (see parser.go); if the tree search comes up
// empty, a tolerant flat scan over every declared boundary token is
// tried before giving up.
package extract

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var filenameRe = regexp.MustCompile(`(?i)(?:file)?name(\*)?=(?:"([^"]*)"|([^";\s]+))`)

// Find returns the first decodable spreadsheet attachment in the raw
// message, or ErrNotFound. Candidates that fail to decode are skipped,
// not fatal; scanning continues with the next part.
func Find(raw string) (*Attachment, error) {
	var found *Attachment

	Parse(raw).Walk(func(p *Part) bool {
		if !p.IsLeaf() {
			return true
		}
		if att := tryPart(p.Headers, p.Body); att != nil {
			found = att
			return false
		}
		return true
	})

	if found != nil {
		return found, nil
	}

	// Flat fallback: re-split the whole message on every boundary token
	// it declares, treating each piece as a standalone part.
	for _, boundary := range AllBoundaries(raw) {
		for _, piece := range splitOnBoundary(raw, boundary) {
			headerBlock, body := splitHeaderBody(piece)
			if att := tryPart(parseHeaders(headerBlock), body); att != nil {
				return att, nil
			}
		}
	}

	return nil, ErrNotFound
}

// tryPart decides whether one part is the spreadsheet attachment and
// decodes it. Returns nil if the part does not qualify or its payload
// does not decode.
func tryPart(headers map[string]string, body string) *Attachment {
	filename := partFilename(headers)
	if filename == "" || !isSpreadsheet(filename) {
		return nil
	}

	if !strings.Contains(strings.ToLower(headers["content-transfer-encoding"]), "base64") {
		log.WithFields(log.Fields{
			"filename": filename,
			"encoding": headers["content-transfer-encoding"],
		}).Warn("extract_unsupported_encoding")
		return nil
	}

	data, err := decodePayload(body)
	if err != nil {
		log.WithError(err).WithField("filename", filename).Warn("extract_decode_failed")
		return nil
	}

	log.WithFields(log.Fields{
		"filename": filename,
		"size":     len(data),
	}).Info("extract_attachment_found")

	return &Attachment{Filename: filename, Data: data}
}

// partFilename pulls a filename out of Content-Disposition or
// Content-Type. A part qualifies when it is an explicit attachment or
// carries a bare filename=/name= parameter. RFC 2231 extended values
// (`filename*=UTF-8''...`) have the encoding prefix stripped and
// percent-escapes undone.
func partFilename(headers map[string]string) string {
	disposition := headers["content-disposition"]
	contentType := headers["content-type"]

	source := ""
	if strings.Contains(strings.ToLower(disposition), "attachment") {
		source = disposition
	}
	if source == "" {
		for _, h := range []string{disposition, contentType} {
			if filenameRe.MatchString(h) {
				source = h
				break
			}
		}
	}
	if source == "" {
		return ""
	}

	m := filenameRe.FindStringSubmatch(source)
	if m == nil {
		return ""
	}

	value := m[2]
	if value == "" {
		value = m[3]
	}

	if m[1] == "*" || strings.Contains(value, "''") {
		if i := strings.Index(value, "''"); i >= 0 {
			value = value[i+2:]
		}
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
	}

	return strings.TrimSpace(value)
}

func isSpreadsheet(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range spreadsheetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// decodePayload cleans a base64 part body and decodes it: line breaks
// and interior whitespace are stripped, trailing boundary/protocol
// artifacts are trimmed back to the base64 alphabet, and the result is
// padded to a multiple of four before decoding.
func decodePayload(body string) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(body))
	for _, r := range body {
		switch r {
		case '\r', '\n', ' ', '\t':
		default:
			b.WriteRune(r)
		}
	}

	payload := b.String()

	// Trim trailing junk: closing boundary dashes, parens, stray status
	// tokens. Anything outside the alphabet cannot be payload.
	end := len(payload)
	for end > 0 && !isBase64Char(payload[end-1]) {
		end--
	}
	payload = payload[:end]

	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}

	return base64.StdEncoding.DecodeString(payload)
}

func isBase64Char(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+' || c == '/' || c == '=':
		return true
	default:
		return false
	}
}
