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

import (
	"regexp"
	"strings"
)

var boundaryRe = regexp.MustCompile(`(?i)boundary="?([^";\r\n]+)"?`)

// Parse builds the MIME tree of a raw message by recursive descent.
// It never fails: a malformed message simply yields a single leaf
// holding the whole text.
func Parse(raw string) *Part {
	return parsePart(raw, 0)
}

// maxDepth guards against pathological boundary nesting.
const maxDepth = 10

func parsePart(raw string, depth int) *Part {
	headerBlock, body := splitHeaderBody(raw)

	part := &Part{
		Headers: parseHeaders(headerBlock),
		Body:    body,
	}

	if depth >= maxDepth {
		return part
	}

	boundary := headerBoundary(part.Headers["content-type"])
	if boundary == "" {
		return part
	}

	children := splitOnBoundary(body, boundary)
	if len(children) == 0 {
		return part
	}

	part.Boundary = boundary
	part.Body = ""
	for _, child := range children {
		part.Children = append(part.Children, parsePart(child, depth+1))
	}

	return part
}

// Walk visits every node of the tree, leaves included, in document order.
func (p *Part) Walk(visit func(*Part) bool) bool {
	if !visit(p) {
		return false
	}
	for _, child := range p.Children {
		if !child.Walk(visit) {
			return false
		}
	}
	return true
}

func (p *Part) IsLeaf() bool {
	return len(p.Children) == 0
}

// splitHeaderBody splits a part at the first blank line. A part with no
// blank line is all headers if it looks like a header block, otherwise
// all body.
func splitHeaderBody(raw string) (string, string) {
	raw = strings.TrimLeft(raw, "\r\n")
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if i := strings.Index(raw, sep); i >= 0 {
			return raw[:i], raw[i+len(sep):]
		}
	}

	if strings.Contains(firstNonEmptyLine(raw), ":") {
		return raw, ""
	}
	return "", raw
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			return line
		}
	}
	return ""
}

// parseHeaders unfolds continuation lines and lowercases field names.
// Values are kept verbatim.
func parseHeaders(block string) map[string]string {
	headers := map[string]string{}

	var name, value string
	flush := func() {
		if name != "" {
			headers[name] = strings.TrimSpace(value)
		}
		name, value = "", ""
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			value += " " + strings.TrimSpace(line)
			continue
		}

		flush()
		if i := strings.Index(line, ":"); i > 0 {
			name = strings.ToLower(strings.TrimSpace(line[:i]))
			value = strings.TrimSpace(line[i+1:])
		}
	}
	flush()

	return headers
}

func headerBoundary(contentType string) string {
	m := boundaryRe.FindStringSubmatch(contentType)
	if m == nil {
		return ""
	}
	return m[1]
}

// splitOnBoundary cuts body into its delimited parts, dropping the
// preamble before the first delimiter and the epilogue after the closing
// one.
func splitOnBoundary(body, boundary string) []string {
	pieces := strings.Split(body, "--"+boundary)
	if len(pieces) < 2 {
		return nil
	}

	var parts []string
	for _, piece := range pieces[1:] {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" || trimmed == "--" {
			continue
		}
		// The piece after the closing delimiter starts with "--".
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		parts = append(parts, piece)
	}

	return parts
}

// AllBoundaries returns every boundary token declared anywhere in the
// raw text, in order of first occurrence. Forwarded banking reports can
// declare boundaries whose opening Content-Type header was mangled, so
// the flat fallback scan honors every token it can find.
func AllBoundaries(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range boundaryRe.FindAllStringSubmatch(raw, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
