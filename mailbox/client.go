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

// Package mailbox implements the minimal tagged IMAP client used to
// locate and download the daily statement email. Only the commands the
// pipeline needs are implemented: LOGIN, SELECT, SEARCH, FETCH, LOGOUT.
package mailbox

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openledger/bankfeed/wire"
)

type Client struct {
	session *wire.Session
	cfg     *Config
	seq     int
	state   state
}

// Connect dials the server and consumes the untagged greeting.
func Connect(cfg *Config) (*Client, error) {
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.FetchCeiling == 0 {
		cfg.FetchCeiling = DefaultFetchCeiling
	}

	session, err := wire.Dial(&wire.Config{
		HostPort:  cfg.HostPort,
		TLS:       cfg.TLS,
		TLSConfig: cfg.TLSConfig,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{session: session, cfg: cfg, state: StateConnected}

	greeting := session.ReadUntil(hasLine, cfg.CommandTimeout)
	if !strings.HasPrefix(greeting, "* OK") {
		_ = session.Close()
		return nil, fmt.Errorf("%w: unexpected greeting %q", wire.ErrConnection, firstLine(greeting))
	}

	log.WithField("greeting", firstLine(greeting)).Trace("mailbox_greeting")
	return c, nil
}

func (c *Client) nextTag() string {
	c.seq++
	return fmt.Sprintf("a%03d", c.seq)
}

// command issues one tagged command and drains the response up to the
// tagged terminator. It returns the full response text and the status
// remainder of the tagged line ("OK ...", "NO ...", ...). An empty
// status means the terminator never arrived within the timeout.
func (c *Client) command(cmd string, timeout time.Duration) (string, string, error) {
	tag := c.nextTag()
	if err := c.session.SendLine(tag + " " + cmd); err != nil {
		return "", "", err
	}

	response := c.session.ReadUntil(func(acc string) bool {
		return taggedStatus(acc, tag) != ""
	}, timeout)

	return response, taggedStatus(response, tag), nil
}

// Login authenticates with a quoted-string LOGIN command. Backslash and
// double-quote characters in the credentials are escaped per the quoting
// rules; anything else is passed through verbatim.
func (c *Client) Login() error {
	if c.state != StateConnected {
		return errNotConnected
	}

	cmd := fmt.Sprintf("LOGIN %s %s", quote(c.cfg.Username), quote(c.cfg.Password))
	_, status, err := c.command(cmd, c.cfg.CommandTimeout)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(status, "OK") {
		log.WithFields(log.Fields{
			"username": c.cfg.Username,
			"status":   status,
		}).Error("mailbox_login_rejected")
		return ErrAuth
	}

	c.state = StateAuthenticated
	log.WithField("username", c.cfg.Username).Trace("mailbox_login_ok")
	return nil
}

// Select selects the configured mailbox.
func (c *Client) Select() error {
	if c.state != StateAuthenticated {
		return errNotConnected
	}

	_, status, err := c.command("SELECT "+quote(c.cfg.Mailbox), c.cfg.CommandTimeout)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(status, "OK") {
		log.WithFields(log.Fields{
			"mailbox": c.cfg.Mailbox,
			"status":  status,
		}).Error("mailbox_select_rejected")
		return ErrMailbox
	}

	c.state = StateSelected
	return nil
}

// SearchSince returns the sequence numbers of messages received on or
// after date, from sender, whose subject contains subject. An empty
// result is not an error; it signals "nothing to do today". A malformed
// response is likewise treated as no matches.
func (c *Client) SearchSince(date time.Time, sender, subject string) ([]uint32, error) {
	if c.state != StateSelected {
		return nil, errNotConnected
	}

	cmd := fmt.Sprintf("SEARCH SINCE %s FROM %s SUBJECT %s",
		date.Format("2-Jan-2006"), quote(sender), quote(subject))

	response, status, err := c.command(cmd, c.cfg.CommandTimeout)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(status, "OK") {
		log.WithField("status", status).Warn("mailbox_search_not_ok")
		return nil, nil
	}

	var ids []uint32
	for _, line := range strings.Split(response, "\r\n") {
		if !strings.HasPrefix(line, "* SEARCH") {
			continue
		}
		for _, field := range strings.Fields(line)[2:] {
			n, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				log.WithField("field", field).Warn("mailbox_search_bad_id")
				continue
			}
			ids = append(ids, uint32(n))
		}
	}

	log.WithField("ids", ids).Trace("mailbox_search_result")
	return ids, nil
}

// FetchHeaders retrieves the raw header block of one message without
// marking it as read.
func (c *Client) FetchHeaders(id uint32) (string, error) {
	if c.state != StateSelected {
		return "", errNotConnected
	}

	cmd := fmt.Sprintf("FETCH %d (BODY.PEEK[HEADER])", id)
	response, status, err := c.command(cmd, c.cfg.CommandTimeout)
	if err != nil {
		return "", err
	}

	if status == "" || !strings.HasPrefix(status, "OK") {
		return "", fmt.Errorf("header fetch failed for message %d: %q", id, status)
	}

	return fetchPayload(response), nil
}

// FetchMessage retrieves the entire raw message. The read runs under the
// fetch ceiling rather than the command timeout; if the ceiling elapses
// with only partial data, that message is abandoned with
// ErrFetchIncomplete and the caller proceeds to the next candidate.
func (c *Client) FetchMessage(id uint32) (string, error) {
	if c.state != StateSelected {
		return "", errNotConnected
	}

	cmd := fmt.Sprintf("FETCH %d (BODY.PEEK[])", id)
	response, status, err := c.command(cmd, c.cfg.FetchCeiling)
	if err != nil {
		return "", err
	}

	if status == "" {
		log.WithFields(log.Fields{
			"id":      id,
			"partial": len(response),
		}).Warn("mailbox_fetch_ceiling_hit")
		return "", ErrFetchIncomplete
	}

	if !strings.HasPrefix(status, "OK") {
		return "", fmt.Errorf("fetch failed for message %d: %q", id, status)
	}

	return fetchPayload(response), nil
}

// Logout is best-effort; the connection is being torn down regardless.
func (c *Client) Logout() {
	if c.state == StateLoggedOut || c.session == nil {
		return
	}

	if _, _, err := c.command("LOGOUT", 5*time.Second); err != nil {
		log.WithError(err).Trace("mailbox_logout_failed")
	}

	_ = c.session.Close()
	c.state = StateLoggedOut
}

// quote wraps s in an IMAP quoted string, escaping backslash and
// double-quote.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func hasLine(acc string) bool {
	return strings.Contains(acc, "\r\n")
}

func firstLine(s string) string {
	if i := strings.Index(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// taggedStatus finds the tagged terminator line and returns everything
// after the tag, or "" if the terminator has not arrived yet.
func taggedStatus(acc, tag string) string {
	prefix := tag + " "
	for _, line := range strings.Split(acc, "\r\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimPrefix(line, prefix)
		}
	}
	return ""
}

// fetchPayload extracts the literal payload from a FETCH response. The
// well-formed shape is `* n FETCH (... {size}CRLF<size bytes>...)`; if
// the literal marker cannot be interpreted, everything between the first
// line and the final untagged close is returned as a tolerant fallback.
func fetchPayload(response string) string {
	open := strings.Index(response, "{")
	close_ := strings.Index(response, "}\r\n")
	if open >= 0 && close_ > open {
		if size, err := strconv.Atoi(response[open+1 : close_]); err == nil {
			start := close_ + 3
			if start+size <= len(response) {
				return response[start : start+size]
			}
		}
	}

	// Tolerant fallback: strip the first response line and anything from
	// the closing paren line onward.
	body := response
	if i := strings.Index(body, "\r\n"); i >= 0 {
		body = body[i+2:]
	}
	if i := strings.LastIndex(body, "\r\n)"); i >= 0 {
		body = body[:i]
	}
	return body
}
