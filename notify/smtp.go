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

// Package notify sends the pipeline status email over a raw SMTP
// session (implicit TLS). Each step verifies the reply's status class
// and aborts the whole send on a mismatch; a failed notification is a
// logged condition, never a pipeline failure.
package notify

import (
	"encoding/base64"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openledger/bankfeed/wire"
)

type Notifier struct {
	cfg Config
}

func New(cfg Config) *Notifier {
	if cfg.ReplyTimeout == 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	return &Notifier{cfg: cfg}
}

// replyComplete reports whether acc holds a full reply: a terminated
// line of the form "NNN text" (or bare "NNN"). Lines like "250-..." are
// continuations and don't end the reply.
func replyComplete(acc string) bool {
	lines := strings.Split(acc, "\r\n")
	for _, line := range lines[:len(lines)-1] {
		if len(line) >= 3 && isDigits(line[:3]) && (len(line) == 3 || line[3] == ' ') {
			return true
		}
	}
	return false
}

// Send runs the full session: greeting, EHLO, AUTH LOGIN, MAIL FROM,
// RCPT TO, DATA, QUIT.
func (n *Notifier) Send(subject, htmlBody string) error {
	session, err := wire.Dial(&wire.Config{
		HostPort:  n.cfg.HostPort,
		TLS:       n.cfg.TLS,
		TLSConfig: n.cfg.TLSConfig,
	})
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := n.expect(session, "greeting", "220"); err != nil {
		return err
	}

	if err := n.step(session, "EHLO bankfeed", "ehlo", "250"); err != nil {
		return err
	}

	if err := n.step(session, "AUTH LOGIN", "auth", "334"); err != nil {
		return err
	}
	if err := n.step(session, b64(n.cfg.Username), "auth_username", "334"); err != nil {
		return err
	}
	if err := n.step(session, b64(n.cfg.Password), "auth_password", "235"); err != nil {
		return err
	}

	if err := n.step(session, "MAIL FROM:<"+n.cfg.From+">", "mail_from", "250"); err != nil {
		return err
	}

	for _, rcpt := range n.cfg.To {
		if err := n.step(session, "RCPT TO:<"+rcpt+">", "rcpt_to", "250"); err != nil {
			return err
		}
	}

	if err := n.step(session, "DATA", "data", "354"); err != nil {
		return err
	}

	message := buildMessage(n.cfg.From, n.cfg.To, subject, htmlBody, time.Now())
	if err := session.SendLine(message + "\r\n."); err != nil {
		return err
	}
	if err := n.expect(session, "data_body", "250"); err != nil {
		return err
	}

	// QUIT is a courtesy; the connection is closed either way.
	if err := n.step(session, "QUIT", "quit", "221"); err != nil {
		log.WithError(err).Trace("notify_quit_failed")
	}

	log.WithFields(log.Fields{
		"to":      n.cfg.To,
		"subject": subject,
	}).Info("notify_sent")

	return nil
}

func (n *Notifier) step(session *wire.Session, line, stepName, wantClass string) error {
	if err := session.SendLine(line); err != nil {
		return err
	}
	return n.expect(session, stepName, wantClass)
}

// expect reads one full (possibly multiline) reply and verifies its
// final status line starts with wantClass.
func (n *Notifier) expect(session *wire.Session, stepName, wantClass string) error {
	reply := session.ReadUntil(replyComplete, n.cfg.ReplyTimeout)

	status := finalStatus(reply)
	if !strings.HasPrefix(status, wantClass) {
		log.WithFields(log.Fields{
			"step":   stepName,
			"want":   wantClass,
			"status": status,
		}).Error("notify_unexpected_status")
		return &UnexpectedStatusError{Step: stepName, Want: wantClass, Status: status}
	}

	return nil
}

// finalStatus returns the status line of a reply, skipping "250-"
// continuation lines.
func finalStatus(reply string) string {
	for _, line := range strings.Split(reply, "\r\n") {
		if len(line) >= 4 && line[3] == '-' {
			continue
		}
		if len(line) >= 3 && isDigits(line[:3]) {
			return strings.TrimSpace(line)
		}
	}
	return strings.TrimSpace(reply)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
