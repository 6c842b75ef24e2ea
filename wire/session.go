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

// Package wire implements the line-oriented transport session shared by
// the IMAP and SMTP clients. A session carries exactly one in-flight
// command at a time; reads are destructive, so a caller must fully drain
// a response before issuing the next command or it will corrupt framing.
package wire

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type Session struct {
	conn   net.Conn
	closed bool
}

// Dial opens a connection to cfg.HostPort, performing a TLS handshake
// when cfg.TLS is set. Failures of any kind (DNS, TCP, handshake) are
// reported as ErrConnection.
func Dial(cfg *Config) (*Session, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if cfg.TLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", cfg.HostPort, cfg.TLSConfig)
	} else {
		conn, err = dialer.Dial("tcp", cfg.HostPort)
	}

	if err != nil {
		log.WithError(err).WithField("host_port", cfg.HostPort).Error("wire_dial_failed")
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	log.WithFields(log.Fields{
		"host_port": cfg.HostPort,
		"tls":       cfg.TLS,
	}).Trace("wire_dial_ok")

	return &Session{conn: conn}, nil
}

// ReadUntil accumulates bytes from the socket until pred reports the
// accumulated text complete, or timeout elapses. A timeout is not an
// error; the (possibly empty, possibly partial) accumulation is returned
// and the caller decides whether it is usable.
func (s *Session) ReadUntil(pred func(string) bool, timeout time.Duration) string {
	if s.closed {
		return ""
	}

	var acc strings.Builder
	deadline := time.Now().Add(timeout)
	buf := make([]byte, readChunk)

	for {
		if pred(acc.String()) {
			break
		}

		if time.Now().After(deadline) {
			log.WithFields(log.Fields{
				"accumulated": acc.Len(),
				"timeout":     timeout,
			}).Trace("wire_read_timeout")
			break
		}

		_ = s.conn.SetReadDeadline(deadline)
		n, err := s.conn.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
		}

		if err != nil {
			if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
				log.WithError(err).Trace("wire_read_error")
			}
			break
		}
	}

	return acc.String()
}

// SendLine writes text followed by CRLF.
func (s *Session) SendLine(text string) error {
	if s.closed {
		return ErrClosed
	}

	if _, err := s.conn.Write([]byte(text + "\r\n")); err != nil {
		log.WithError(err).Trace("wire_send_failed")
		return err
	}

	return nil
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.conn.Close()
}
