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
	"crypto/tls"
	"errors"
	"time"
)

var (
	// ErrAuth indicates the server rejected the LOGIN command.
	ErrAuth = errors.New("authentication rejected")

	// ErrMailbox indicates the SELECT command failed.
	ErrMailbox = errors.New("mailbox select failed")

	// ErrFetchIncomplete indicates the fetch ceiling elapsed before the
	// tagged terminator arrived. The partial data is unusable; the caller
	// should move on to the next candidate message.
	ErrFetchIncomplete = errors.New("fetch incomplete at ceiling")

	errNotConnected = errors.New("not connected")
)

type Config struct {
	HostPort  string
	TLS       bool
	TLSConfig *tls.Config
	Username  string
	Password  string
	Mailbox   string

	// CommandTimeout bounds control responses (LOGIN, SELECT, SEARCH,
	// header fetches). FetchCeiling bounds full-message fetches, which
	// can carry multi-megabyte base64 attachments.
	CommandTimeout time.Duration
	FetchCeiling   time.Duration
}

const (
	DefaultCommandTimeout = 30 * time.Second
	DefaultFetchCeiling   = 2 * time.Minute
)

type state int

const (
	StateDisconnected state = iota
	StateConnected
	StateAuthenticated
	StateSelected
	StateLoggedOut
)

func (s state) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateLoggedOut:
		return "logged_out"
	default:
		panic("invalid_state")
	}
}
