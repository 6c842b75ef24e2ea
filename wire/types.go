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

package wire

import (
	"crypto/tls"
	"errors"
	"time"
)

var (
	// ErrConnection covers DNS resolution, TCP connect, and TLS
	// handshake failures.
	ErrConnection = errors.New("connection failed")

	ErrClosed = errors.New("session closed")
)

type Config struct {
	HostPort  string
	TLS       bool
	TLSConfig *tls.Config

	// DialTimeout bounds the initial connect. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
}

const (
	DefaultDialTimeout = 30 * time.Second

	// readChunk is the per-read buffer size. Responses larger than this
	// are accumulated across reads by ReadUntil.
	readChunk = 4096
)
