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
	"bufio"
	"encoding/base64"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeSMTP is a single-connection scripted server. It replies to each
// command with a canned status and records everything the client sends.
type fakeSMTP struct {
	addr       string
	rejectAuth bool

	mtx      sync.Mutex
	commands []string
	data     []string
}

func startFakeSMTP(t *testing.T, rejectAuth bool) *fakeSMTP {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	f := &fakeSMTP{addr: l.Addr().String(), rejectAuth: rejectAuth}

	go func() {
		defer func() { _ = l.Close() }()
		conn, err := l.Accept()
		if err != nil {
			return
		}
		f.serve(conn)
	}()

	t.Cleanup(func() { _ = l.Close() })
	return f
}

func (f *fakeSMTP) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	w := func(reply string) { _, _ = conn.Write([]byte(reply + "\r\n")) }
	r := bufio.NewReader(conn)
	readLine := func() (string, bool) {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", false
		}
		return strings.TrimRight(line, "\r\n"), true
	}

	w("220 fake.example ESMTP ready")

	authStage := 0
	for {
		line, ok := readLine()
		if !ok {
			return
		}
		f.record(line)

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EHLO"):
			// Multiline reply: the client must wait for the final line.
			w("250-fake.example")
			w("250 AUTH LOGIN PLAIN")
		case upper == "AUTH LOGIN":
			authStage = 1
			w("334 VXNlcm5hbWU6")
		case authStage == 1:
			authStage = 2
			w("334 UGFzc3dvcmQ6")
		case authStage == 2:
			authStage = 0
			if f.rejectAuth {
				w("535 5.7.8 authentication credentials invalid")
			} else {
				w("235 2.7.0 authentication successful")
			}
		case strings.HasPrefix(upper, "MAIL FROM"):
			w("250 2.1.0 sender ok")
		case strings.HasPrefix(upper, "RCPT TO"):
			w("250 2.1.5 recipient ok")
		case upper == "DATA":
			w("354 end data with <CRLF>.<CRLF>")
			for {
				body, ok := readLine()
				if !ok {
					return
				}
				if body == "." {
					break
				}
				f.mtx.Lock()
				f.data = append(f.data, body)
				f.mtx.Unlock()
			}
			w("250 2.0.0 message accepted")
		case upper == "QUIT":
			w("221 2.0.0 bye")
			return
		default:
			w("500 5.5.2 unrecognized command")
		}
	}
}

func (f *fakeSMTP) record(line string) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.commands = append(f.commands, line)
}

func (f *fakeSMTP) sawCommand(prefix string) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, c := range f.commands {
		if strings.HasPrefix(strings.ToUpper(c), strings.ToUpper(prefix)) {
			return true
		}
	}
	return false
}

func (f *fakeSMTP) dataBody() string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return strings.Join(f.data, "\r\n")
}

func testNotifier(addr string) *Notifier {
	return New(Config{
		HostPort:     addr,
		TLS:          false,
		Username:     "reports@example.com",
		Password:     "hunter2",
		From:         "reports@example.com",
		To:           []string{"ops@example.com", "finance@example.com"},
		ReplyTimeout: 2 * time.Second,
	})
}

func TestSend(t *testing.T) {
	f := startFakeSMTP(t, false)
	n := testNotifier(f.addr)

	err := n.Send("Выписка обработана", "<p>42 rows inserted</p>")
	assert.NoError(t, err)

	assert.True(t, f.sawCommand("EHLO"))
	assert.True(t, f.sawCommand("MAIL FROM:<reports@example.com>"))
	assert.True(t, f.sawCommand("RCPT TO:<ops@example.com>"))
	assert.True(t, f.sawCommand("RCPT TO:<finance@example.com>"))
	assert.True(t, f.sawCommand("QUIT"))

	body := f.dataBody()
	assert.Contains(t, body, "Subject: "+encodeSubject("Выписка обработана"))
	assert.Contains(t, body, "Content-Transfer-Encoding: base64")

	// The encoded payload round-trips to the original HTML.
	idx := strings.Index(body, "\r\n\r\n")
	assert.Greater(t, idx, 0)
	if idx <= 0 {
		t.FailNow()
	}
	payload := strings.ReplaceAll(body[idx+4:], "\r\n", "")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	assert.NoError(t, err)
	assert.Equal(t, "<p>42 rows inserted</p>", string(decoded))
}

func TestSendAuthRejected(t *testing.T) {
	f := startFakeSMTP(t, true)
	n := testNotifier(f.addr)

	err := n.Send("subject", "body")
	var statusErr *UnexpectedStatusError
	assert.ErrorAs(t, err, &statusErr)
	if statusErr == nil {
		t.FailNow()
	}
	assert.Equal(t, "auth_password", statusErr.Step)
	assert.True(t, strings.HasPrefix(statusErr.Status, "535"))

	// The session never got past authentication.
	assert.False(t, f.sawCommand("MAIL FROM"))
	assert.False(t, f.sawCommand("DATA"))
}

func TestFoldBase64(t *testing.T) {
	long := strings.Repeat("QUJD", 60) // 240 chars
	folded := foldBase64(long)

	for _, line := range strings.Split(strings.TrimRight(folded, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), mimeLineLength)
		assert.NotEqual(t, ".", line)
	}
	assert.Equal(t, long, strings.ReplaceAll(folded, "\r\n", ""))
}
