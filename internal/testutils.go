package internal

import (
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
)

// BuildTestIMAPServer starts an in-memory IMAP server with a single
// "username"/"password" account and an emptied INBOX, for exercising the
// mailbox client against a real protocol implementation.
func BuildTestIMAPServer(t *testing.T) (*server.Server, string, *memory.Mailbox) {
	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	mb, err := user.GetMailbox("INBOX")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	mailbox := mb.(*memory.Mailbox)
	mailbox.Messages = nil

	s := server.New(be)
	t.Cleanup(func() { _ = s.Close() })

	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	go func() { err = s.Serve(l) }()

	return s, l.Addr().String(), mailbox
}

// SeedMessage appends a raw RFC 822 message to the in-memory mailbox
// with the given internal date.
func SeedMessage(mailbox *memory.Mailbox, uid uint32, date time.Time, raw string) {
	mailbox.Messages = append(mailbox.Messages, &memory.Message{
		Uid:   uid,
		Date:  date,
		Size:  uint32(len(raw)),
		Flags: []string{},
		Body:  []byte(raw),
	})
}
