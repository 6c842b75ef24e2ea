package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openledger/bankfeed/pump"
)

func getTestCliConfig() CliConfig {
	cfg := DefaultConfig()
	cfg.IMAP = MailConfig{
		URL:      "imaps://imap.hostname.com:1234/INBOX",
		Username: "username",
		Password: "password",
	}
	cfg.Sender = "bank@example.com"
	cfg.Subject = "Statement"
	return cfg
}

func TestMailConfig_Resolve(t *testing.T) {
	t.Run("imaps", func(t *testing.T) {
		cfg := MailConfig{URL: "imaps://imap.hostname.com/Reports", Username: "u", Password: "p"}

		hostPort, mbox, useTLS, tlsConfig, pass, err := cfg.resolve("imap")
		assert.NoError(t, err)
		assert.Equal(t, "imap.hostname.com:993", hostPort)
		assert.Equal(t, "Reports", mbox)
		assert.True(t, useTLS)
		assert.Nil(t, tlsConfig)
		assert.Equal(t, "p", pass)
	})

	t.Run("imap_explicit_port", func(t *testing.T) {
		cfg := MailConfig{URL: "imap://imap.hostname.com:1143", Username: "u", Password: "p"}

		hostPort, mbox, useTLS, _, _, err := cfg.resolve("imap")
		assert.NoError(t, err)
		assert.Equal(t, "imap.hostname.com:1143", hostPort)
		assert.Equal(t, "", mbox)
		assert.False(t, useTLS)
	})

	t.Run("smtps_default_port", func(t *testing.T) {
		cfg := MailConfig{URL: "smtps://mail.hostname.com", Username: "u", Password: "p"}

		hostPort, _, useTLS, _, _, err := cfg.resolve("smtp")
		assert.NoError(t, err)
		assert.Equal(t, "mail.hostname.com:465", hostPort)
		assert.True(t, useTLS)
	})

	t.Run("invalid_scheme", func(t *testing.T) {
		cfg := MailConfig{URL: "http://imap.hostname.com", Username: "u", Password: "p"}

		_, _, _, _, _, err := cfg.resolve("imap")
		assert.ErrorIs(t, err, errInvalidScheme)
	})

	t.Run("tls_skip_verify", func(t *testing.T) {
		cfg := MailConfig{URL: "imaps://imap.hostname.com", Username: "u", Password: "p", TLSSkipVerify: true}

		_, _, _, tlsConfig, _, err := cfg.resolve("imap")
		assert.NoError(t, err)
		assert.Equal(t, &tls.Config{InsecureSkipVerify: true}, tlsConfig)
	})

	t.Run("password_file", func(t *testing.T) {
		passFile := filepath.Join(t.TempDir(), "pass.txt")
		assert.NoError(t, os.WriteFile(passFile, []byte("secret\n"), 0600))

		cfg := MailConfig{URL: "imaps://imap.hostname.com", Username: "u", PasswordFile: passFile}

		_, _, _, _, pass, err := cfg.resolve("imap")
		assert.NoError(t, err)
		assert.Equal(t, "secret", pass)
	})

	t.Run("no_password", func(t *testing.T) {
		cfg := MailConfig{URL: "imaps://imap.hostname.com", Username: "u"}

		_, _, _, _, _, err := cfg.resolve("imap")
		assert.Error(t, err)
	})
}

func TestBuildPipelineConfig(t *testing.T) {
	t.Run("mailbox", func(t *testing.T) {
		cfg := getTestCliConfig()

		pipeConfig := pump.Config{}
		err := cfg.BuildPipelineConfig(&pipeConfig)
		assert.NoError(t, err)

		assert.Equal(t, "imap.hostname.com:1234", pipeConfig.Mailbox.HostPort)
		assert.True(t, pipeConfig.Mailbox.TLS)
		assert.Equal(t, "username", pipeConfig.Mailbox.Username)
		assert.Equal(t, "password", pipeConfig.Mailbox.Password)
		assert.Equal(t, "INBOX", pipeConfig.Mailbox.Mailbox)
		assert.Equal(t, "bank@example.com", pipeConfig.Sender)
		assert.Equal(t, "Statement", pipeConfig.Subject)
		assert.Nil(t, pipeConfig.Notifier)
	})

	t.Run("default_mailbox", func(t *testing.T) {
		cfg := getTestCliConfig()
		cfg.IMAP.URL = "imaps://imap.hostname.com"

		pipeConfig := pump.Config{}
		assert.NoError(t, cfg.BuildPipelineConfig(&pipeConfig))
		assert.Equal(t, "INBOX", pipeConfig.Mailbox.Mailbox)
	})

	t.Run("notifier", func(t *testing.T) {
		cfg := getTestCliConfig()
		cfg.SMTP = MailConfig{
			URL:      "smtps://mail.hostname.com",
			Username: "reports@example.com",
			Password: "password",
		}
		cfg.NotifyTo = "ops@example.com, finance@example.com"

		pipeConfig := pump.Config{}
		assert.NoError(t, cfg.BuildPipelineConfig(&pipeConfig))
		assert.NotNil(t, pipeConfig.Notifier)
	})

	t.Run("notifier_requires_recipients", func(t *testing.T) {
		cfg := getTestCliConfig()
		cfg.SMTP = MailConfig{
			URL:      "smtps://mail.hostname.com",
			Username: "reports@example.com",
			Password: "password",
		}

		pipeConfig := pump.Config{}
		assert.Error(t, cfg.BuildPipelineConfig(&pipeConfig))
	})

	t.Run("recipients", func(t *testing.T) {
		assert.Equal(t, []string{"a@x", "b@x"}, splitRecipients("a@x, b@x,"))
		assert.Nil(t, splitRecipients(""))
	})
}
