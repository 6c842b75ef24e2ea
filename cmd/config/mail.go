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

package config

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func (cfg *MailConfig) makeMailParameters(lowerPrefix string, required bool) []cli.Flag {
	upperPrefix := strings.ToUpper(lowerPrefix)

	return []cli.Flag{
		&cli.StringFlag{
			Name:        fmt.Sprintf("%v-url", lowerPrefix),
			Usage:       fmt.Sprintf("%v url", lowerPrefix),
			EnvVars:     []string{fmt.Sprintf("BANKFEED_%v_URL", upperPrefix)},
			Destination: &cfg.URL,
			Required:    required,
		},
		&cli.StringFlag{
			Name:        fmt.Sprintf("%v-username", lowerPrefix),
			Usage:       fmt.Sprintf("%v username", lowerPrefix),
			EnvVars:     []string{fmt.Sprintf("BANKFEED_%v_USERNAME", upperPrefix)},
			Destination: &cfg.Username,
			Required:    required,
		},
		&cli.StringFlag{
			Name:        fmt.Sprintf("%v-password", lowerPrefix),
			Usage:       fmt.Sprintf("%v password", lowerPrefix),
			EnvVars:     []string{fmt.Sprintf("BANKFEED_%v_PASSWORD", upperPrefix)},
			Destination: &cfg.Password,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        fmt.Sprintf("%v-password-file", lowerPrefix),
			Usage:       fmt.Sprintf("%v password file", lowerPrefix),
			EnvVars:     []string{fmt.Sprintf("BANKFEED_%v_PASSWORD_FILE", upperPrefix)},
			Destination: &cfg.PasswordFile,
			Required:    false,
		},
		&cli.BoolFlag{
			Name:        fmt.Sprintf("%v-tls-skip-verify", lowerPrefix),
			Usage:       fmt.Sprintf("skip %v tls verification", lowerPrefix),
			EnvVars:     []string{fmt.Sprintf("BANKFEED_%v_TLS_SKIP_VERIFY", upperPrefix)},
			Destination: &cfg.TLSSkipVerify,
		},
	}
}

func extractMailURL(u *url.URL) (string, string, bool, error) {
	var defaultPort string
	var useTLS bool
	switch strings.ToLower(u.Scheme) {
	case "imap":
		defaultPort = "143"
		useTLS = false
	case "imaps":
		defaultPort = "993"
		useTLS = true
	case "smtp":
		defaultPort = "25"
		useTLS = false
	case "smtps":
		defaultPort = "465"
		useTLS = true
	default:
		return "", "", false, errInvalidScheme
	}

	host := u.Hostname()
	port := u.Port()

	if port == "" {
		port = defaultPort
	}

	return net.JoinHostPort(host, port), strings.TrimPrefix(u.Path, "/"), useTLS, nil
}

func (cfg *MailConfig) password(prefix string) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	if cfg.PasswordFile != "" {
		pass, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(pass)), nil
	}

	return "", fmt.Errorf("at least one of the \"%v-password\" or \"%v-password-file\" flags is required", prefix, prefix)
}

// resolve turns the endpoint's URL and credentials into connection
// parameters. The second return value is the URL path with the leading
// slash stripped (the mailbox name for IMAP, unused for SMTP).
func (cfg *MailConfig) resolve(prefix string) (string, string, bool, *tls.Config, string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", "", false, nil, "", err
	}

	hostPort, path, useTLS, err := extractMailURL(u)
	if err != nil {
		return "", "", false, nil, "", err
	}

	if cfg.Username == "" {
		return "", "", false, nil, "", fmt.Errorf("\"%v-username\" is required", prefix)
	}

	pass, err := cfg.password(prefix)
	if err != nil {
		return "", "", false, nil, "", err
	}

	var tlsConfig *tls.Config
	if cfg.TLSSkipVerify {
		// #nosec G402
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return hostPort, path, useTLS, tlsConfig, pass, nil
}
