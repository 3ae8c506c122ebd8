// Package sqldb resolves a user's database connection, describes its schema
// for the model, and carries the human-approval execution path. Schema
// description is the only capability exposed to the agent; RunQuery and
// ExecuteRaw are reachable solely through the approval flow.
package sqldb

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Connection modes.
const (
	ModeSQLite = "sqlite"
	ModeURL    = "url"
)

// ErrNotFound reports that a user has no stored connection.
var ErrNotFound = errors.New("connection not found")

// AvailableModes lists the supported connection modes.
func AvailableModes() []string {
	return []string{ModeSQLite, ModeURL}
}

// ConnectionDetails is a user's resolved database target: a local SQLite
// file or a connection URL. Each user has exactly one at a time.
type ConnectionDetails struct {
	Mode          string `json:"mode"`
	SQLitePath    string `json:"sqlite_path,omitempty"`
	ConnectionURL string `json:"connection_url,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Locator returns the path or URL the mode points at.
func (d ConnectionDetails) Locator() string {
	if d.Mode == ModeSQLite {
		return d.SQLitePath
	}
	return d.ConnectionURL
}

// Fingerprint identifies the connection for cache keying. Two descriptors
// share a fingerprint exactly when mode and locator match.
func (d ConnectionDetails) Fingerprint() string {
	sum := sha256.Sum256([]byte(d.Mode + "\x00" + d.Locator()))
	return hex.EncodeToString(sum[:16])
}

// Validate checks that the descriptor is complete for its mode.
func (d ConnectionDetails) Validate() error {
	switch d.Mode {
	case ModeSQLite:
		if d.SQLitePath == "" {
			return fmt.Errorf("sqlite mode requires a file path")
		}
	case ModeURL:
		if d.ConnectionURL == "" {
			return fmt.Errorf("url mode requires a connection url")
		}
		if _, _, err := d.driverAndDSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid mode %q (valid: %s)", d.Mode, strings.Join(AvailableModes(), ", "))
	}
	return nil
}

// driverAndDSN maps the descriptor onto a database/sql driver name and DSN.
func (d ConnectionDetails) driverAndDSN() (driver, dsn string, err error) {
	if d.Mode == ModeSQLite {
		return "sqlite3", d.SQLitePath, nil
	}

	u, err := url.Parse(d.ConnectionURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid connection url: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", d.ConnectionURL, nil
	case "mysql":
		return "mysql", mysqlDSN(u), nil
	case "sqlite", "sqlite3", "file":
		return "sqlite3", strings.TrimPrefix(u.Path, "/"), nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// mysqlDSN converts a mysql:// URL into the driver's user:pass@tcp(host)/db
// form.
func mysqlDSN(u *url.URL) string {
	var b strings.Builder
	if u.User != nil {
		b.WriteString(u.User.Username())
		if pass, ok := u.User.Password(); ok {
			b.WriteString(":")
			b.WriteString(pass)
		}
		b.WriteString("@")
	}

	host := u.Host
	if host == "" {
		host = "127.0.0.1:3306"
	} else if u.Port() == "" {
		host += ":3306"
	}
	fmt.Fprintf(&b, "tcp(%s)/%s", host, strings.TrimPrefix(u.Path, "/"))

	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String()
}
