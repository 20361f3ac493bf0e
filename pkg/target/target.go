package target

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ReuseDirective in a target list means "use the previous target again after
// an operator confirmed manual adjustments".
const ReuseDirective = "reuse-and-pause"

// Target is a parsed database connection descriptor.
type Target struct {
	// Raw is the descriptor exactly as given.
	Raw      string
	User     string
	Password string
	Host     string
	Port     int // 0 when absent
	Database string
}

// Parse parses a DSN of the form scheme://[user[:password]@]host[:port]/database.
func Parse(dsn string) (*Target, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, configErrorf("invalid connection URL: %v", err)
	}

	if u.Scheme == "" {
		return nil, configErrorf("connection URL %q has no scheme", redactRaw(dsn))
	}

	t := &Target{
		Raw:      dsn,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}

	if u.User != nil {
		t.User = u.User.Username()
		t.Password, _ = u.User.Password()
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, configErrorf("connection URL %q has invalid port %q", redactRaw(dsn), p)
		}

		t.Port = port
	}

	if t.Database == "" {
		return nil, configErrorf("connection URL %q has no database", redactRaw(dsn))
	}

	return t, nil
}

// Local returns the target of a locally provisioned instance reached over the
// default socket/port as the given user.
func Local(user, database string) *Target {
	return &Target{
		Raw:      fmt.Sprintf("pgsql://%s@localhost/%s", user, database),
		User:     user,
		Host:     "localhost",
		Database: database,
	}
}

// String returns the descriptor with the password hidden.
func (t *Target) String() string {
	return t.Redacted()
}

// Redacted returns the descriptor with the password replaced by "xxxxx".
func (t *Target) Redacted() string {
	return redactRaw(t.Raw)
}

// Address returns host[:port] or an empty string.
func (t *Target) Address() string {
	if t.Port == 0 {
		return t.Host
	}

	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ConnConfig builds a pgx connection config from the parsed fields. Unset
// fields keep the libpq defaults (PGHOST, PGUSER, ...).
func (t *Target) ConnConfig() (*pgx.ConnConfig, error) {
	u := url.URL{
		Scheme: "postgres",
		Host:   t.Address(),
		Path:   "/" + t.Database,
	}

	switch {
	case t.User != "" && t.Password != "":
		u.User = url.UserPassword(t.User, t.Password)
	case t.User != "":
		u.User = url.User(t.User)
	}

	cfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, configErrorf("building connection config for %q: %v", t.Redacted(), err)
	}

	return cfg, nil
}

func redactRaw(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.Redacted()
}
