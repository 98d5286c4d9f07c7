package db

import (
	"net/url"
	"strings"
)

// RedactDSN returns dsn with its password masked, for logging. Key/value
// DSNs and unparsable input are reduced to "<redacted>".
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return "<redacted>"
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "<redacted>"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	q := u.Query()
	if q.Has("password") {
		q.Set("password", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
