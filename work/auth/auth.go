package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"hlsproxy/work/logger"
)

// UnauthorizedMessage is the error text returned to callers that fail the check.
const UnauthorizedMessage = "proxy access unauthorized: check the configured access password"

var (
	ErrNoPassword = errors.New("server password is not configured")
	ErrMismatch   = errors.New("auth hash does not match")
	ErrExpired    = errors.New("auth timestamp expired")
)

// Authorizer decides whether an inbound proxy request may be served.
//
// A request carries the lower-case hex SHA-256 of the server password in the
// "auth" query parameter and, optionally, the client's Unix time in
// milliseconds in "t". A timestamp older than maxAge is rejected; one that
// does not parse is ignored.
type Authorizer struct {
	hash   string
	maxAge time.Duration
	now    func() time.Time
}

// New creates an Authorizer for password. An empty password rejects every
// request.
func New(password string, maxAge time.Duration) *Authorizer {
	a := &Authorizer{maxAge: maxAge, now: time.Now}
	if password != "" {
		a.hash = HashPassword(password)
	}
	return a
}

// HashPassword returns the value clients send in the auth parameter.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Check returns nil when r is authorized.
func (a *Authorizer) Check(r *http.Request) error {
	if a.hash == "" {
		logger.Error("{auth - Check} PASSWORD is not set, rejecting proxy request")
		return ErrNoPassword
	}

	query := r.URL.Query()
	given := query.Get("auth")
	if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(a.hash)) != 1 {
		logger.Warn("{auth - Check} rejected request from %s: password mismatch", r.RemoteAddr)
		return ErrMismatch
	}

	if ts := query.Get("t"); ts != "" {
		millis, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			logger.Debug("{auth - Check} ignoring unparseable timestamp %q", ts)
			return nil
		}
		if a.now().Sub(time.UnixMilli(millis)) > a.maxAge {
			logger.Warn("{auth - Check} rejected request from %s: timestamp expired", r.RemoteAddr)
			return ErrExpired
		}
	}

	return nil
}
