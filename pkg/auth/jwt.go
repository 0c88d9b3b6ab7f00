package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Inspect checks a JWT token's subject and expiry without verifying its
// signature. Tokens that do not parse as JWT are treated as opaque and pass.
func Inspect(token, userID string, now time.Time) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !exp.After(now) {
		return syncerr.Newf(syncerr.KindProvider, "fetchToken",
			"token expired at %s", exp.UTC().Format(time.RFC3339))
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" && sub != userID {
		return syncerr.Newf(syncerr.KindProvider, "fetchToken",
			"token subject %q does not match user %q", sub, userID)
	}
	return nil
}
