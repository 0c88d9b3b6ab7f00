package auth

// TokenProvider mints a user token for userID.
//
// FetchToken must eventually call cb exactly once, from any goroutine.
// Further calls are ignored.
type TokenProvider interface {
	FetchToken(userID string, cb func(token string, err error))
}

// TokenProviderFunc adapts a synchronous function to TokenProvider.
type TokenProviderFunc func(userID string) (string, error)

// FetchToken implements TokenProvider.
func (f TokenProviderFunc) FetchToken(userID string, cb func(token string, err error)) {
	cb(f(userID))
}
