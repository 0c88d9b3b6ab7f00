// Package auth adapts a caller-supplied token provider for the
// synchronization engine.
//
// The application implements TokenProvider to mint a user token, usually by
// calling its own backend. The provider may answer synchronously or from any
// goroutine; only the first answer counts. Fetcher runs the provider off the
// engine's work queue, enforces a timeout and inspects JWT tokens (without
// verifying signatures) so that an obviously expired token or a token minted
// for another user is rejected before it reaches the server.
package auth
