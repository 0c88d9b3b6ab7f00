// Package registration talks to the remote device API.
//
// Client is the transport seen by the synchronization engine. HTTPClient
// implements it over JSON/HTTP and maps response statuses onto the syncerr
// kinds the engine reacts to:
//
//	network error, 408, 429, 5xx  -> Retryable
//	401, 403                      -> Unauthorized
//	400, 404, 410 and other 4xx   -> PermanentRejection
//
// Retrier repeats an operation while it fails with a Retryable error,
// sleeping between attempts according to a backoff.Policy.
package registration
