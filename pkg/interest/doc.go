// Package interest implements Interest names and sets.
//
// An Interest is a named topic a device subscribes to. Names are non-empty,
// at most MaxNameLength bytes, and restricted to ASCII letters, digits and
// the characters '_', '=', '-' and '.'. A device holds at most MaxInterests
// interests at once.
//
// Set is a value-like collection: mutating operations return a new Set, so
// a Set handed out as a snapshot is never changed behind the reader's back.
package interest
