// Package persistence provides the key/value state store that lets a device
// registration survive restarts.
//
// A Store holds opaque byte values under a small fixed set of keys. Every
// mutation of the engine is written with a single PutAll call, which drivers
// apply atomically: either every key of the batch is written or none is.
// Four drivers are available: MemoryStore (tests and ephemeral use),
// FileStore (one CBOR file replaced via rename), SQLiteStore and RedisStore.
//
// DeviceState is the typed view of the keys used by the synchronization
// engine; LoadDeviceState and SaveDeviceState convert between the two.
package persistence
