// Package service keeps a device's push registration and interest
// subscriptions consistent with a remote device API.
//
// # Runtime
//
// A Runtime is created once by the application and runs at most one
// Instance. It replaces process-wide state: tests and multi-tenant hosts
// create as many Runtimes as they need.
//
//	rt, err := service.NewRuntime(service.Config{
//	    Store:           persistence.NewMemoryStore(),
//	    ClientFactory:   registration.NewHTTPClientFactory(),
//	    PushTokenSource: source,
//	})
//	inst, err := rt.Start("instance-id", tokenProvider)
//	err = inst.AwaitRegistered(ctx)
//
// # Instance
//
// An Instance moves through NOT_STARTED, STARTING, REGISTERED, STOPPING and
// STOPPED. Subscription and user calls require REGISTERED.
//
// Subscribe, Unsubscribe and SetSubscriptions change the desired interest
// set synchronously; Subscriptions reads it back immediately. A single work
// queue goroutine then reconciles the server with one batched update per
// pass. The set acknowledged by the server becomes the confirmed set and is
// reported to the listener when it changed.
//
// SetUserID fetches a user token from the application's token provider and
// binds the device to the user. Only the latest call is applied.
//
// Stop and ClearAllState delete the device on the server, best effort, and
// remove all persisted state. Work in flight at that moment is discarded.
//
// # Callbacks
//
// Listener callbacks and Op completions run on the Runtime's dispatcher
// goroutine, in the order they were produced, and never while engine locks
// are held.
package service
