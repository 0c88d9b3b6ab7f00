// Package dispatch delivers engine callbacks to application code.
//
// Every callback (subscription-change notifications, error reports and Op
// completions) is queued on a Dispatcher and run on the dispatcher's own
// goroutine, one at a time, in the order it was queued. Callbacks therefore
// never run on the caller's goroutine and never while the engine holds a lock.
package dispatch
