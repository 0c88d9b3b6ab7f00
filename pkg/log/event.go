package log

import (
	"time"
)

// Event is one entry of the sync event log.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one start of an instance (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// InstanceID is the service instance.
	InstanceID string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the device identifier (populated after registration).
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Request      *RequestEvent      `cbor:"8,keyasint,omitempty"`
	Response     *ResponseEvent     `cbor:"9,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"10,keyasint,omitempty"`
	Notification *NotificationEvent `cbor:"11,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the server.
	DirectionIn Direction = 0
	// DirectionOut indicates a message sent to the server.
	DirectionOut Direction = 1
	// DirectionLocal indicates an event that never left the device.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the engine captured the event.
type Layer uint8

const (
	// LayerTransport is the device API client.
	LayerTransport Layer = 0
	// LayerEngine is the synchronization engine.
	LayerEngine Layer = 1
	// LayerApplication is the listener and callback boundary.
	LayerApplication Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerEngine:
		return "ENGINE"
	case LayerApplication:
		return "APPLICATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a device API request or response.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryNotification indicates a callback delivered to the application.
	CategoryNotification Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// RequestEvent captures a call to the device API.
type RequestEvent struct {
	// Operation is the client operation (register, updateInterests, ...).
	Operation string `cbor:"1,keyasint"`

	// Attempt counts from 1 within one retried operation.
	Attempt int `cbor:"2,keyasint,omitempty"`

	// Interests is the target set for interest updates.
	Interests []string `cbor:"3,keyasint,omitempty"`

	// UserID is set for user association requests.
	UserID string `cbor:"4,keyasint,omitempty"`
}

// ResponseEvent captures the outcome of a device API call.
type ResponseEvent struct {
	// Operation is the client operation.
	Operation string `cbor:"1,keyasint"`

	// Attempt counts from 1 within one retried operation.
	Attempt int `cbor:"2,keyasint,omitempty"`

	// Result is "OK" or the error kind.
	Result string `cbor:"3,keyasint"`

	// Duration is the round-trip time. Stored as nanoseconds.
	Duration time.Duration `cbor:"4,keyasint,omitempty"`

	// Discarded is true when the result arrived after it became stale.
	Discarded bool `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityInstance indicates an instance lifecycle change.
	StateEntityInstance StateEntity = 0
	// StateEntityInterests indicates a confirmed interest set change.
	StateEntityInterests StateEntity = 1
	// StateEntityUser indicates a user association change.
	StateEntityUser StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityInstance:
		return "INSTANCE"
	case StateEntityInterests:
		return "INTERESTS"
	case StateEntityUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// NotificationEvent captures a callback handed to the dispatcher.
type NotificationEvent struct {
	// Type of callback.
	Type NotificationType `cbor:"1,keyasint"`

	// Interests is the confirmed set for subscription changes.
	Interests []string `cbor:"2,keyasint,omitempty"`

	// Operation is the completed operation for Op results.
	Operation string `cbor:"3,keyasint,omitempty"`

	// Result is "OK" or the error kind for Op results.
	Result string `cbor:"4,keyasint,omitempty"`
}

// NotificationType indicates the kind of callback.
type NotificationType uint8

const (
	// NotificationSubscriptionsChanged is a listener subscription change.
	NotificationSubscriptionsChanged NotificationType = 0
	// NotificationError is a listener error report.
	NotificationError NotificationType = 1
	// NotificationOpCompleted is an Op resolution.
	NotificationOpCompleted NotificationType = 2
)

// String returns the notification type name.
func (n NotificationType) String() string {
	switch n {
	case NotificationSubscriptionsChanged:
		return "SUBSCRIPTIONS_CHANGED"
	case NotificationError:
		return "ERROR"
	case NotificationOpCompleted:
		return "OP_COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Kind is the error kind name (e.g. RETRYABLE).
	Kind string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// Operation returns the client operation of a request or response event.
func (e Event) Operation() string {
	switch {
	case e.Request != nil:
		return e.Request.Operation
	case e.Response != nil:
		return e.Response.Operation
	case e.Notification != nil:
		return e.Notification.Operation
	}
	return ""
}
