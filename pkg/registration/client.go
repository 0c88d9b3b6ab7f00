package registration

import (
	"context"

	"github.com/pushsync/pushsync-go/pkg/interest"
)

// Metadata describes the device to the server.
type Metadata struct {
	SDKVersion string `json:"sdkVersion,omitempty"`
	OS         string `json:"os,omitempty"`
	OSVersion  string `json:"osVersion,omitempty"`
}

// Registration is the server's answer to a register call.
type Registration struct {
	// DeviceID is the server-assigned device identifier.
	DeviceID string

	// InitialInterests are interests the server already holds for the
	// token, e.g. from a previous installation.
	InitialInterests interest.Set
}

// Client is a device API client bound to one instance.
type Client interface {
	// Register creates a device for token.
	Register(ctx context.Context, token string, md Metadata) (Registration, error)

	// UpdateToken replaces the platform token of a device.
	UpdateToken(ctx context.Context, deviceID, token string) error

	// UpdateInterests replaces the device's interests with diff.Target and
	// returns the set the server acknowledged.
	UpdateInterests(ctx context.Context, deviceID string, diff interest.Diff) (interest.Set, error)

	// UpdateMetadata replaces the device metadata.
	UpdateMetadata(ctx context.Context, deviceID string, md Metadata) error

	// AssociateUser binds the device to the user the token was minted for.
	AssociateUser(ctx context.Context, deviceID, userToken string) error

	// DisassociateUser removes the user binding.
	DisassociateUser(ctx context.Context, deviceID string) error

	// Delete removes the device.
	Delete(ctx context.Context, deviceID string) error
}

// ClientFactory creates a Client for an instance.
type ClientFactory func(instanceID string) Client
