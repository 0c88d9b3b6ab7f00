package fake

import (
	"context"
	"errors"

	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/registration"
)

// Client is a registration.Client backed by a Server.
type Client struct {
	server *Server
}

var _ registration.Client = (*Client)(nil)

// NewClient returns a client of s.
func NewClient(s *Server) *Client {
	return &Client{server: s}
}

// Register implements registration.Client.
func (c *Client) Register(ctx context.Context, token string, md registration.Metadata) (registration.Registration, error) {
	call := Call{Op: OpRegister, Token: token, Metadata: md}
	if err := c.server.enter(ctx, call); err != nil {
		return registration.Registration{}, err
	}
	return c.server.register(call), nil
}

// UpdateToken implements registration.Client.
func (c *Client) UpdateToken(ctx context.Context, deviceID, token string) error {
	if err := c.server.enter(ctx, Call{Op: OpUpdateToken, DeviceID: deviceID, Token: token}); err != nil {
		return err
	}
	return c.server.update(OpUpdateToken, deviceID, func(d *Device) error {
		d.Token = token
		return nil
	})
}

// UpdateInterests implements registration.Client.
func (c *Client) UpdateInterests(ctx context.Context, deviceID string, diff interest.Diff) (interest.Set, error) {
	target := diff.Target.Sorted()
	if err := c.server.enter(ctx, Call{Op: OpUpdateInterests, DeviceID: deviceID, Interests: target}); err != nil {
		return nil, err
	}
	err := c.server.update(OpUpdateInterests, deviceID, func(d *Device) error {
		d.Interests = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diff.Target.Clone(), nil
}

// UpdateMetadata implements registration.Client.
func (c *Client) UpdateMetadata(ctx context.Context, deviceID string, md registration.Metadata) error {
	if err := c.server.enter(ctx, Call{Op: OpUpdateMetadata, DeviceID: deviceID, Metadata: md}); err != nil {
		return err
	}
	return c.server.update(OpUpdateMetadata, deviceID, func(d *Device) error {
		d.Metadata = md
		return nil
	})
}

// AssociateUser implements registration.Client.
func (c *Client) AssociateUser(ctx context.Context, deviceID, userToken string) error {
	if err := c.server.enter(ctx, Call{Op: OpAssociateUser, DeviceID: deviceID, UserToken: userToken}); err != nil {
		return err
	}
	if userToken == "" {
		return Unauthorized(OpAssociateUser)
	}
	if check := c.server.CheckUserToken; check != nil {
		if err := check(userToken); err != nil {
			return errors.Join(Unauthorized(OpAssociateUser), err)
		}
	}
	return c.server.update(OpAssociateUser, deviceID, func(d *Device) error {
		d.UserToken = userToken
		return nil
	})
}

// DisassociateUser implements registration.Client.
func (c *Client) DisassociateUser(ctx context.Context, deviceID string) error {
	if err := c.server.enter(ctx, Call{Op: OpDisassociateUser, DeviceID: deviceID}); err != nil {
		return err
	}
	return c.server.update(OpDisassociateUser, deviceID, func(d *Device) error {
		d.UserToken = ""
		return nil
	})
}

// Delete implements registration.Client.
func (c *Client) Delete(ctx context.Context, deviceID string) error {
	if err := c.server.enter(ctx, Call{Op: OpDelete, DeviceID: deviceID}); err != nil {
		return err
	}
	return c.server.remove(OpDelete, deviceID)
}
