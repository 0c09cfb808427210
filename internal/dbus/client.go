package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client calls the registrar from another process.
type Client struct {
	conn    *dbus.Conn
	private bool
}

// ConnectClient opens a private session bus connection for talking to the
// registrar. Close releases it, which the registrar sees as a disconnect.
func ConnectClient() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, private: true}, nil
}

// NewClient wraps an existing connection. Close leaves it open.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{conn: conn}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *dbus.Conn {
	return c.conn
}

// Close closes the connection if the client opened it.
func (c *Client) Close() error {
	if c.private && c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) registrar() dbus.BusObject {
	return c.conn.Object(RegistrarBusName, RegistrarPath)
}

// RegisterWindow registers menuObjectPath for windowID.
func (c *Client) RegisterWindow(ctx context.Context, windowID uint32, menuObjectPath string) error {
	path := dbus.ObjectPath(menuObjectPath)
	if !path.IsValid() {
		return fmt.Errorf("invalid object path %q", menuObjectPath)
	}
	call := c.registrar().CallWithContext(ctx, RegistrarInterface+".RegisterWindow", 0, windowID, path)
	if call.Err != nil {
		return fmt.Errorf("RegisterWindow failed: %w", call.Err)
	}
	return nil
}

// UnregisterWindow removes windowID's registration.
func (c *Client) UnregisterWindow(ctx context.Context, windowID uint32) error {
	call := c.registrar().CallWithContext(ctx, RegistrarInterface+".UnregisterWindow", 0, windowID)
	if call.Err != nil {
		return fmt.Errorf("UnregisterWindow failed: %w", call.Err)
	}
	return nil
}

// GetMenuForWindow returns the service and menu path for windowID.
func (c *Client) GetMenuForWindow(ctx context.Context, windowID uint32) (string, string, error) {
	call := c.registrar().CallWithContext(ctx, RegistrarInterface+".GetMenuForWindow", 0, windowID)
	if call.Err != nil {
		return "", "", fmt.Errorf("GetMenuForWindow failed: %w", call.Err)
	}
	if len(call.Body) != 2 {
		return "", "", fmt.Errorf("GetMenuForWindow: invalid response body format")
	}

	service, _ := call.Body[0].(string)
	var path string
	switch v := call.Body[1].(type) {
	case dbus.ObjectPath:
		path = string(v)
	case string:
		path = v
	}
	return service, path, nil
}

// GetWindowList returns the registered window ids.
func (c *Client) GetWindowList(ctx context.Context) ([]uint32, error) {
	var ids []uint32
	err := c.registrar().CallWithContext(ctx, RegistrarInterface+".GetWindowList", 0).Store(&ids)
	if err != nil {
		return nil, fmt.Errorf("GetWindowList failed: %w", err)
	}
	return ids, nil
}

// Status reports whether the registrar name has an owner and, if so, its
// unique name and window list.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var hasOwner bool
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, RegistrarBusName).Store(&hasOwner)
	if err != nil {
		return nil, fmt.Errorf("NameHasOwner failed: %w", err)
	}

	status := &Status{Running: hasOwner}
	if !hasOwner {
		return status, nil
	}

	if err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, RegistrarBusName).Store(&status.Owner); err != nil {
		return nil, fmt.Errorf("GetNameOwner failed: %w", err)
	}

	ids, err := c.GetWindowList(ctx)
	if err != nil {
		return nil, err
	}
	status.Windows = ids
	status.WindowCount = len(ids)
	return status, nil
}
