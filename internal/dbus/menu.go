package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ObjectProvider returns proxies for remote objects. *dbus.Conn satisfies it.
type ObjectProvider interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// MenuNode is one entry of a com.canonical.dbusmenu layout.
type MenuNode struct {
	ID         int32
	Properties map[string]any
	Children   []*MenuNode
}

// Label returns the node's "label" property, if any.
func (n *MenuNode) Label() string {
	label, _ := n.Properties["label"].(string)
	return label
}

// Count returns the number of nodes below n.
func (n *MenuNode) Count() int {
	total := 0
	for _, child := range n.Children {
		total += 1 + child.Count()
	}
	return total
}

// ParseMenuNode decodes a (ia{sv}av) layout value. Malformed children are
// skipped.
func ParseMenuNode(data any) (*MenuNode, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("menu node: invalid format")
	}

	id, ok := arr[0].(int32)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid id")
	}

	props, ok := arr[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid props")
	}

	children, ok := arr[2].([]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid children")
	}

	node := &MenuNode{
		ID:         id,
		Properties: make(map[string]any, len(props)),
		Children:   make([]*MenuNode, 0, len(children)),
	}
	for key, value := range props {
		node.Properties[key] = value.Value()
	}
	for _, child := range children {
		childNode, err := ParseMenuNode(child.Value())
		if err != nil {
			continue
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

// MenuProbe fetches menu layouts from registering clients.
type MenuProbe struct {
	conn ObjectProvider
}

// NewMenuProbe creates a MenuProbe using conn.
func NewMenuProbe(conn ObjectProvider) *MenuProbe {
	return &MenuProbe{conn: conn}
}

// Layout fetches the full menu tree exported at path by service.
func (p *MenuProbe) Layout(ctx context.Context, service, path string) (uint32, *MenuNode, error) {
	if !dbus.ObjectPath(path).IsValid() {
		return 0, nil, fmt.Errorf("layout: invalid object path %q", path)
	}

	call := p.conn.Object(service, dbus.ObjectPath(path)).CallWithContext(ctx,
		DBusMenuInterface+".GetLayout", 0,
		int32(0), int32(-1), []string{},
	)
	if call.Err != nil {
		return 0, nil, call.Err
	}

	if len(call.Body) != 2 {
		return 0, nil, fmt.Errorf("layout: invalid response body format")
	}

	revision, ok := call.Body[0].(uint32)
	if !ok {
		return 0, nil, fmt.Errorf("layout: invalid revision type")
	}

	root, err := ParseMenuNode(call.Body[1])
	if err != nil {
		return revision, nil, fmt.Errorf("layout: %w", err)
	}
	return revision, root, nil
}

// CountItems returns the number of entries in the client's menu.
func (p *MenuProbe) CountItems(ctx context.Context, service, path string) (int, error) {
	_, root, err := p.Layout(ctx, service, path)
	if err != nil {
		return 0, err
	}
	return root.Count(), nil
}
