package dbus

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5/introspect"
)

//go:embed registrar.xml
var embeddedIntrospection []byte

// registrarSignature is the in/out signature a method must declare.
type registrarSignature struct {
	in  string
	out string
}

var requiredMethods = map[string]registrarSignature{
	"RegisterWindow":   {in: "uo"},
	"UnregisterWindow": {in: "u"},
	"GetMenuForWindow": {in: "u", out: "so"},
	"GetWindowList":    {out: "au"},
}

var requiredSignals = map[string]string{
	SignalLog:            "sss",
	SignalServiceStarted: "s",
}

// ResolveIntrospectionPath resolves a configured XML path. Relative paths
// are taken relative to the running executable's directory. An empty path
// selects the embedded document.
func ResolveIntrospectionPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}

// LoadIntrospection reads the registrar's introspection XML from path, or
// the embedded copy when path is empty, and checks it declares the
// registrar interface.
func LoadIntrospection(path string) (*introspect.Node, error) {
	data := embeddedIntrospection
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read introspection file: %w", err)
		}
	}
	return ParseIntrospection(data)
}

// ParseIntrospection parses and validates an introspection document.
func ParseIntrospection(data []byte) (*introspect.Node, error) {
	var node introspect.Node
	if err := xml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse introspection XML: %w", err)
	}

	iface := findInterface(&node, RegistrarInterface)
	if iface == nil {
		return nil, fmt.Errorf("introspection does not declare %s", RegistrarInterface)
	}

	for name, want := range requiredMethods {
		method := findMethod(iface, name)
		if method == nil {
			return nil, fmt.Errorf("introspection is missing method %s", name)
		}
		in, out := methodSignature(method)
		if in != want.in || out != want.out {
			return nil, fmt.Errorf("method %s has signature (%s)->(%s), want (%s)->(%s)",
				name, in, out, want.in, want.out)
		}
	}

	for name, want := range requiredSignals {
		signal := findSignal(iface, name)
		if signal == nil {
			return nil, fmt.Errorf("introspection is missing signal %s", name)
		}
		if got := signalSignature(signal); got != want {
			return nil, fmt.Errorf("signal %s has signature (%s), want (%s)", name, got, want)
		}
	}

	if findInterface(&node, introspectableInterface) == nil {
		node.Interfaces = append([]introspect.Interface{introspect.IntrospectData}, node.Interfaces...)
	}
	node.Name = RegistrarPath

	return &node, nil
}

func findInterface(node *introspect.Node, name string) *introspect.Interface {
	for i := range node.Interfaces {
		if node.Interfaces[i].Name == name {
			return &node.Interfaces[i]
		}
	}
	return nil
}

func findMethod(iface *introspect.Interface, name string) *introspect.Method {
	for i := range iface.Methods {
		if iface.Methods[i].Name == name {
			return &iface.Methods[i]
		}
	}
	return nil
}

func findSignal(iface *introspect.Interface, name string) *introspect.Signal {
	for i := range iface.Signals {
		if iface.Signals[i].Name == name {
			return &iface.Signals[i]
		}
	}
	return nil
}

func methodSignature(m *introspect.Method) (string, string) {
	var in, out strings.Builder
	for _, arg := range m.Args {
		if arg.Direction == "out" {
			out.WriteString(arg.Type)
		} else {
			in.WriteString(arg.Type)
		}
	}
	return in.String(), out.String()
}

func signalSignature(s *introspect.Signal) string {
	var sig strings.Builder
	for _, arg := range s.Args {
		sig.WriteString(arg.Type)
	}
	return sig.String()
}
