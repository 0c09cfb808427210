// Package dbus implements the com.canonical.AppMenu.Registrar D-Bus
// interface: the exported method surface, the well-known name lifecycle,
// its signals, and a client plus passive monitor for the same interface.
package dbus
