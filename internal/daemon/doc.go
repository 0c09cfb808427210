// Package daemon provides the main orchestration for appmenud.
// It coordinates the event loop, the registrar and its D-Bus lifecycle,
// and configuration hot-reload.
package daemon
