package dbus

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/appmenu/internal/logging"
	"github.com/jmylchreest/appmenu/internal/loop"
	"github.com/jmylchreest/appmenu/internal/registry"
)

// FatalHandler is called when a request ends in a THROW.
type FatalHandler func(err error)

// RegistrarServer exports the com.canonical.AppMenu.Registrar methods.
// godbus invokes them on its own goroutines; each call is handed to the
// event loop, in the order the connection received it, so the registry is
// only ever touched from one goroutine.
type RegistrarServer struct {
	loop    *loop.Loop
	service registry.Service
	log     *logging.Sink
	order   *callOrder

	onFatal FatalHandler
}

// NewRegistrarServer creates a RegistrarServer dispatching to service.
func NewRegistrarServer(l *loop.Loop, service registry.Service, log *logging.Sink) *RegistrarServer {
	if log == nil {
		log = logging.New(nil)
	}
	return &RegistrarServer{
		loop:    l,
		service: service,
		log:     log,
		order:   newCallOrder(),
	}
}

// SetFatalHandler sets the handler called when a request fails fatally.
func (s *RegistrarServer) SetFatalHandler(handler FatalHandler) {
	s.onFatal = handler
}

// run executes fn on the loop once every call received before msg has been
// queued, and waits for it.
func (s *RegistrarServer) run(msg *dbus.Message, fn func()) error {
	var wait func() error
	s.order.dispatch(msg, func() { wait = s.loop.Call(fn) })
	return wait()
}

// RegisterWindow stores the menu object path for a window.
// D-Bus method: RegisterWindow(uo) -> nothing
func (s *RegistrarServer) RegisterWindow(windowID uint32, menuObjectPath dbus.ObjectPath, sender dbus.Sender, msg dbus.Message) *dbus.Error {
	var err error
	if lerr := s.run(&msg, func() {
		err = s.service.RegisterWindow(windowID, string(menuObjectPath), string(sender))
	}); lerr != nil {
		return s.stopped("RegisterWindow")
	}
	return s.reply(err)
}

// UnregisterWindow removes a window's registration.
// D-Bus method: UnregisterWindow(u) -> nothing
func (s *RegistrarServer) UnregisterWindow(windowID uint32, msg dbus.Message) *dbus.Error {
	var err error
	if lerr := s.run(&msg, func() {
		err = s.service.UnregisterWindow(windowID)
	}); lerr != nil {
		return s.stopped("UnregisterWindow")
	}
	return s.reply(err)
}

// GetMenuForWindow looks up a window's menu.
// D-Bus method: GetMenuForWindow(u) -> (so)
//
// The path is returned as a plain string, so the wire reply is (ss): the
// reply is always empty and godbus refuses to marshal an empty ObjectPath.
// registrar.xml notes the same.
func (s *RegistrarServer) GetMenuForWindow(windowID uint32, msg dbus.Message) (string, string, *dbus.Error) {
	var service, path string
	var err error
	if lerr := s.run(&msg, func() {
		service, path, err = s.service.GetMenuForWindow(windowID)
	}); lerr != nil {
		return "", "", s.stopped("GetMenuForWindow")
	}
	if derr := s.reply(err); derr != nil {
		return "", "", derr
	}
	return service, path, nil
}

// GetWindowList returns every registered window id.
// D-Bus method: GetWindowList() -> au
func (s *RegistrarServer) GetWindowList(msg dbus.Message) ([]uint32, *dbus.Error) {
	var ids []uint32
	var err error
	if lerr := s.run(&msg, func() {
		ids, err = s.service.GetWindowList()
	}); lerr != nil {
		return []uint32{}, s.stopped("GetWindowList")
	}
	if derr := s.reply(err); derr != nil {
		return []uint32{}, derr
	}
	if ids == nil {
		ids = []uint32{}
	}
	return ids, nil
}

// reply maps a service error to the wire. Warnings are already logged and
// produce a normal reply.
func (s *RegistrarServer) reply(err error) *dbus.Error {
	if err == nil || registry.IsWarning(err) {
		return nil
	}

	if logging.IsFatal(err) {
		if s.onFatal != nil {
			s.onFatal(err)
		}
		return dbus.MakeFailedError(err)
	}

	s.log.Error("request failed", "error", err)
	return dbus.MakeFailedError(err)
}

// stopped answers a call that arrived after the loop shut down.
func (s *RegistrarServer) stopped(method string) *dbus.Error {
	s.log.Debug("call received after shutdown", "method", method)
	return dbus.MakeFailedError(errors.New("registrar is shutting down"))
}
