package registry

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/appmenu/internal/logging"
)

// DefaultProbeTimeout bounds the diagnostic menu query made after a
// registration.
const DefaultProbeTimeout = 2 * time.Second

// Service is the registrar's method surface, independent of the transport.
// Soft misuse is reported as a *Warning; a *logging.FatalError aborts the
// request.
type Service interface {
	RegisterWindow(windowID uint32, menuObjectPath, sender string) error
	UnregisterWindow(windowID uint32) error
	GetMenuForWindow(windowID uint32) (service, menuObjectPath string, err error)
	GetWindowList() ([]uint32, error)
}

// MenuInspector resolves a client's exported menu and counts its items.
type MenuInspector interface {
	CountItems(ctx context.Context, service, menuObjectPath string) (int, error)
}

// Registrar implements Service on top of a Registry. Its methods must be
// called from a single goroutine (the event loop); only the diagnostic
// probes run elsewhere.
type Registrar struct {
	registry *Registry
	log      *logging.Sink
	now      func() time.Time

	inspector    MenuInspector
	probeTimeout time.Duration
	probes       sync.WaitGroup
}

var _ Service = (*Registrar)(nil)

// NewRegistrar creates a Registrar with an empty registry.
func NewRegistrar(log *logging.Sink) *Registrar {
	if log == nil {
		log = logging.New(nil)
	}
	return &Registrar{
		registry:     New(),
		log:          log,
		now:          time.Now,
		probeTimeout: DefaultProbeTimeout,
	}
}

// SetInspector enables the diagnostic menu probe. A nil inspector disables it.
func (r *Registrar) SetInspector(inspector MenuInspector, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	r.inspector = inspector
	r.probeTimeout = timeout
}

// RegisterWindow stores menuObjectPath for windowID, overwriting (with a
// warning) any existing entry.
func (r *Registrar) RegisterWindow(windowID uint32, menuObjectPath, sender string) error {
	reg := Registration{
		WindowID:       windowID,
		MenuObjectPath: menuObjectPath,
		Sender:         sender,
		RegisteredAt:   r.now(),
	}

	previous, replaced := r.registry.Put(reg)

	var result error
	if replaced {
		r.log.Warn("window already registered, overwriting",
			"window_id", windowID,
			"old_path", previous.MenuObjectPath,
			"new_path", menuObjectPath,
		)
		result = &Warning{Op: "register", WindowID: windowID, Err: ErrAlreadyRegistered}
	}

	r.log.Info("window registered", "window_id", windowID, "path", menuObjectPath, "sender", sender)

	r.probe(windowID, sender, menuObjectPath)

	return result
}

// probe counts the menu items exported at path, for logging only.
func (r *Registrar) probe(windowID uint32, service, path string) {
	inspector := r.inspector
	if inspector == nil || service == "" {
		return
	}
	timeout := r.probeTimeout

	r.probes.Add(1)
	go func() {
		defer r.probes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		count, err := inspector.CountItems(ctx, service, path)
		if err != nil {
			r.log.Debug("menu probe failed", "window_id", windowID, "path", path, "error", err)
			return
		}
		if count == 0 {
			r.log.Debug("menu model is empty", "window_id", windowID, "path", path)
			return
		}
		r.log.Debug("menu model resolved", "window_id", windowID, "path", path, "items", count)
	}()
}

// WaitProbes blocks until in-flight diagnostic probes finish.
func (r *Registrar) WaitProbes() {
	r.probes.Wait()
}

// UnregisterWindow removes windowID. Unknown ids are a logged no-op.
func (r *Registrar) UnregisterWindow(windowID uint32) error {
	if !r.registry.Remove(windowID) {
		r.log.Warn("unregister of unknown window ignored", "window_id", windowID)
		return &Warning{Op: "unregister", WindowID: windowID, Err: ErrNotRegistered}
	}

	r.log.Info("window unregistered", "window_id", windowID)
	return nil
}

// GetMenuForWindow looks windowID up. The reply is always a pair of empty
// strings, registered or not.
// TODO: return the sender and path once shells agree on the reply contract.
func (r *Registrar) GetMenuForWindow(windowID uint32) (string, string, error) {
	reg, exists := r.registry.Get(windowID)
	if !exists {
		r.log.Warn("menu requested for unknown window", "window_id", windowID)
		return "", "", &Warning{Op: "get menu", WindowID: windowID, Err: ErrNotRegistered}
	}

	r.log.Debug("menu requested", "window_id", windowID, "path", reg.MenuObjectPath)
	return "", "", nil
}

// GetWindowList returns the registered window ids in insertion order.
func (r *Registrar) GetWindowList() ([]uint32, error) {
	regs := r.registry.Registrations()
	ids := make([]uint32, 0, len(regs))
	for _, reg := range regs {
		r.log.Debug("registered window",
			"window_id", reg.WindowID,
			"path", reg.MenuObjectPath,
			"registered", humanize.Time(reg.RegisteredAt),
		)
		ids = append(ids, reg.WindowID)
	}
	return ids, nil
}

// ForgetSender drops every registration made by a bus client that has
// disconnected.
func (r *Registrar) ForgetSender(sender string) []uint32 {
	removed := r.registry.RemoveSender(sender)
	if len(removed) > 0 {
		r.log.Info("client disconnected, windows unregistered", "sender", sender, "windows", removed)
	}
	return removed
}

// Registrations returns a snapshot of the registry.
func (r *Registrar) Registrations() []Registration {
	return r.registry.Registrations()
}
