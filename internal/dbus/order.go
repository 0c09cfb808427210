package dbus

import (
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// abandonAfter bounds how long a call waits for an earlier ticket whose
// handler never ran.
const abandonAfter = time.Second

// registrarSignatures lists the body signature of each registrar method.
var registrarSignatures = map[string]string{
	"RegisterWindow":   "uo",
	"UnregisterWindow": "u",
	"GetMenuForWindow": "u",
	"GetWindowList":    "",
}

type callKey struct {
	sender string
	serial uint32
}

func keyOf(msg *dbus.Message) callKey {
	sender, _ := msg.Headers[dbus.FieldSender].Value().(string)
	return callKey{sender: sender, serial: msg.Serial()}
}

// callOrder hands registrar method calls to the event loop in the order
// the connection read them. godbus runs every method call on its own
// goroutine, so the read goroutine's interceptor issues a ticket and each
// handler waits for its turn before queueing its task.
type callOrder struct {
	mu      sync.Mutex
	abandon time.Duration
	enabled bool
	next    uint64
	turn    uint64
	pending map[callKey]uint64
	changed chan struct{}
}

func newCallOrder() *callOrder {
	return &callOrder{
		abandon: abandonAfter,
		pending: make(map[callKey]uint64),
		changed: make(chan struct{}),
	}
}

// intercept is installed with dbus.WithIncomingInterceptor.
func (o *callOrder) intercept(msg *dbus.Message) {
	if msg.Type != dbus.TypeMethodCall {
		return
	}
	path, _ := msg.Headers[dbus.FieldPath].Value().(dbus.ObjectPath)
	iface, _ := msg.Headers[dbus.FieldInterface].Value().(string)
	member, _ := msg.Headers[dbus.FieldMember].Value().(string)
	if path != RegistrarPath || iface != RegistrarInterface {
		return
	}
	// Calls godbus rejects before reaching the server would never
	// redeem their ticket.
	want, ok := registrarSignatures[member]
	if !ok || dbus.SignatureOf(msg.Body...).String() != want {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.enabled {
		return
	}
	o.pending[keyOf(msg)] = o.next
	o.next++
}

// enable starts issuing tickets once the server is exported.
func (o *callOrder) enable() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = true
}

// reset stops issuing tickets and releases every waiter. Called when the
// server is unexported, since pending calls may never reach it.
func (o *callOrder) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = false
	o.pending = make(map[callKey]uint64)
	o.turn = o.next
	o.advance()
}

// dispatch runs enqueue once every earlier ticketed call has run its own.
// Calls without a ticket enqueue immediately.
func (o *callOrder) dispatch(msg *dbus.Message, enqueue func()) {
	key := keyOf(msg)

	o.mu.Lock()
	ticket, ok := o.pending[key]
	if !ok {
		o.mu.Unlock()
		enqueue()
		return
	}
	delete(o.pending, key)

	for o.turn < ticket {
		changed := o.changed
		o.mu.Unlock()

		timer := time.NewTimer(o.abandon)
		select {
		case <-changed:
			timer.Stop()
			o.mu.Lock()
		case <-timer.C:
			o.mu.Lock()
			if o.turn < ticket {
				o.turn = ticket
			}
		}
	}

	enqueue()
	if o.turn == ticket {
		o.turn++
	}
	o.advance()
	o.mu.Unlock()
}

// advance wakes waiters. Must hold mu.
func (o *callOrder) advance() {
	close(o.changed)
	o.changed = make(chan struct{})
}
