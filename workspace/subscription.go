package workspace

import (
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/procbt/engine/value"
)

// Listener receives coalesced change notifications for a single variable
// (spec §4.2). The workspace never invokes a Listener while the variable's
// per-variable lock is held, and never blocks SetValue waiting for one to
// run: notifications are delivered from a dedicated background goroutine per
// subscription, and a slow or stuck listener only delays its own future
// notifications, never other subscribers or the tick loop.
type Listener func(name string, v value.Value, available bool)

// Subscription is the handle returned by Subscribe, passed back to
// Unsubscribe.
type Subscription struct {
	id   uuid.UUID
	name string
}

type event struct {
	v         value.Value
	available bool
}

type subscriber struct {
	id       uuid.UUID
	name     string
	listener Listener

	mu     deadlock.Mutex
	latest *event

	wake chan struct{}
	done chan struct{}
}

func newSubscriber(name string, l Listener) *subscriber {
	s := &subscriber{
		id:       uuid.New(),
		name:     name,
		listener: l,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.mu.Lock()
			ev := s.latest
			s.latest = nil
			s.mu.Unlock()
			if ev == nil {
				continue
			}
			s.listener(s.name, ev.v, ev.available)
		}
	}
}

func (s *subscriber) notify(v value.Value, available bool) {
	s.mu.Lock()
	s.latest = &event{v: v, available: available}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	close(s.done)
}

// Subscribe registers a Listener for change notifications on the named
// variable. Delivery is coalesced and eventually consistent: intermediate
// values can be dropped under backpressure, but the most recent value as of
// any point after Subscribe returns is always eventually delivered (spec
// §4.2).
func (w *Workspace) Subscribe(name string, l Listener) Subscription {
	sub := newSubscriber(name, l)

	w.subsMu.Lock()
	w.subs[name] = append(w.subs[name], sub)
	w.subsMu.Unlock()

	return Subscription{id: sub.id, name: name}
}

// Unsubscribe removes a previously registered Subscription and stops its
// background dispatcher. Idempotent.
func (w *Workspace) Unsubscribe(sub Subscription) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()

	subs := w.subs[sub.name]
	for i, s := range subs {
		if s.id == sub.id {
			s.stop()
			w.subs[sub.name] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// publish fans out a change notification to every subscriber of name. Called
// only after the variable's per-variable lock has been released, so no
// Listener ever runs while a GetValue/SetValue on that variable is blocked.
func (w *Workspace) publish(name string, v value.Value, available bool) {
	w.subsMu.RLock()
	subs := w.subs[name]
	w.subsMu.RUnlock()

	for _, s := range subs {
		s.notify(v, available)
	}
}
