// Package session tracks whether a user session exists and fans login/logout
// transitions out to whoever needs to react immediately — the step tracker
// and sync scheduler both key off it.
package session

import "sync"

// Event is one auth-state transition.
type Event struct {
	UID      string `json:"uid"`
	LoggedIn bool   `json:"loggedIn"`
}

// Broker holds the current session and notifies subscribers of transitions.
// Delivery is non-blocking: a subscriber that falls behind loses old events,
// which is fine because only the latest state matters.
type Broker struct {
	mu   sync.Mutex
	uid  string
	subs []chan Event
}

func NewBroker() *Broker {
	return &Broker{}
}

// CurrentUID returns the logged-in user id, if any.
func (b *Broker) CurrentUID() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uid, b.uid != ""
}

func (b *Broker) Login(uid string) {
	b.publish(Event{UID: uid, LoggedIn: true})
}

func (b *Broker) Logout() {
	b.publish(Event{LoggedIn: false})
}

// Subscribe returns a channel receiving future auth-state transitions.
func (b *Broker) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 8)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.LoggedIn {
		b.uid = ev.UID
	} else {
		b.uid = ""
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop rather than block a slow subscriber.
		}
	}
}
