package network

import "sync"

// CellEventKind is the cell lifecycle transition an event reports.
type CellEventKind uint8

const (
	CellAdded = CellEventKind(iota)
	CellRemoved
	CellUpdated
)

func (k CellEventKind) String() string {
	switch k {
	case CellAdded:
		return "added"
	case CellRemoved:
		return "removed"
	case CellUpdated:
		return "updated"
	default:
		return "undefined"
	}
}

// CellEvent reports a cell lifecycle transition.
type CellEvent struct {
	Kind    CellEventKind
	Network NetworkType
	Cell    CellKey
}

// Token identifies a subscription. The zero token is never issued.
type Token uint64

type subscription[T any] struct {
	token Token
	fn    func(T)
}

// Observers is an ordered list of subscriber callbacks.
type Observers[T any] struct {
	mu   sync.Mutex
	last Token
	subs []subscription[T]
}

// Subscribe appends fn to the list. Subscribing the same function twice yields two independent subscriptions.
func (o *Observers[T]) Subscribe(fn func(T)) Token {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last++
	o.subs = append(o.subs, subscription[T]{token: o.last, fn: fn})
	return o.last
}

// Unsubscribe removes the subscription and reports whether it existed.
func (o *Observers[T]) Unsubscribe(token Token) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.token == token {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Notify calls every subscriber in subscription order.
// Subscribers may subscribe or unsubscribe while being notified; changes apply from the next Notify.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	subs := o.subs
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(v)
	}
}

// Clear drops every subscription.
func (o *Observers[T]) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = nil
}

// Len returns the number of active subscriptions.
func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
