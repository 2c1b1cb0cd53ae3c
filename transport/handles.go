package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownHandle is returned for a handle that was never allocated or has been freed.
var ErrUnknownHandle = errors.New("unknown handle")

// Handle refers to an object owned by a session. A freed slot is reused with a new generation,
// so a stale handle never reaches the object that replaced it.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero handle, which is never allocated.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.index, h.generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// arena stores objects in slots indexed by handle
type arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func (a *arena[T]) alloc(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.value, s.used = v, true
	a.count++
	return Handle{index: idx, generation: s.generation}
}

func (a *arena[T]) get(h Handle) (T, bool) {
	var zero T
	if int(h.index) >= len(a.slots) {
		return zero, false
	}
	s := a.slots[h.index]
	if !s.used || s.generation != h.generation {
		return zero, false
	}
	return s.value, true
}

func (a *arena[T]) release(h Handle) (T, error) {
	v, ok := a.get(h)
	if !ok {
		return v, errors.Wrapf(ErrUnknownHandle, "handle %s", h)
	}
	var zero T
	a.slots[h.index].value, a.slots[h.index].used = zero, false
	a.free = append(a.free, h.index)
	a.count--
	return v, nil
}

// handles returns the live handles in slot order
func (a *arena[T]) handles() []Handle {
	out := make([]Handle, 0, a.count)
	for i, s := range a.slots {
		if s.used {
			out = append(out, Handle{index: uint32(i), generation: s.generation})
		}
	}
	return out
}

func (a *arena[T]) len() int {
	return a.count
}
