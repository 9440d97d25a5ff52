package ui

import (
	"sort"
	"sync"
)

// observers is a set of callbacks invoked in subscription order.
type observers[T any] struct {
	mu     sync.Mutex
	fns    map[int]func(T)
	nextID int
}

func (o *observers[T]) add(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(T))
	}
	id := o.nextID
	o.nextID++
	o.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.fns, id)
		})
	}
}

// notify must be called without the owner's lock held.
func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
