// Package notify provides the subscribe-on-change channel the editor core
// exposes to renderers. Delivery is synchronous and in subscription order;
// the core is single-threaded, so subscribers run on the caller's goroutine.
package notify

// Feed fans a value out to every current subscriber.
type Feed[T any] struct {
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it. The cancel
// function is idempotent.
func (f *Feed[T]) Subscribe(fn func(T)) (cancel func()) {
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		for i, s := range f.subs {
			if s.id == id {
				f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

// Send delivers v to all subscribers. A subscriber added or removed during
// delivery takes effect on the next Send.
func (f *Feed[T]) Send(v T) {
	subs := f.subs
	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	return len(f.subs)
}
