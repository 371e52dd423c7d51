package scene

// Listener is called with the registry, the entity and a mutable
// reference to the component the event is about.
type Listener[T any] func(r *Registry, e Entity, c *T)

type listenerEntry[T any] struct {
	id uint64
	fn Listener[T]
}

// Sink holds the listeners for one event on one component type. Listeners
// run synchronously, in connection order.
type Sink[T any] struct {
	listeners []listenerEntry[T]
	nextID    uint64
}

// Connection is returned by Sink.Connect. Release disconnects the listener;
// releasing twice is harmless.
type Connection struct {
	release func()
}

func (c Connection) Release() {
	if c.release != nil {
		c.release()
	}
}

func (s *Sink[T]) Connect(fn Listener[T]) Connection {
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry[T]{id: id, fn: fn})
	return Connection{release: func() { s.disconnect(id) }}
}

func (s *Sink[T]) Len() int {
	return len(s.listeners)
}

func (s *Sink[T]) disconnect(id uint64) {
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Sink[T]) publish(r *Registry, e Entity, c *T) {
	// copy so listeners may connect or release while being notified
	listeners := make([]listenerEntry[T], len(s.listeners))
	copy(listeners, s.listeners)
	for _, l := range listeners {
		l.fn(r, e, c)
	}
}
