package editor

import "sync"

// Change describes one applied action.
type Change struct {
	Prev   State
	Next   State
	Action Action
}

// Observer is notified after each applied action.
type Observer func(Change)

// Store owns the editor state. All mutation goes through Dispatch.
//
// Observers run outside the lock in dispatch order. An observer that
// dispatches has its change queued behind the one being delivered.
type Store struct {
	mu        sync.Mutex
	state     State
	observers map[int]Observer
	order     []int
	nextID    int
	queue     []Change
	notifying bool
}

func NewStore(initial State) *Store {
	return &Store{
		state:     initial,
		observers: make(map[int]Observer),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Observe registers fn and returns a function that removes it.
func (s *Store) Observe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Dispatch applies the actions in order and returns the resulting state.
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	for _, a := range actions {
		if a == nil {
			continue
		}
		prev := s.state
		s.state = Reduce(prev, a)
		s.queue = append(s.queue, Change{Prev: prev, Next: s.state, Action: a})
	}
	next := s.state
	if s.notifying {
		s.mu.Unlock()
		return next
	}

	s.notifying = true
	for len(s.queue) > 0 {
		c := s.queue[0]
		s.queue = s.queue[1:]
		observers := make([]Observer, 0, len(s.order))
		for _, id := range s.order {
			observers = append(observers, s.observers[id])
		}
		s.mu.Unlock()
		for _, fn := range observers {
			fn(c)
		}
		s.mu.Lock()
	}
	s.notifying = false
	s.mu.Unlock()
	return next
}
