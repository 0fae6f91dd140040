package sessions

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Subscriber is called after every reduction with the states either side of it.
// Subscribers must not call Dispatch on the same store.
type Subscriber func(ctx context.Context, prev, next State, action Action)

// Store holds the current State and serialises transitions through Reduce.
type Store struct {
	dispatchLock sync.Mutex
	lock         sync.RWMutex
	state        State

	subscribers map[int]Subscriber
	nextID      int
}

func NewStore(initial State) *Store {
	return &Store{
		state:       initial,
		subscribers: make(map[int]Subscriber),
	}
}

func (s *Store) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Dispatch reduces the action into the store and then notifies subscribers in registration order.
// Dispatches are applied one at a time; the last one to run wins.
func (s *Store) Dispatch(ctx context.Context, action Action) State {
	s.dispatchLock.Lock()
	defer s.dispatchLock.Unlock()

	s.lock.Lock()
	prev := s.state
	next := Reduce(prev, action)
	s.state = next
	subs := s.orderedSubscribers()
	s.lock.Unlock()

	log.Debug().Str("action", ActionName(action)).Str("phase", string(next.Phase())).Msg("session transition")

	for _, sub := range subs {
		sub(ctx, prev, next, action)
	}
	return next
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.lock.Lock()
	defer s.lock.Unlock()

	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) orderedSubscribers() []Subscriber {
	subs := make([]Subscriber, 0, len(s.subscribers))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}
