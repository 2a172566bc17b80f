package state

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Listener receives the state snapshot after each transition.
//
// Listeners run synchronously on the dispatching goroutine, outside the
// store lock. A listener should hand real work off to its own loop; the
// snapshot it receives is immutable, so holding it is always safe.
type Listener func(AppState)

// Store owns the AppState and serializes all transitions. It is constructed
// once at process start and passed by handle to every component that needs
// it; there is no package-level instance.
type Store struct {
	logger *log.Logger

	mu        sync.Mutex
	state     AppState
	listeners map[int]Listener
	nextID    int
}

// NewStore creates a store with empty defaults.
func NewStore(logger *log.Logger) *Store {
	return &Store{
		logger:    logger.WithPrefix("state"),
		state:     AppState{Peers: map[string]Peer{}},
		listeners: map[int]Listener{},
	}
}

// Dispatch applies one event and notifies listeners with the new snapshot.
// The transition happens under the lock; notification happens outside it, so
// a listener may read State or even dispatch again without deadlocking.
func (s *Store) Dispatch(ev Event) {
	s.mu.Lock()
	s.logger.Debug("dispatch", "event", eventName(ev))
	s.state = reduce(s.state, ev)
	snapshot := s.state

	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// Subscribe registers a listener and returns its unsubscribe func. The
// listener is not called with the current state; callers wanting an initial
// snapshot use State.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// State returns the current snapshot.
func (s *Store) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func eventName(ev Event) string {
	switch ev.(type) {
	case EventJoined:
		return "joined"
	case EventSeatTaken:
		return "seat-taken"
	case EventChat:
		return "chat"
	case EventGameUpdate:
		return "game-update"
	case EventError:
		return "error"
	case EventPeerSignal:
		return "peer-signal"
	case EventPeerAdded:
		return "peer-added"
	case EventPeerRemoved:
		return "peer-removed"
	default:
		return "unknown"
	}
}
