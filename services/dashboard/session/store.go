package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Defaults seed new sessions.
type Defaults struct {
	Datasets  []string
	LayerPath string
	Column    string
}

// Store holds live sessions in memory. Sessions idle longer than the TTL
// are dropped on access.
type Store struct {
	defaults Defaults
	ttl      time.Duration
	clock    clockwork.Clock

	mu       sync.Mutex
	sessions map[string]State
}

// NewStore creates an empty store. A zero ttl keeps sessions forever.
func NewStore(defaults Defaults, ttl time.Duration, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if defaults.Column == "" {
		defaults.Column = Columns[0]
	}
	return &Store{
		defaults: defaults,
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]State),
	}
}

// Create starts a session from the defaults.
func (s *Store) Create() State {
	st := State{
		ID:            uuid.New().String(),
		Datasets:      cleanPaths(s.defaults.Datasets),
		LayerPath:     s.defaults.LayerPath,
		Column:        s.defaults.Column,
		ShowFullTable: true,
		Selection:     NewSelection(),
		UpdatedAt:     s.clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.sessions[st.ID] = st
	return st
}

// Get returns the state of id.
func (s *Store) Get(id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(id)
}

// Update replaces the state of id with fn's result. fn runs under the store
// lock and must not call back into the store.
func (s *Store) Update(id string, fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.live(id)
	if err != nil {
		return State{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	next.ID = cur.ID
	next.UpdatedAt = s.clock.Now()
	s.sessions[id] = next
	return next, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	return len(s.sessions)
}

func (s *Store) live(id string) (State, error) {
	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if s.expired(st) {
		delete(s.sessions, id)
		return State{}, ErrNotFound
	}
	return st, nil
}

func (s *Store) expired(st State) bool {
	return s.ttl > 0 && s.clock.Since(st.UpdatedAt) >= s.ttl
}

func (s *Store) sweep() {
	for id, st := range s.sessions {
		if s.expired(st) {
			delete(s.sessions, id)
		}
	}
}
