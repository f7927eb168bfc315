package session

import "sync"

// State is the signed-in user and the project they are working on. Components
// receive it explicitly and watch it for project changes.
type State struct {
	mu        sync.RWMutex
	userID    string
	projectID string
	nextID    int
	listeners map[int]func(previous, current string)
}

func New(userID, projectID string) *State {
	return &State{
		userID:    userID,
		projectID: projectID,
		listeners: map[int]func(string, string){},
	}
}

func (s *State) CurrentUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *State) CurrentProject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// SetProject switches the active project and notifies listeners synchronously,
// in registration order. Setting the same project again notifies nobody.
func (s *State) SetProject(projectID string) {
	s.mu.Lock()
	previous := s.projectID
	if previous == projectID {
		s.mu.Unlock()
		return
	}
	s.projectID = projectID
	fns := make([]func(string, string), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(previous, projectID)
	}
}

// OnProjectChange registers fn and returns a func that removes it.
func (s *State) OnProjectChange(fn func(previous, current string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
