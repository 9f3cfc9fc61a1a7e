package booking

import "sync"

type session struct {
	mu    sync.Mutex
	refs  int
	draft *Draft
}

// Sessions serializes inputs per user; different users never share a lock.
type Sessions struct {
	mu     sync.Mutex
	byUser map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{byUser: map[string]*session{}}
}

func (s *Sessions) acquire(userID string) *session {
	s.mu.Lock()
	sess, ok := s.byUser[userID]
	if !ok {
		sess = &session{}
		s.byUser[userID] = sess
	}
	sess.refs++
	s.mu.Unlock()

	sess.mu.Lock()
	return sess
}

// release unlocks sess and forgets it once idle with no draft.
func (s *Sessions) release(userID string, sess *session) {
	sess.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.refs--
	if sess.refs == 0 && sess.draft == nil {
		delete(s.byUser, userID)
	}
}

// Draft returns a copy of the user's draft, if one is in progress.
func (s *Sessions) Draft(userID string) (Draft, bool) {
	sess := s.acquire(userID)
	defer s.release(userID, sess)
	if sess.draft == nil {
		return Draft{}, false
	}
	return *sess.draft, true
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}
