package server

import "sync"

// wsSession is the per-connection state machine: connected, identified,
// in a room. It is created on connect and discarded on disconnect; the
// registry is the authority on membership, the session only mirrors the
// room it believes it is in for defaulting purposes.
type wsSession struct {
	mu       sync.Mutex
	peer     *wsPeer
	userID   string
	nickname string
	roomID   string
}

func newWSSession(peer *wsPeer) *wsSession {
	return &wsSession{peer: peer}
}

// identify binds an identity claim to the session. Re-identify with a
// different user id is permitted; identity is a claim, not a credential.
func (s *wsSession) identify(userID string, nickname string) {
	s.mu.Lock()
	s.userID = userID
	s.nickname = nickname
	s.mu.Unlock()
}

func (s *wsSession) identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *wsSession) setRoom(roomID string) {
	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()
}

func (s *wsSession) currentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// clearRoom unconditionally forgets the session's current room. An explicit
// leave of a different room still clears the default, mirroring how the
// transport treats the current room as a convenience, not an invariant.
func (s *wsSession) clearRoom() {
	s.mu.Lock()
	s.roomID = ""
	s.mu.Unlock()
}
