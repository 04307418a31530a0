package server

import "sync"

// roomRegistry tracks which peer belongs to which room. A peer is a member
// of at most one room at any time; joining a second room performs an
// implicit leave of the first under the same lock so there is no window
// where a peer is addressable in both.
type roomRegistry struct {
	mu      sync.Mutex
	members map[string]map[*wsPeer]struct{}
	rooms   map[*wsPeer]string
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{
		members: make(map[string]map[*wsPeer]struct{}),
		rooms:   make(map[*wsPeer]string),
	}
}

// join adds peer to roomID and returns the room it implicitly left, if any.
func (r *roomRegistry) join(peer *wsPeer, roomID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.rooms[peer]
	if previous == roomID {
		return ""
	}
	if previous != "" {
		r.removeLocked(peer, previous)
	}

	set, ok := r.members[roomID]
	if !ok {
		set = make(map[*wsPeer]struct{})
		r.members[roomID] = set
	}
	set[peer] = struct{}{}
	r.rooms[peer] = roomID
	return previous
}

// leave removes peer from roomID when it is a member there.
func (r *roomRegistry) leave(peer *wsPeer, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[peer] != roomID {
		return
	}
	r.removeLocked(peer, roomID)
}

// disconnect removes peer from whatever room it is in and returns that room.
func (r *roomRegistry) disconnect(peer *wsPeer) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID := r.rooms[peer]
	if roomID != "" {
		r.removeLocked(peer, roomID)
	}
	return roomID
}

func (r *roomRegistry) removeLocked(peer *wsPeer, roomID string) {
	if set, ok := r.members[roomID]; ok {
		delete(set, peer)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	delete(r.rooms, peer)
}

func (r *roomRegistry) isMember(peer *wsPeer, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[peer] == roomID
}

// membersOf returns a snapshot of the room's members excluding exclude.
// Broadcasts iterate the snapshot so a peer leaving mid-fanout is simply
// skipped by its own closed channel rather than torn iteration.
func (r *roomRegistry) membersOf(roomID string, exclude *wsPeer) []*wsPeer {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.members[roomID]
	peers := make([]*wsPeer, 0, len(set))
	for peer := range set {
		if peer == exclude {
			continue
		}
		peers = append(peers, peer)
	}
	return peers
}
