package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// chatMessage is the wire and storage form of one relayed message.
// Messages are immutable once created.
type chatMessage struct {
	ID           string `json:"id"`
	RoomID       string `json:"roomId"`
	SenderID     string `json:"senderId"`
	ClientTempID string `json:"clientTempId"`
	Text         string `json:"text"`
	CreatedAt    string `json:"createdAt"`
	ServerSeq    int64  `json:"serverSeq"`
	ServerTimeMs int64  `json:"serverTimeMs"`
}

// messageStore owns the per-room bounded logs and the dedup index.
// Sessions and the registry never hold direct references into the logs.
type messageStore struct {
	mu       sync.Mutex
	capacity int
	logs     map[string][]chatMessage // room id -> messages, oldest first
	dedup    map[string]chatMessage   // sender id + client temp id -> message
	seq      map[string]int64         // room id -> last assigned server sequence
}

func newMessageStore(capacity int) *messageStore {
	if capacity <= 0 {
		capacity = defaultMaxRoomMessages
	}
	return &messageStore{
		capacity: capacity,
		logs:     make(map[string][]chatMessage),
		dedup:    make(map[string]chatMessage),
		seq:      make(map[string]int64),
	}
}

func dedupKey(senderID string, clientTempID string) string {
	return senderID + ":" + clientTempID
}

// append stores a new message or returns the existing one for a repeated
// (senderID, clientTempID) pair. The second result reports the duplicate case.
func (s *messageStore) append(roomID, senderID, clientTempID, text string) (chatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(senderID, clientTempID)
	if existing, ok := s.dedup[key]; ok {
		return existing, true
	}

	now := time.Now()
	s.seq[roomID]++
	msg := chatMessage{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		SenderID:     senderID,
		ClientTempID: clientTempID,
		Text:         text,
		CreatedAt:    now.UTC().Format(time.RFC3339),
		ServerSeq:    s.seq[roomID],
		ServerTimeMs: now.UnixMilli(),
	}

	log := append(s.logs[roomID], msg)
	if len(log) > s.capacity {
		// Dedup entries follow the log: an evicted message can be sent
		// again under the same client temp id without being swallowed,
		// and dedup memory stays bounded by log capacity.
		evicted := log[0]
		log = log[1:]
		delete(s.dedup, dedupKey(evicted.SenderID, evicted.ClientTempID))
	}
	s.logs[roomID] = log
	s.dedup[key] = msg

	return msg, false
}

// history returns the room log oldest first, bounded by limit when limit > 0.
func (s *messageStore) history(roomID string, limit int) []chatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[roomID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]chatMessage, len(log))
	copy(out, log)
	return out
}
