package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/campfirehq/campfire/internal/platform/timeouts"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxDecodeErrorsPerConn = 3

	maxMessageTextRunes = 1000
)

// Client events and their server replies. Acks mirror the event name so a
// client can correlate replies without tracking request ids.
const (
	eventIdentify    = "identify"
	eventJoinRoom    = "join:room"
	eventLeaveRoom   = "leave:room"
	eventMessageSend = "message:send"

	eventIdentifyAck    = "identify:ack"
	eventJoinRoomAck    = "join:room:ack"
	eventLeaveRoomAck   = "leave:room:ack"
	eventMessageSendAck = "message:send:ack"

	eventMessageNew = "message:new"
	eventRelayError = "relay:error"
)

// Stable error codes surfaced in failure acks. All are client-caused and
// locally recoverable; none of them corrupt registry or store state.
const (
	codeValidationError = "VALIDATION_ERROR"
	codeMissingRoom     = "MISSING_ROOM"
	codeNotIdentified   = "NOT_IDENTIFIED"
	codeNotAMember      = "NOT_A_MEMBER"
	codeMissingTempID   = "MISSING_TEMP_ID"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type relayErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type identifyPayload struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
}

type userInfo struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	LastSeenAt string `json:"lastSeenAt,omitempty"`
}

type identifyAck struct {
	OK   bool     `json:"ok"`
	ID   string   `json:"id"`
	User userInfo `json:"user"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type roomAck struct {
	OK     bool   `json:"ok"`
	RoomID string `json:"roomId"`
}

type sendPayload struct {
	RoomID       string `json:"roomId,omitempty"`
	ClientTempID string `json:"clientTempId"`
	Text         string `json:"text"`
}

type sendAck struct {
	OK        bool        `json:"ok"`
	Message   chatMessage `json:"message"`
	Duplicate bool        `json:"duplicate"`
}

type failAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// relayHandler dispatches inbound events against the shared room state.
type relayHandler struct {
	store    *messageStore
	registry *roomRegistry
	resolver userResolver
}

func newRelayHandler(store *messageStore, registry *roomRegistry, resolver userResolver) *relayHandler {
	return &relayHandler{
		store:    store,
		registry: registry,
		resolver: resolver,
	}
}

// handleConn runs the read loop for one connection. The session is owned
// by this goroutine; only the peer's writer goroutine touches the socket
// for output.
func (h *relayHandler) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	peer := newWSPeer(uuid.New().String())
	go func() {
		peer.writePump(json.NewEncoder(conn))
		_ = conn.Close()
	}()

	session := newWSSession(peer)
	defer func() {
		if roomID := h.registry.disconnect(peer); roomID != "" {
			log.Printf("relay: conn %s disconnected from room %s", peer.id, roomID)
		}
		peer.close()
	}()

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			writeRelayError(peer, "", codeValidationError, "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			writeRelayError(peer, frame.RequestID, codeValidationError, "payload too large")
			continue
		}

		switch frame.Type {
		case eventIdentify:
			h.handleIdentify(ctx, session, frame)
		case eventJoinRoom:
			h.handleJoin(session, frame)
		case eventLeaveRoom:
			h.handleLeave(session, frame)
		case eventMessageSend:
			h.handleSend(session, frame)
		default:
			writeRelayError(peer, frame.RequestID, codeValidationError, "unsupported frame type")
		}
	}
}

func (h *relayHandler) handleIdentify(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload identifyPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeFailAck(session.peer, eventIdentifyAck, frame.RequestID, codeValidationError)
		return
	}

	userID := strings.TrimSpace(payload.ID)
	if userID == "" {
		writeFailAck(session.peer, eventIdentifyAck, frame.RequestID, codeValidationError)
		return
	}
	nickname := strings.TrimSpace(payload.Nickname)

	session.identify(userID, nickname)

	user := userInfo{ID: userID, Nickname: nickname}
	if h.resolver != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, timeouts.DirectoryLookup)
		resolved, err := h.resolver.ResolveUser(lookupCtx, userID)
		cancel()
		switch {
		case err != nil:
			// Identity is a claim; a directory outage never fails identify.
			log.Printf("relay: directory lookup failed for user %s: %v", userID, err)
		case resolved != nil:
			if resolved.Nickname != "" {
				user.Nickname = resolved.Nickname
			}
			user.CreatedAt = resolved.CreatedAt
			user.LastSeenAt = resolved.LastSeenAt
		}
	}

	writeAck(session.peer, eventIdentifyAck, frame.RequestID, identifyAck{
		OK:   true,
		ID:   userID,
		User: user,
	})
}

func (h *relayHandler) handleJoin(session *wsSession, frame wsFrame) {
	var payload joinRoomPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeFailAck(session.peer, eventJoinRoomAck, frame.RequestID, codeValidationError)
		return
	}

	roomID := strings.TrimSpace(payload.RoomID)
	if roomID == "" {
		writeFailAck(session.peer, eventJoinRoomAck, frame.RequestID, codeValidationError)
		return
	}

	if previous := h.registry.join(session.peer, roomID); previous != "" {
		log.Printf("relay: conn %s left room %s for room %s", session.peer.id, previous, roomID)
	}
	session.setRoom(roomID)

	writeAck(session.peer, eventJoinRoomAck, frame.RequestID, roomAck{OK: true, RoomID: roomID})
}

func (h *relayHandler) handleLeave(session *wsSession, frame wsFrame) {
	roomID, ok := leaveRoomID(frame.Payload)
	if !ok {
		writeFailAck(session.peer, eventLeaveRoomAck, frame.RequestID, codeValidationError)
		return
	}
	if roomID == "" {
		roomID = session.currentRoom()
	}
	if roomID == "" {
		writeFailAck(session.peer, eventLeaveRoomAck, frame.RequestID, codeMissingRoom)
		return
	}

	h.registry.leave(session.peer, roomID)
	session.clearRoom()

	writeAck(session.peer, eventLeaveRoomAck, frame.RequestID, roomAck{OK: true, RoomID: roomID})
}

// leaveRoomID accepts the room either as a bare JSON string or as a
// {"roomId": ...} object, matching both client generations.
func leaveRoomID(payload json.RawMessage) (string, bool) {
	if len(payload) == 0 {
		return "", true
	}
	var bare string
	if err := json.Unmarshal(payload, &bare); err == nil {
		return strings.TrimSpace(bare), true
	}
	var object joinRoomPayload
	if err := json.Unmarshal(payload, &object); err == nil {
		return strings.TrimSpace(object.RoomID), true
	}
	return "", false
}

// handleSend validates in a fixed order so error precedence is
// deterministic: room, identity, membership, temp id, text.
func (h *relayHandler) handleSend(session *wsSession, frame wsFrame) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeFailAck(session.peer, eventMessageSendAck, frame.RequestID, codeValidationError)
		return
	}

	roomID := strings.TrimSpace(payload.RoomID)
	if roomID == "" {
		roomID = session.currentRoom()
	}
	if roomID == "" {
		writeFailAck(session.peer, eventMessageSendAck, frame.RequestID, codeMissingRoom)
		return
	}

	senderID := session.identity()
	if senderID == "" {
		writeFailAck(session.peer, eventMessageSendAck, frame.RequestID, codeNotIdentified)
		return
	}

	if !h.registry.isMember(session.peer, roomID) {
		writeFailAck(session.peer, eventMessageSendAck, frame.RequestID, codeNotAMember)
		return
	}

	clientTempID := strings.TrimSpace(payload.ClientTempID)
	if clientTempID == "" {
		writeFailAck(session.peer, eventMessageSendAck, frame.RequestID, codeMissingTempID)
		return
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageTextRunes {
		writeFailAck(session.peer, eventMessageSendAck, frame.RequestID, codeValidationError)
		return
	}

	msg, duplicate := h.store.append(roomID, senderID, clientTempID, text)

	writeAck(session.peer, eventMessageSendAck, frame.RequestID, sendAck{
		OK:        true,
		Message:   msg,
		Duplicate: duplicate,
	})

	if duplicate {
		return
	}

	broadcast := wsFrame{Type: eventMessageNew, Payload: mustJSON(msg)}
	for _, member := range h.registry.membersOf(roomID, session.peer) {
		if !member.enqueue(broadcast) {
			log.Printf("relay: dropped message %s for slow conn %s", msg.ID, member.id)
		}
	}
}

func writeAck(peer *wsPeer, ackType string, requestID string, payload any) {
	frame := wsFrame{
		Type:      ackType,
		RequestID: requestID,
		Payload:   mustJSON(payload),
	}
	if !peer.enqueue(frame) {
		log.Printf("relay: dropped %s for slow conn %s", ackType, peer.id)
	}
}

func writeFailAck(peer *wsPeer, ackType string, requestID string, code string) {
	writeAck(peer, ackType, requestID, failAck{OK: false, Error: code})
}

func writeRelayError(peer *wsPeer, requestID string, code string, message string) {
	writeAck(peer, eventRelayError, requestID, relayErrorPayload{Code: code, Message: message})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("relay: failed to marshal frame payload: %v", err)
		return nil
	}
	return b
}
