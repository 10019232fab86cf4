package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/timeouts"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"golang.org/x/net/websocket"
)

type wsSession struct {
	mu     sync.Mutex
	userID string
	name   string
	room   *chatRoom
	peer   *wsPeer
}

func newWSSession(userID, name string, peer *wsPeer) *wsSession {
	return &wsSession{
		userID: userID,
		name:   name,
		peer:   peer,
	}
}

func (s *wsSession) setRoom(next *chatRoom) *chatRoom {
	s.mu.Lock()
	previous := s.room
	s.room = next
	s.mu.Unlock()
	return previous
}

func (s *wsSession) currentRoom() *chatRoom {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	return room
}

type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WebSocketWrite))
	}
	return p.encoder.Encode(frame)
}

// roomHub keys rooms by broadcast group so every connection joined to the
// same chat shares one subscriber set.
type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*chatRoom
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*chatRoom)}
}

// join subscribes peer to the room of chatID, creating it when needed.
func (h *roomHub) join(chatID string, peer *wsPeer) *chatRoom {
	group := chatdomain.Group(chatID)
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[group]
	if !ok {
		room = newChatRoom(chatID)
		h.rooms[group] = room
	}
	room.join(peer)
	return room
}

// leave unsubscribes peer and drops the room once nobody listens.
func (h *roomHub) leave(room *chatRoom, peer *wsPeer) {
	if room == nil || peer == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room.leave(peer) && h.rooms[room.group] == room {
		delete(h.rooms, room.group)
	}
}

func (h *roomHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

type chatRoom struct {
	mu          sync.Mutex
	chatID      string
	group       string
	subscribers map[*wsPeer]struct{}
}

func newChatRoom(chatID string) *chatRoom {
	return &chatRoom{
		chatID:      chatID,
		group:       chatdomain.Group(chatID),
		subscribers: make(map[*wsPeer]struct{}),
	}
}

func (r *chatRoom) join(peer *wsPeer) {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	r.mu.Unlock()
}

func (r *chatRoom) leave(peer *wsPeer) bool {
	r.mu.Lock()
	delete(r.subscribers, peer)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *chatRoom) snapshot() []*wsPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	subscribers := make([]*wsPeer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return subscribers
}

func (r *chatRoom) broadcast(frame wsFrame) {
	for _, subscriber := range r.snapshot() {
		_ = subscriber.writeFrame(frame)
	}
}

func toChatMessage(m chatdomain.Message, authorName string) chatMessage {
	if authorName == "" {
		authorName = m.AuthorID
	}
	return chatMessage{
		MessageID:       m.ID,
		ChatID:          m.ChatID,
		SequenceID:      m.Sequence,
		SentAt:          m.CreatedAt.UTC().Format(time.RFC3339),
		Author:          messageAuthor{UserID: m.AuthorID, Name: authorName},
		Body:            m.Body,
		ClientMessageID: m.ClientMessageID,
	}
}
