package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
	"golang.org/x/net/websocket"
)

var testNow = time.Date(2026, time.April, 11, 20, 0, 0, 0, time.UTC)

type wsTestFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsTestAckPayload struct {
	Result struct {
		Status     string `json:"status"`
		MessageID  string `json:"message_id"`
		SequenceID int64  `json:"sequence_id"`
		Count      int    `json:"count"`
		Duplicate  bool   `json:"duplicate"`
	} `json:"result"`
}

type wsTestMessagePayload struct {
	Message struct {
		ChatID     string `json:"chat_id"`
		SequenceID int64  `json:"sequence_id"`
		Body       string `json:"body"`
		Author     struct {
			UserID string `json:"user_id"`
			Name   string `json:"name"`
		} `json:"author"`
	} `json:"message"`
}

type wsTestJoinedPayload struct {
	ChatID           string `json:"chat_id"`
	Name             string `json:"name"`
	Group            string `json:"group"`
	LatestSequenceID int64  `json:"latest_sequence_id"`
}

type wsTestErrorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type chatFixture struct {
	store  *sqlite.Store
	tokens *token.Manager
	chat   chatdomain.Chat
	srv    *httptest.Server
}

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUser(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()

	u := user.User{
		ID:           id,
		Username:     id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		IsActive:     true,
		DateJoined:   testNow,
		UpdatedAt:    testNow,
	}
	if err := store.CreateUser(context.Background(), u, user.NewProfile(id, user.DefaultLanguage, testNow)); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

// newChatFixture seeds alice and bob as members of one chat, and mallory as
// a registered non-member.
func newChatFixture(t *testing.T) chatFixture {
	t.Helper()

	store := openTempStore(t)
	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "mallory"} {
		seedUser(t, store, id)
	}
	chat := chatdomain.Chat{ID: "chat-1", Name: "Tavern Chat", CreatedAt: testNow, UpdatedAt: testNow}
	if err := store.PutChat(ctx, chat); err != nil {
		t.Fatalf("put chat: %v", err)
	}
	if err := store.AddChatMembers(ctx, chat.ID, "alice", "bob"); err != nil {
		t.Fatalf("add members: %v", err)
	}

	tokens, err := token.NewManager(token.Config{Secret: []byte("chat-relay-test-secret")})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	handler := newHandler(handlerOptions{
		store:       store,
		authorizer:  newStoreAuthorizer(tokens, store),
		requireAuth: true,
		now:         func() time.Time { return testNow },
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return chatFixture{store: store, tokens: tokens, chat: chat, srv: srv}
}

func (f chatFixture) cookieFor(t *testing.T, userID string) string {
	t.Helper()

	raw, err := f.tokens.IssueAccess(userID, false, false)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	return tokenCookieName + "=" + raw
}

func (f chatFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	conn, err := dialWSWithServerURL(f.srv.URL, "/ws/chat/", f.cookieFor(t, userID))
	if err != nil {
		t.Fatalf("dial websocket as %s: %v", userID, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func dialWSWithServerURL(httpURL string, path string, cookie string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + path
	if strings.TrimSpace(cookie) == "" {
		return websocket.Dial(wsURL, "", httpURL)
	}
	cfg, err := websocket.NewConfig(wsURL, httpURL)
	if err != nil {
		return nil, err
	}
	cfg.Header = make(http.Header)
	cfg.Header.Set("Cookie", cookie)
	return websocket.DialConfig(cfg)
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsTestFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := websocket.JSON.Receive(conn, &got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func readFrameOfType(t *testing.T, conn *websocket.Conn, frameType string) wsTestFrame {
	t.Helper()
	got := readFrame(t, conn)
	if got.Type != frameType {
		t.Fatalf("frame type = %q, want %q (payload %s)", got.Type, frameType, got.Payload)
	}
	return got
}

func decodePayload[T any](t *testing.T, frame wsTestFrame) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("decode %s payload: %v", frame.Type, err)
	}
	return payload
}

func joinChat(t *testing.T, conn *websocket.Conn, chatID string) wsTestJoinedPayload {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type":       "chat.join",
		"request_id": "join-1",
		"payload":    map[string]any{"chat_id": chatID},
	})
	return decodePayload[wsTestJoinedPayload](t, readFrameOfType(t, conn, "chat.joined"))
}

func TestWSRequiresAuthentication(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	if _, err := dialWSWithServerURL(f.srv.URL, "/ws/chat/", ""); err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if _, err := dialWSWithServerURL(f.srv.URL, "/ws/chat/", tokenCookieName+"=garbage"); err == nil {
		t.Fatal("expected dial with invalid token to fail")
	}
}

func TestWSAcceptsBearerHeader(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	raw, err := f.tokens.IssueAccess("alice", false, false)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/chat/"
	cfg, err := websocket.NewConfig(wsURL, f.srv.URL)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	cfg.Header = make(http.Header)
	cfg.Header.Set("Authorization", "Bearer "+raw)
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		t.Fatalf("dial with bearer: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	joined := joinChat(t, conn, f.chat.ID)
	if joined.ChatID != f.chat.ID || joined.Group != "chat_chat-1" {
		t.Fatalf("unexpected joined payload: %+v", joined)
	}
}

func TestWSJoinRejectsNonMembers(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	conn := f.dial(t, "mallory")
	writeFrame(t, conn, map[string]any{
		"type":    "chat.join",
		"payload": map[string]any{"chat_id": f.chat.ID},
	})
	errPayload := decodePayload[wsTestErrorPayload](t, readFrameOfType(t, conn, "chat.error"))
	if errPayload.Error.Code != "CHAT_NOT_MEMBER" {
		t.Fatalf("error code = %q, want CHAT_NOT_MEMBER", errPayload.Error.Code)
	}

	writeFrame(t, conn, map[string]any{
		"type":    "chat.join",
		"payload": map[string]any{"chat_id": "missing"},
	})
	errPayload = decodePayload[wsTestErrorPayload](t, readFrameOfType(t, conn, "chat.error"))
	if errPayload.Error.Code != "NOT_FOUND" {
		t.Fatalf("error code = %q, want NOT_FOUND", errPayload.Error.Code)
	}
}

func TestWSSendBroadcastsToMembers(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	joinChat(t, alice, f.chat.ID)
	joinChat(t, bob, f.chat.ID)

	writeFrame(t, alice, map[string]any{
		"type":       "chat.send",
		"request_id": "send-1",
		"payload":    map[string]any{"client_message_id": "c-1", "body": "  hello tavern  "},
	})

	var ack wsTestAckPayload
	var aliceMessage wsTestMessagePayload
	for range 2 {
		frame := readFrame(t, alice)
		switch frame.Type {
		case "chat.ack":
			ack = decodePayload[wsTestAckPayload](t, frame)
		case "chat.message":
			aliceMessage = decodePayload[wsTestMessagePayload](t, frame)
		default:
			t.Fatalf("unexpected frame %q", frame.Type)
		}
	}
	if ack.Result.Status != "ok" || ack.Result.SequenceID != 1 {
		t.Fatalf("unexpected ack: %+v", ack.Result)
	}
	if aliceMessage.Message.Body != "hello tavern" {
		t.Fatalf("body = %q, want trimmed", aliceMessage.Message.Body)
	}

	bobMessage := decodePayload[wsTestMessagePayload](t, readFrameOfType(t, bob, "chat.message"))
	if bobMessage.Message.SequenceID != 1 || bobMessage.Message.Author.UserID != "alice" || bobMessage.Message.Author.Name != "alice" {
		t.Fatalf("unexpected broadcast: %+v", bobMessage.Message)
	}

	stored, err := f.store.ListMessagesBefore(context.Background(), f.chat.ID, 0, 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(stored) != 1 || stored[0].ClientMessageID != "c-1" {
		t.Fatalf("unexpected stored messages: %+v", stored)
	}
}

func TestWSSendIsIdempotentByClientMessageID(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")
	joinChat(t, alice, f.chat.ID)

	send := map[string]any{
		"type":    "chat.send",
		"payload": map[string]any{"client_message_id": "dup", "body": "once"},
	}
	writeFrame(t, alice, send)
	first := decodePayload[wsTestAckPayload](t, readFrameOfType(t, alice, "chat.ack"))
	readFrameOfType(t, alice, "chat.message")

	writeFrame(t, alice, send)
	second := decodePayload[wsTestAckPayload](t, readFrameOfType(t, alice, "chat.ack"))
	if !second.Result.Duplicate || second.Result.MessageID != first.Result.MessageID || second.Result.SequenceID != first.Result.SequenceID {
		t.Fatalf("duplicate ack = %+v, first = %+v", second.Result, first.Result)
	}

	latest, err := f.store.LatestSequence(context.Background(), f.chat.ID)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if latest != 1 {
		t.Fatalf("latest sequence = %d, want 1", latest)
	}
}

func TestWSLegacyFrameNames(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	bob := f.dial(t, "bob")
	writeFrame(t, bob, map[string]any{
		"type":    "setup_channel_layer",
		"payload": map[string]any{"chat": f.chat.ID},
	})
	joined := decodePayload[wsTestJoinedPayload](t, readFrameOfType(t, bob, "chat.joined"))
	if joined.Name != "Tavern Chat" {
		t.Fatalf("joined name = %q", joined.Name)
	}

	// send_message names the chat itself, so no prior join is needed.
	alice := f.dial(t, "alice")
	writeFrame(t, alice, map[string]any{
		"type":    "send_message",
		"payload": map[string]any{"chat": f.chat.ID, "message": "legacy hello"},
	})
	readFrameOfType(t, alice, "chat.joined")
	readFrameOfType(t, alice, "chat.ack")

	msg := decodePayload[wsTestMessagePayload](t, readFrameOfType(t, bob, "chat.message"))
	if msg.Message.Body != "legacy hello" {
		t.Fatalf("body = %q", msg.Message.Body)
	}
}

func TestWSSendValidation(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")

	writeFrame(t, alice, map[string]any{
		"type":    "chat.send",
		"payload": map[string]any{"client_message_id": "c-1", "body": "too early"},
	})
	errPayload := decodePayload[wsTestErrorPayload](t, readFrameOfType(t, alice, "chat.error"))
	if errPayload.Error.Code != "PERMISSION_DENIED" {
		t.Fatalf("error code = %q, want PERMISSION_DENIED", errPayload.Error.Code)
	}

	joinChat(t, alice, f.chat.ID)
	writeFrame(t, alice, map[string]any{
		"type":    "chat.send",
		"payload": map[string]any{"client_message_id": "c-2", "body": strings.Repeat("x", chatdomain.MaxBodyLength+1)},
	})
	errPayload = decodePayload[wsTestErrorPayload](t, readFrameOfType(t, alice, "chat.error"))
	if errPayload.Error.Code != "CHAT_INVALID_BODY" {
		t.Fatalf("error code = %q, want CHAT_INVALID_BODY", errPayload.Error.Code)
	}
}

func TestWSHistoryBefore(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	ctx := context.Background()
	for i, body := range []string{"one", "two", "three", "four"} {
		msg, err := chatdomain.NewMessage(f.chat.ID, "bob", body, "", func() time.Time { return testNow.Add(time.Duration(i) * time.Minute) }, nil)
		if err != nil {
			t.Fatalf("new message: %v", err)
		}
		if _, _, err := f.store.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append message: %v", err)
		}
	}

	alice := f.dial(t, "alice")
	joined := joinChat(t, alice, f.chat.ID)
	if joined.LatestSequenceID != 4 {
		t.Fatalf("latest sequence = %d, want 4", joined.LatestSequenceID)
	}

	writeFrame(t, alice, map[string]any{
		"type":       "chat.history.before",
		"request_id": "history-1",
		"payload":    map[string]any{"before_sequence_id": 4, "limit": 2},
	})
	var bodies []string
	for range 2 {
		msg := decodePayload[wsTestMessagePayload](t, readFrameOfType(t, alice, "chat.message"))
		bodies = append(bodies, msg.Message.Body)
		if msg.Message.Author.Name != "bob" {
			t.Fatalf("author name = %q, want bob", msg.Message.Author.Name)
		}
	}
	ack := decodePayload[wsTestAckPayload](t, readFrameOfType(t, alice, "chat.ack"))
	if ack.Result.Count != 2 {
		t.Fatalf("history count = %d, want 2", ack.Result.Count)
	}
	if strings.Join(bodies, ",") != "two,three" {
		t.Fatalf("history = %v, want [two three]", bodies)
	}

	writeFrame(t, alice, map[string]any{
		"type":    "chat.history.before",
		"payload": map[string]any{"before_sequence_id": 0},
	})
	readFrameOfType(t, alice, "chat.error")
}

func TestWSClosesAfterRepeatedDecodeErrors(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")
	for range maxDecodeErrorsPerConn {
		if _, err := alice.Write([]byte("{not json")); err != nil {
			t.Fatalf("write raw frame: %v", err)
		}
		readFrameOfType(t, alice, "chat.error")
	}

	_ = alice.SetDeadline(time.Now().Add(2 * time.Second))
	var frame wsTestFrame
	if err := websocket.JSON.Receive(alice, &frame); err == nil {
		t.Fatalf("expected closed connection, got frame %q", frame.Type)
	}
}

func TestWSRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")
	writeFrame(t, alice, map[string]any{
		"type":       "chat.join",
		"request_id": "big",
		"payload": map[string]any{
			"chat_id": f.chat.ID,
			"padding": strings.Repeat("a", maxFramePayloadBytes),
		},
	})
	frame := readFrameOfType(t, alice, "chat.error")
	if frame.RequestID != "big" {
		t.Fatalf("request id = %q", frame.RequestID)
	}
	errPayload := decodePayload[wsTestErrorPayload](t, frame)
	if errPayload.Error.Code != "INVALID_ARGUMENT" || errPayload.Error.Message != "payload too large" {
		t.Fatalf("error = %+v", errPayload.Error)
	}

	// The connection stays usable.
	if joined := joinChat(t, alice, f.chat.ID); joined.ChatID != f.chat.ID {
		t.Fatalf("joined = %+v", joined)
	}
}

func TestWSClosesWhenRateLimited(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")
	for range maxFramesPerSecond + 1 {
		writeFrame(t, alice, map[string]any{"type": "chat.dance", "payload": map[string]any{}})
	}

	for range maxFramesPerSecond {
		errPayload := decodePayload[wsTestErrorPayload](t, readFrameOfType(t, alice, "chat.error"))
		if errPayload.Error.Code != "INVALID_ARGUMENT" {
			t.Fatalf("frame within limit: error = %+v", errPayload.Error)
		}
	}
	errPayload := decodePayload[wsTestErrorPayload](t, readFrameOfType(t, alice, "chat.error"))
	if errPayload.Error.Code != "RESOURCE_EXHAUSTED" {
		t.Fatalf("error = %+v, want RESOURCE_EXHAUSTED", errPayload.Error)
	}

	_ = alice.SetDeadline(time.Now().Add(2 * time.Second))
	var frame wsTestFrame
	if err := websocket.JSON.Receive(alice, &frame); err == nil {
		t.Fatalf("expected closed connection, got frame %q", frame.Type)
	}
}

func TestWSUnsupportedFrameType(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	alice := f.dial(t, "alice")
	writeFrame(t, alice, map[string]any{"type": "chat.dance", "payload": map[string]any{}})
	errPayload := decodePayload[wsTestErrorPayload](t, readFrameOfType(t, alice, "chat.error"))
	if errPayload.Error.Message != "unsupported frame type" {
		t.Fatalf("message = %q", errPayload.Error.Message)
	}
}

func TestWSRoomsAreReleasedOnDisconnect(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	seedUser(t, store, "alice")
	ctx := context.Background()
	if err := store.PutChat(ctx, chatdomain.Chat{ID: "c", Name: "C", CreatedAt: testNow, UpdatedAt: testNow}); err != nil {
		t.Fatalf("put chat: %v", err)
	}
	if err := store.AddChatMembers(ctx, "c", "alice"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	rl := newRelay(handlerOptions{store: store})
	srv := httptest.NewServer(rl.routes())
	t.Cleanup(srv.Close)

	conn, err := dialWSWithServerURL(srv.URL, "/ws/chat/?user=alice", "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	joinChat(t, conn, "c")
	if rl.hub.size() != 1 {
		t.Fatalf("rooms = %d, want 1", rl.hub.size())
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for rl.hub.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room was not released")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
