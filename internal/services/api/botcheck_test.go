package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/oilandrope/internal/services/bot/discord"
)

func dialBotSocket(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/bot/" + query
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial bot socket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBotCheckUser(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "alice", false)
	if err := f.store.PutDiscordUser(context.Background(), discord.User{ID: "313", UserID: "alice", Nick: "alice", Code: 1234}); err != nil {
		t.Fatalf("put discord user: %v", err)
	}
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)
	conn := dialBotSocket(t, srv, "")

	tests := []struct {
		name string
		id   any
		want bool
	}{
		{name: "string id", id: "313", want: true},
		{name: "numeric id", id: 313, want: true},
		{name: "unknown id", id: "999", want: false},
		{name: "missing id", id: nil, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := websocket.JSON.Send(conn, map[string]any{"type": "check_user", "discord_id": tc.id}); err != nil {
				t.Fatalf("send: %v", err)
			}
			var got botCheckResponse
			if err := websocket.JSON.Receive(conn, &got); err != nil {
				t.Fatalf("receive: %v", err)
			}
			if got.Exists != tc.want {
				t.Fatalf("exists = %v, want %v", got.Exists, tc.want)
			}
		})
	}
}

func TestBotSocketRejectsBadFrames(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	tests := []struct {
		name  string
		query string
		frame map[string]any
		want  string
	}{
		{name: "no type", frame: map[string]any{"discord_id": "1"}, want: "No type given."},
		{name: "unknown type", frame: map[string]any{"type": "kick"}, want: "Inexistent type."},
		{name: "localized", query: "?lang=es", frame: map[string]any{}, want: "No se ha indicado el tipo."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := dialBotSocket(t, srv, tc.query)
			if err := websocket.JSON.Send(conn, tc.frame); err != nil {
				t.Fatalf("send: %v", err)
			}
			var got botErrorResponse
			if err := websocket.JSON.Receive(conn, &got); err != nil {
				t.Fatalf("receive: %v", err)
			}
			if got.Error != tc.want {
				t.Fatalf("error = %q, want %q", got.Error, tc.want)
			}
			var next json.RawMessage
			if err := websocket.JSON.Receive(conn, &next); err == nil {
				t.Fatal("socket should be closed after an error frame")
			}
		})
	}
}

func TestDiscordIDFromJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `"  42 "`, want: "42"},
		{raw: `1234567890123456789`, want: "1234567890123456789"},
		{raw: `null`},
		{raw: ``},
		{raw: `{"id": 1}`},
	}
	for _, tc := range tests {
		if got := discordIDFromJSON(json.RawMessage(tc.raw)); got != tc.want {
			t.Fatalf("discordIDFromJSON(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
