package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/oilandrope/internal/services/mcp/domain"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "mcp.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := openTempStore(t)
	if err := store.PutPlace(context.Background(), place.Place{ID: "w1", Name: "Faerûn", SiteType: place.SiteWorld}); err != nil {
		t.Fatalf("put place: %v", err)
	}

	server, err := New(Deps{
		Store:       store,
		ResolveSeed: func(*int64) (int64, error) { return 42, nil },
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

// connect runs the server on in-memory transports and returns a client session.
func connect(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	done := make(chan error, 1)
	go func() {
		done <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = session.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return session
}

func callTool[T any](t *testing.T, session *mcp.ClientSession, name string, args any) (T, *mcp.CallToolResult) {
	t.Helper()

	var out T
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result.IsError || result.StructuredContent == nil {
		return out, result
	}
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s output: %v", name, err)
	}
	return out, result
}

func TestNewRequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected store error")
	}
}

func TestToolsAreRegistered(t *testing.T) {
	t.Parallel()

	session := connect(t, newTestServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	list, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	got := strings.Join(names, ",")
	for _, want := range []string{"roll_dice", "list_worlds", "describe_campaign"} {
		if !strings.Contains(got, want) {
			t.Fatalf("tools = %v, missing %s", names, want)
		}
	}
}

func TestCallTools(t *testing.T) {
	t.Parallel()

	session := connect(t, newTestServer(t))

	roll, result := callTool[domain.RollDiceResult](t, session, "roll_dice", map[string]any{"roll": "1d20+5"})
	if result.IsError {
		t.Fatalf("roll_dice failed: %+v", result.Content)
	}
	if roll.Seed != 42 || len(roll.Terms) != 2 || roll.Total < 6 || roll.Total > 25 {
		t.Fatalf("roll = %+v", roll)
	}

	_, result = callTool[domain.RollDiceResult](t, session, "roll_dice", map[string]any{"roll": "fireball"})
	if !result.IsError {
		t.Fatal("bad syntax should be a tool error")
	}

	worlds, result := callTool[domain.ListWorldsResult](t, session, "list_worlds", map[string]any{})
	if result.IsError {
		t.Fatalf("list_worlds failed: %+v", result.Content)
	}
	if len(worlds.Worlds) != 1 || worlds.Worlds[0].Name != "Faerûn" {
		t.Fatalf("worlds = %+v", worlds)
	}

	_, result = callTool[domain.DescribeCampaignResult](t, session, "describe_campaign", map[string]any{"campaign_id": "ghost"})
	if !result.IsError {
		t.Fatal("unknown campaign should be a tool error")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "not found") {
		t.Fatalf("content = %+v", result.Content)
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Config{Transport: "carrier-pigeon"}, Deps{Store: openTempStore(t)})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("err = %v", err)
	}
}

func TestHandlerServesStreamableHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer(t).Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/elsewhere")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "http-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL + MCPPath}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "roll_dice", Arguments: map[string]any{"roll": "3"}})
	if err != nil {
		t.Fatalf("call roll_dice: %v", err)
	}
	if result.IsError {
		t.Fatalf("roll_dice failed: %+v", result.Content)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, _ := mcp.NewInMemoryTransports()
	done := make(chan error, 1)
	go func() { done <- server.serveWithTransport(ctx, serverTransport) }()
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
