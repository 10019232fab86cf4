package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/oilandrope/internal/platform/i18n/catalog"
	"github.com/louisbranch/oilandrope/internal/services/shared/i18nhttp"
)

const frameCheckUser = "check_user"

type botFrame struct {
	Type      string          `json:"type"`
	DiscordID json.RawMessage `json:"discord_id"`
}

type botCheckResponse struct {
	Exists bool `json:"exists"`
}

type botErrorResponse struct {
	Error string `json:"error"`
}

// botCheckHandler answers whether a Discord account is known to the site.
// Frames without a known type get an error and close the socket.
func (h *handler) botCheckHandler() websocket.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()
		request := conn.Request()
		ctx := request.Context()
		locale, _ := i18nhttp.ResolveLocale(request)

		for {
			var frame botFrame
			if err := websocket.JSON.Receive(conn, &frame); err != nil {
				if !errors.Is(err, io.EOF) {
					log.Printf("api: bot socket read: %v", err)
				}
				return
			}
			switch strings.TrimSpace(frame.Type) {
			case "":
				_ = websocket.JSON.Send(conn, botErrorResponse{Error: catalog.Sprintf(locale, "core.ws.no_type")})
				return
			case frameCheckUser:
				exists, err := h.discordUserExists(ctx, frame.DiscordID)
				if err != nil {
					log.Printf("api: bot socket check user: %v", err)
					return
				}
				if err := websocket.JSON.Send(conn, botCheckResponse{Exists: exists}); err != nil {
					return
				}
			default:
				_ = websocket.JSON.Send(conn, botErrorResponse{Error: catalog.Sprintf(locale, "core.ws.unknown_type")})
				return
			}
		}
	})
}

// discordIDFromJSON accepts the id as a JSON string or number.
func discordIDFromJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

func (h *handler) discordUserExists(ctx context.Context, raw json.RawMessage) (bool, error) {
	discordID := discordIDFromJSON(raw)
	if discordID == "" {
		return false, nil
	}
	_, err := h.store.GetDiscordUser(ctx, discordID)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}
