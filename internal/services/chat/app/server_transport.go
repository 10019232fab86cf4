package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/shared/i18nhttp"
	"golang.org/x/net/websocket"
)

type wsUserIDContextKey struct{}

type handlerOptions struct {
	store       Store
	authorizer  wsAuthorizer
	requireAuth bool
	metrics     *metrics.Metrics
	now         func() time.Time
}

// relay holds the state shared by every connection of one handler.
type relay struct {
	handlerOptions
	hub *roomHub
}

// NewHandler creates chat routes without token authentication. Every
// connection acts as the user named by the user query parameter; chat
// membership is still enforced.
func NewHandler(store Store) http.Handler {
	return newHandler(handlerOptions{store: store})
}

func newHandler(opts handlerOptions) http.Handler {
	return newRelay(opts).routes()
}

func newRelay(opts handlerOptions) *relay {
	if opts.now == nil {
		opts.now = time.Now
	}
	return &relay{handlerOptions: opts, hub: newRoomHub()}
}

func (rl *relay) routes() http.Handler {
	opts := rl.handlerOptions
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(rl.handleWSConn)

	mux.HandleFunc("/ws/chat/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID := strings.TrimSpace(r.URL.Query().Get("user"))
		if opts.requireAuth {
			if opts.authorizer == nil {
				http.Error(w, "websocket auth is not configured", http.StatusServiceUnavailable)
				return
			}

			accessToken := accessTokenFromRequest(r)
			if accessToken == "" {
				log.Printf("chat: websocket unauthorized: missing %s for host=%q remote=%s", tokenCookieName, r.Host, r.RemoteAddr)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			resolved, err := opts.authorizer.Authenticate(r.Context(), accessToken)
			if err != nil || strings.TrimSpace(resolved) == "" {
				log.Printf("chat: websocket unauthorized for host=%q remote=%s err=%v", r.Host, r.RemoteAddr, err)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			userID = strings.TrimSpace(resolved)
		}
		if userID == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), wsUserIDContextKey{}, userID)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	return mux
}

// accessTokenFromRequest reads the access token from the session cookie or
// a bearer Authorization header.
func accessTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func (rl *relay) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	rl.metrics.ChatConnected()
	defer rl.metrics.ChatDisconnected()

	request := conn.Request()
	ctx := request.Context()
	userID, _ := ctx.Value(wsUserIDContextKey{}).(string)
	locale, _ := i18nhttp.ResolveLocale(request)

	name := userID
	if u, err := rl.store.GetUser(ctx, userID); err == nil {
		name = u.Username
	}
	session := newWSSession(userID, name, newWSPeer(conn))
	defer func() {
		rl.hub.leave(session.currentRoom(), session.peer)
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if !isDecodeError(err) {
				if !errors.Is(err, io.EOF) {
					log.Printf("chat: read frame user=%q: %v", session.userID, err)
				}
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", string(apperrors.CodeInvalidArgument), "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case frameJoin, frameJoinLegacy:
			rl.handleJoinFrame(ctx, session, frame)
		case frameSend, frameSendLegacy:
			rl.handleSendFrame(ctx, session, frame, locale)
		case frameHistoryBefore:
			rl.handleHistoryBeforeFrame(ctx, session, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "unsupported frame type")
		}
	}
}

func (rl *relay) handleJoinFrame(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "invalid join payload")
		return
	}
	chatID := payload.chatID()
	if chatID == "" {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "chat_id is required")
		return
	}
	rl.joinChat(ctx, session, frame.RequestID, chatID)
}

// joinChat authorizes the session for chatID, moves it to the chat room and
// announces the latest sequence. It reports whether the join succeeded.
func (rl *relay) joinChat(ctx context.Context, session *wsSession, requestID, chatID string) bool {
	chat, err := rl.store.GetChat(ctx, chatID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			_ = writeWSError(session.peer, requestID, string(apperrors.CodeNotFound), "chat not found")
			return false
		}
		log.Printf("chat: load chat %q: %v", chatID, err)
		_ = writeWSError(session.peer, requestID, "UNAVAILABLE", "chat lookup unavailable")
		return false
	}

	isMember := rl.store.IsChatMember
	if rl.authorizer != nil {
		isMember = rl.authorizer.IsChatMember
	}
	allowed, err := isMember(ctx, chat.ID, session.userID)
	if err != nil {
		log.Printf("chat: membership check failed user=%q chat=%q err=%v", session.userID, chat.ID, err)
		_ = writeWSError(session.peer, requestID, "UNAVAILABLE", "chat membership verification unavailable")
		return false
	}
	if !allowed {
		_ = writeWSError(session.peer, requestID, string(apperrors.CodeChatNotMember), "chat membership required")
		return false
	}

	latest, err := rl.store.LatestSequence(ctx, chat.ID)
	if err != nil {
		log.Printf("chat: latest sequence chat=%q: %v", chat.ID, err)
		_ = writeWSError(session.peer, requestID, "UNAVAILABLE", "chat history unavailable")
		return false
	}

	room := rl.hub.join(chat.ID, session.peer)
	previous := session.setRoom(room)
	if previous != nil && previous != room {
		rl.hub.leave(previous, session.peer)
	}

	_ = session.peer.writeFrame(wsFrame{
		Type:      frameJoined,
		RequestID: requestID,
		Payload: mustJSON(joinedPayload{
			ChatID:           chat.ID,
			Name:             chat.Name,
			Group:            chat.Group(),
			LatestSequenceID: latest,
			ServerTime:       rl.now().UTC().Format(time.RFC3339),
		}),
	})
	return true
}

func (rl *relay) handleSendFrame(ctx context.Context, session *wsSession, frame wsFrame, locale string) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "invalid send payload")
		return
	}

	room := session.currentRoom()
	if target := strings.TrimSpace(payload.Chat); target != "" && (room == nil || room.chatID != target) {
		if !rl.joinChat(ctx, session, frame.RequestID, target) {
			return
		}
		room = session.currentRoom()
	}
	if room == nil {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodePermissionDenied), "must join a chat before sending")
		return
	}

	msg, err := chatdomain.NewMessage(room.chatID, session.userID, payload.body(), payload.ClientMessageID, rl.now, nil)
	if err != nil {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.GetCode(err)), apperrors.UserMessage(err, locale))
		return
	}
	stored, duplicate, err := rl.store.AppendMessage(ctx, msg)
	if err != nil {
		log.Printf("chat: append message user=%q chat=%q: %v", session.userID, room.chatID, err)
		_ = writeWSError(session.peer, frame.RequestID, "UNAVAILABLE", "message could not be stored")
		return
	}

	_ = session.peer.writeFrame(wsFrame{
		Type:      frameAck,
		RequestID: frame.RequestID,
		Payload: mustJSON(ackEnvelope{
			Result: ackResult{
				Status:     "ok",
				MessageID:  stored.ID,
				SequenceID: stored.Sequence,
				Duplicate:  duplicate,
			},
		}),
	})
	if duplicate {
		return
	}

	room.broadcast(wsFrame{
		Type:    frameMessage,
		Payload: mustJSON(messageEnvelope{Message: toChatMessage(stored, session.name)}),
	})
}

func (rl *relay) handleHistoryBeforeFrame(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload historyBeforePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "invalid history payload")
		return
	}
	if payload.BeforeSequenceID < 1 {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodeInvalidArgument), "before_sequence_id must be >= 1")
		return
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultHistoryLimit
	}
	if payload.Limit > maxHistoryLimit {
		payload.Limit = maxHistoryLimit
	}

	room := session.currentRoom()
	if room == nil {
		_ = writeWSError(session.peer, frame.RequestID, string(apperrors.CodePermissionDenied), "must join a chat before requesting history")
		return
	}

	history, err := rl.store.ListMessagesBefore(ctx, room.chatID, payload.BeforeSequenceID, payload.Limit)
	if err != nil {
		log.Printf("chat: history chat=%q: %v", room.chatID, err)
		_ = writeWSError(session.peer, frame.RequestID, "UNAVAILABLE", "chat history unavailable")
		return
	}
	names := map[string]string{session.userID: session.name}
	for _, msg := range history {
		name, ok := names[msg.AuthorID]
		if !ok {
			if u, err := rl.store.GetUser(ctx, msg.AuthorID); err == nil {
				name = u.Username
			}
			names[msg.AuthorID] = name
		}
		_ = session.peer.writeFrame(wsFrame{
			Type:    frameMessage,
			Payload: mustJSON(messageEnvelope{Message: toChatMessage(msg, name)}),
		})
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      frameAck,
		RequestID: frame.RequestID,
		Payload: mustJSON(ackEnvelope{
			Result: ackResult{
				Status: "ok",
				Count:  len(history),
			},
		}),
	})
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      code,
				Message:   message,
				Retryable: code == "UNAVAILABLE",
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("chat: marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
