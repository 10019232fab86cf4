package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	"github.com/louisbranch/oilandrope/internal/platform/timeouts"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/storage"
)

const (
	tokenCookieName = "oar_token"

	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Frame types. The setup_channel_layer and send_message names are kept for
// older clients.
const (
	frameJoin          = "chat.join"
	frameJoinLegacy    = "setup_channel_layer"
	frameSend          = "chat.send"
	frameSendLegacy    = "send_message"
	frameHistoryBefore = "chat.history.before"
	frameJoined        = "chat.joined"
	frameMessage       = "chat.message"
	frameAck           = "chat.ack"
	frameError         = "chat.error"
)

// Store is the persistence the relay needs.
type Store interface {
	GetChat(ctx context.Context, chatID string) (chatdomain.Chat, error)
	IsChatMember(ctx context.Context, chatID, userID string) (bool, error)
	AppendMessage(ctx context.Context, m chatdomain.Message) (chatdomain.Message, bool, error)
	ListMessagesBefore(ctx context.Context, chatID string, before int64, limit int) ([]chatdomain.Message, error)
	LatestSequence(ctx context.Context, chatID string) (int64, error)
	GetUser(ctx context.Context, userID string) (user.User, error)
}

var _ Store = storage.Store(nil)

// Config defines the inputs for the chat transport boundary.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	ChatID string `json:"chat_id"`
	Chat   string `json:"chat,omitempty"`
}

func (p joinPayload) chatID() string {
	if id := strings.TrimSpace(p.ChatID); id != "" {
		return id
	}
	return strings.TrimSpace(p.Chat)
}

type joinedPayload struct {
	ChatID           string `json:"chat_id"`
	Name             string `json:"name"`
	Group            string `json:"group"`
	LatestSequenceID int64  `json:"latest_sequence_id"`
	ServerTime       string `json:"server_time"`
}

type sendPayload struct {
	ClientMessageID string `json:"client_message_id"`
	Body            string `json:"body"`
	Chat            string `json:"chat,omitempty"`
	Message         string `json:"message,omitempty"`
}

func (p sendPayload) body() string {
	if p.Body != "" {
		return p.Body
	}
	return p.Message
}

type historyBeforePayload struct {
	BeforeSequenceID int64 `json:"before_sequence_id"`
	Limit            int   `json:"limit"`
}

type messageEnvelope struct {
	Message chatMessage `json:"message"`
}

type chatMessage struct {
	MessageID       string        `json:"message_id"`
	ChatID          string        `json:"chat_id"`
	SequenceID      int64         `json:"sequence_id"`
	SentAt          string        `json:"sent_at"`
	Author          messageAuthor `json:"author"`
	Body            string        `json:"body"`
	ClientMessageID string        `json:"client_message_id,omitempty"`
}

type messageAuthor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status     string `json:"status"`
	MessageID  string `json:"message_id,omitempty"`
	SequenceID int64  `json:"sequence_id,omitempty"`
	Count      int    `json:"count,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// Deps are the collaborators of the relay.
type Deps struct {
	Store   Store
	Tokens  *token.Manager
	Metrics *metrics.Metrics
	// Now overrides the clock used for message timestamps.
	Now func() time.Time
}

// NewServer builds a configured chat server.
func NewServer(config Config, deps Deps) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if deps.Store == nil {
		return nil, errors.New("chat store is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	var authorizer wsAuthorizer
	if deps.Tokens != nil {
		authorizer = newStoreAuthorizer(deps.Tokens, deps.Store)
	}
	mux := http.NewServeMux()
	mux.Handle("/", newHandler(handlerOptions{
		store:       deps.Store,
		authorizer:  authorizer,
		requireAuth: true,
		metrics:     deps.Metrics,
		now:         deps.Now,
	}))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           mux,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config, deps Deps) error {
	server, err := NewServer(config, deps)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat: listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
