package api

import (
	"context"
	"net/http"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/platform/requestctx"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
)

// nestedMessageLimit bounds the messages embedded in a nested chat.
const nestedMessageLimit = 50

type messageRequest struct {
	Body            string `json:"message" validate:"required,max=150"`
	ClientMessageID string `json:"client_message_id" validate:"max=128"`
}

type messagePatchRequest struct {
	Body     string `json:"message" validate:"required,max=150"`
	AuthorID string `json:"author_id"`
}

func (h *handler) registerChatRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.ChatList, accessUser, h.handleListChats)
	h.handle(mux, http.MethodGet, routepath.Chat, accessUser, h.handleGetChat)
	h.handle(mux, http.MethodGet, routepath.ChatMessages, accessUser, h.handleListMessages)
	h.handle(mux, http.MethodPost, routepath.ChatMessages, accessUser, h.handleCreateMessage)
	h.handle(mux, http.MethodPatch, routepath.ChatMessage, accessUser, h.handlePatchMessage)
}

// loadChat returns the chat when the caller is a member. Admins may read
// any chat but only members write to it.
func (h *handler) loadChat(ctx context.Context, c requestctx.Caller, chatID string, write bool) (chatdomain.Chat, error) {
	chat, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		return chatdomain.Chat{}, err
	}
	member, err := h.store.IsChatMember(ctx, chat.ID, c.UserID)
	if err != nil {
		return chatdomain.Chat{}, err
	}
	if !member && (write || !c.IsAdmin()) {
		return chatdomain.Chat{}, chatdomain.ErrNotMember
	}
	return chat, nil
}

func (h *handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	chats, err := h.store.ListUserChats(r.Context(), caller(r).UserID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(chats, toChatResource))
}

func (h *handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.loadChat(r.Context(), caller(r), r.PathValue("id"), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res := toChatResource(chat)
	if nested(r) {
		messages, err := h.store.ListMessagesBefore(r.Context(), chat.ID, 0, nestedMessageLimit)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		res.Messages = make([]messageResource, 0, len(messages))
		for _, m := range messages {
			res.Messages = append(res.Messages, toMessageResource(m))
		}
	}
	h.respond(w, http.StatusOK, res)
}

func (h *handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	chat, err := h.loadChat(r.Context(), caller(r), r.PathValue("id"), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.store.ListMessages(r.Context(), chat.ID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := mapPage(messages, toMessageResource)
	if nested(r) {
		if err := h.embedAuthors(r.Context(), out); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.respond(w, http.StatusOK, out)
}

// embedAuthors fills the author of every message, loading each user once.
func (h *handler) embedAuthors(ctx context.Context, page pagination.Page[messageResource]) error {
	authors := map[string]*authorResource{}
	for i := range page.Results {
		authorID := page.Results[i].AuthorID
		author, ok := authors[authorID]
		if !ok {
			u, err := h.store.GetUser(ctx, authorID)
			if err != nil && !isNotFound(err) {
				return err
			}
			if err == nil {
				author = &authorResource{ID: u.ID, Username: u.Username, Name: u.FullName()}
			}
			authors[authorID] = author
		}
		page.Results[i].Author = author
	}
	return nil
}

func (h *handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	chat, err := h.loadChat(r.Context(), c, r.PathValue("id"), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := chatdomain.NewMessage(chat.ID, c.UserID, req.Body, req.ClientMessageID, h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stored, duplicate, err := h.store.AppendMessage(r.Context(), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	h.respond(w, status, toMessageResource(stored))
}

func (h *handler) handlePatchMessage(w http.ResponseWriter, r *http.Request) {
	var req messagePatchRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	current, err := h.store.GetMessage(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := chatdomain.EditMessage(current, c.UserID, req.AuthorID, req.Body, h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.UpdateMessage(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toMessageResource(updated))
}
