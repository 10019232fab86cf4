package api

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
)

type profilePatchRequest struct {
	Bio      *string `json:"bio"`
	Birthday *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Language *string `json:"language" validate:"omitempty,oneof=en es"`
	Alias    *string `json:"alias" validate:"omitempty,max=30"`
	Web      *string `json:"web" validate:"omitempty,url"`
	Image    *string `json:"image"`
}

func (h *handler) registerRegistrationRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.Users, accessAdmin, h.handleListUsers)
	h.handle(mux, http.MethodGet, routepath.User, accessUser, h.handleGetUser)
	h.handle(mux, http.MethodGet, routepath.Profiles, accessAdmin, h.handleListProfiles)
	h.handle(mux, http.MethodGet, routepath.Profile, accessUser, h.handleGetProfile)
	h.handle(mux, http.MethodPatch, routepath.Profile, accessUser, h.handlePatchProfile)
	h.handle(mux, http.MethodGet, routepath.BotUser, accessUser, h.handleBotUser)
}

// selfOrAdmin resolves the {id} path value and checks the caller may read it.
func selfOrAdmin(r *http.Request) (string, error) {
	userID := resolveID(r)
	c := caller(r)
	if userID != c.UserID && !c.IsAdmin() {
		return "", errForbidden
	}
	return userID, nil
}

func (h *handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.store.ListUsers(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(users, toUserResource))
}

func (h *handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := selfOrAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toUserResource(u))
}

func (h *handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	profiles, err := h.store.ListProfiles(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.clock()
	h.respond(w, http.StatusOK, mapPage(profiles, func(p user.Profile) profileResource {
		return toProfileResource(p, now)
	}))
}

func (h *handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := selfOrAdmin(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.store.GetProfile(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toProfileResource(profile, h.clock()))
}

func (h *handler) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	userID := resolveID(r)
	if userID != caller(r).UserID {
		h.fail(w, r, errForbidden)
		return
	}
	var req profilePatchRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	update := user.ProfileUpdate{
		Bio:   req.Bio,
		Alias: req.Alias,
		Web:   req.Web,
		Image: req.Image,
	}
	if req.Language != nil {
		language := user.Language(strings.TrimSpace(*req.Language))
		update.Language = &language
	}
	if req.Birthday != nil {
		birthday, err := time.Parse(birthdayLayout, *req.Birthday)
		if err != nil {
			h.fail(w, r, apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument, "invalid birthday",
				map[string]string{"Field": "birthday"}, err))
			return
		}
		update.Birthday = &birthday
	}
	profile, err := h.registration.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toProfileResource(profile, h.clock()))
}

// handleBotUser returns the account the bot acts as.
func (h *handler) handleBotUser(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(h.botEmail))
	if email == "" {
		h.fail(w, r, notFound())
		return
	}
	u, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toUserResource(u))
}
