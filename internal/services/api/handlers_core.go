package api

import (
	"fmt"
	"net/http"

	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/dice"
)

const (
	poweredBy    = "Oil & Rope API"
	usingVersion = "v1"
)

type rootResponse struct {
	Version      string `json:"version"`
	PoweredBy    string `json:"powered_by"`
	UsingVersion string `json:"using_version"`
}

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Language  string `json:"language" validate:"omitempty,oneof=en es"`
}

type activateRequest struct {
	Token string `json:"token" validate:"required"`
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type rollRequest struct {
	Roll string `json:"roll" validate:"required,max=100"`
}

type rollResponse struct {
	Result int              `json:"result"`
	Rolls  map[string][]int `json:"rolls"`
}

func (h *handler) registerCoreRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.Root, accessAny, h.handleRoot)
	h.handle(mux, http.MethodPost, routepath.AuthToken, accessAny, h.handleToken)
	h.handle(mux, http.MethodPost, routepath.AuthRegister, accessAny, h.handleRegister)
	h.handle(mux, http.MethodPost, routepath.AuthActivate, accessAny, h.handleActivate)
	h.handle(mux, http.MethodPost, routepath.AuthResend, accessAny, h.handleResendActivation)
	h.handle(mux, http.MethodPost, routepath.Roll, accessUser, h.handleRoll)
	mux.Handle(routepath.Pattern(http.MethodGet, routepath.BotWS), h.botCheckHandler())
}

func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, rootResponse{
		Version:      h.version,
		PoweredBy:    poweredBy,
		UsingVersion: usingVersion,
	})
}

func (h *handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	_, raw, err := h.registration.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, tokenResponse{Token: raw})
}

func (h *handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.registration.Register(r.Context(), user.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Language:  user.Language(req.Language),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toUserResource(u))
}

func (h *handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.registration.Activate(r.Context(), req.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toUserResource(u))
}

func (h *handler) handleResendActivation(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.registration.ResendActivation(r.Context(), req.Email)
	// Unknown addresses are not disclosed.
	if err != nil && !isNotFound(err) {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) handleRoll(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	seed, err := h.seed()
	if err != nil {
		h.fail(w, r, fmt.Errorf("roll seed: %w", err))
		return
	}
	result, err := dice.NewRoller(seed).Roll(req.Roll)
	h.metrics.DiceRolled("api", err == nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, rollResponse{Result: result.Total, Rolls: result.Rolls()})
}
