package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/requestctx"
	"github.com/louisbranch/oilandrope/internal/services/api/filter"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	chatdomain "github.com/louisbranch/oilandrope/internal/services/chat/domain"
	"github.com/louisbranch/oilandrope/internal/services/registration/mail"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/campaign"
	"github.com/louisbranch/oilandrope/internal/storage"
)

type campaignRequest struct {
	Name             string     `json:"name" validate:"required,max=50"`
	Description      string     `json:"description"`
	GMInfo           string     `json:"gm_info"`
	Resume           string     `json:"summary" validate:"max=254"`
	System           int        `json:"system" validate:"oneof=0 1"`
	CoverImage       string     `json:"cover_image"`
	IsPublic         bool       `json:"is_public"`
	PlaceID          string     `json:"place"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	DiscordChannelID string     `json:"discord_channel"`
}

func (req campaignRequest) input() campaign.Input {
	return campaign.Input{
		Name:             req.Name,
		Description:      req.Description,
		GMInfo:           req.GMInfo,
		Resume:           req.Resume,
		System:           campaign.System(req.System),
		CoverImage:       req.CoverImage,
		IsPublic:         req.IsPublic,
		PlaceID:          req.PlaceID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		DiscordChannelID: req.DiscordChannelID,
	}
}

type inviteRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,max=50"`
}

type inviteResponse struct {
	Sent    []string `json:"sent"`
	Invalid []string `json:"invalid"`
}

type joinRequest struct {
	Token string `json:"token" validate:"required"`
}

type sessionRequest struct {
	CampaignID  string     `json:"campaign" validate:"required"`
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description"`
	Plot        string     `json:"plot" validate:"max=254"`
	GMInfo      string     `json:"gm_info"`
	NextGame    *time.Time `json:"next_game"`
	System      int        `json:"system" validate:"oneof=0 1"`
	Image       string     `json:"image"`
}

func (req sessionRequest) input() campaign.SessionInput {
	return campaign.SessionInput{
		Name:        req.Name,
		Description: req.Description,
		Plot:        req.Plot,
		GMInfo:      req.GMInfo,
		NextGame:    req.NextGame,
		System:      campaign.System(req.System),
		Image:       req.Image,
	}
}

func (h *handler) registerCampaignRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.Campaigns, accessUser, h.handleListCampaigns)
	h.handle(mux, http.MethodPost, routepath.Campaigns, accessUser, h.handleCreateCampaign)
	h.handle(mux, http.MethodPost, routepath.CampaignJoin, accessUser, h.handleJoinCampaign)
	h.handle(mux, http.MethodGet, routepath.Campaign, accessUser, h.handleGetCampaign)
	h.handle(mux, http.MethodPut, routepath.Campaign, accessUser, h.handleUpdateCampaign)
	h.handle(mux, http.MethodDelete, routepath.Campaign, accessUser, h.handleDeleteCampaign)
	h.handle(mux, http.MethodPost, routepath.CampaignInvite, accessUser, h.handleInvite)

	h.handle(mux, http.MethodGet, routepath.Sessions, accessUser, h.handleListSessions)
	h.handle(mux, http.MethodPost, routepath.Sessions, accessUser, h.handleCreateSession)
	h.handle(mux, http.MethodGet, routepath.Session, accessUser, h.handleGetSession)
	h.handle(mux, http.MethodPut, routepath.Session, accessUser, h.handleUpdateSession)
	h.handle(mux, http.MethodDelete, routepath.Session, accessUser, h.handleDeleteSession)
}

// membership describes the caller's role in a campaign.
type membership struct {
	player     bool
	gameMaster bool
}

func (h *handler) membership(ctx context.Context, c campaign.Campaign, userID string) (membership, error) {
	if userID == "" {
		return membership{}, nil
	}
	p, err := h.store.GetPlayer(ctx, c.ID, userID)
	if err != nil {
		if isNotFound(err) {
			return membership{gameMaster: c.OwnerID == userID}, nil
		}
		return membership{}, err
	}
	return membership{player: true, gameMaster: p.IsGameMaster || c.OwnerID == userID}, nil
}

// loadCampaign returns the campaign when the caller may see it.
func (h *handler) loadCampaign(ctx context.Context, caller requestctx.Caller, campaignID string) (campaign.Campaign, membership, error) {
	c, err := h.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, membership{}, err
	}
	m, err := h.membership(ctx, c, caller.UserID)
	if err != nil {
		return campaign.Campaign{}, membership{}, err
	}
	if !c.IsPublic && !m.player && !m.gameMaster && !caller.IsAdmin() {
		return campaign.Campaign{}, membership{}, notFound()
	}
	return c, m, nil
}

// checkWorld ensures the campaign place is a world the caller can use.
func (h *handler) checkWorld(ctx context.Context, caller requestctx.Caller, placeID string) error {
	if placeID == "" {
		return nil
	}
	p, err := h.store.GetPlace(ctx, placeID)
	if err != nil {
		if isNotFound(err) {
			return campaign.ErrPlaceNotWorld
		}
		return err
	}
	if !canSeePlace(caller, p) {
		return campaign.ErrPlaceNotWorld
	}
	return campaign.ValidateWorld(p)
}

func (h *handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cond, err := filter.Parse(filter.Campaigns, r.URL.Query().Get(filter.Param))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	campaigns, err := h.store.ListCampaigns(r.Context(), storage.CampaignQuery{
		VisibleTo: caller(r).UserID,
		Filter:    cond,
	}, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(campaigns, func(c campaign.Campaign) campaignResource {
		return toCampaignResource(c, false)
	}))
}

func (h *handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	camp, m, err := h.loadCampaign(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCampaignResource(camp, m.gameMaster || c.IsAdmin()))
}

func (h *handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	if err := h.checkWorld(r.Context(), c, req.PlaceID); err != nil {
		h.fail(w, r, err)
		return
	}
	camp, err := campaign.Create(req.input(), c.UserID, h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	chat, err := chatdomain.NewChat(camp.ChatName(), "", h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	camp.ChatID = chat.ID
	players := campaign.AddGameMasters(camp, h.clock(), c.UserID)
	if err := h.store.CreateCampaign(r.Context(), camp, chat, players); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toCampaignResource(camp, true))
}

func (h *handler) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	current, _, err := h.loadCampaign(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if current.OwnerID != c.UserID && !c.IsAdmin() {
		h.fail(w, r, errForbidden)
		return
	}
	if req.PlaceID != current.PlaceID {
		if err := h.checkWorld(r.Context(), c, req.PlaceID); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	updated, err := campaign.Update(current, req.input(), h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.UpdateCampaign(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCampaignResource(updated, true))
}

func (h *handler) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	current, _, err := h.loadCampaign(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if current.OwnerID != c.UserID && !c.IsAdmin() {
		h.fail(w, r, errForbidden)
		return
	}
	if err := h.store.DeleteCampaign(r.Context(), current.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvite mails an invitation token to every address. Invalid
// addresses are reported back and skipped.
func (h *handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	camp, m, err := h.loadCampaign(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !m.gameMaster && !c.IsAdmin() {
		h.fail(w, r, errForbidden)
		return
	}
	emails, invalid, err := campaign.NormalizeEmails(req.Emails)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inviter, err := h.store.GetUser(r.Context(), c.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	locale := requestctx.LocaleFromContext(r.Context())
	for _, email := range emails {
		raw, err := h.tokens.IssueInvitation(camp.ID, email)
		if err != nil {
			h.fail(w, r, fmt.Errorf("issue invitation: %w", err))
			return
		}
		invitation := campaign.Invitation{
			CampaignID: camp.ID,
			Email:      email,
			Token:      raw,
			Link:       campaign.InvitationLink(h.siteURL, raw),
		}
		if err := h.sendInvitation(r.Context(), locale, inviter.FullName(), camp, invitation); err != nil {
			log.Printf("api: send invitation for campaign %s: %v", camp.ID, err)
		}
	}
	if invalid == nil {
		invalid = []string{}
	}
	h.respond(w, http.StatusOK, inviteResponse{Sent: emails, Invalid: invalid})
}

func (h *handler) sendInvitation(ctx context.Context, locale, inviter string, camp campaign.Campaign, invitation campaign.Invitation) error {
	if h.sender == nil {
		return nil
	}
	msg, err := mail.Invitation(mail.LocalizerFor(locale), locale, inviter, camp.Name, invitation.Link)
	if err != nil {
		return err
	}
	msg.From = h.fromEmail
	msg.To = []string{invitation.Email}
	return h.sender.Send(ctx, msg)
}

// handleJoinCampaign accepts an invitation token for the caller.
func (h *handler) handleJoinCampaign(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	claims, err := h.tokens.Verify(req.Token, token.KindInvitation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	u, err := h.store.GetUser(r.Context(), c.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := campaign.CheckInvitee(claims.Email, u.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	camp, err := h.store.GetCampaign(r.Context(), claims.CampaignID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.store.GetPlayer(r.Context(), camp.ID, u.ID); err == nil {
		h.fail(w, r, campaign.ErrAlreadyPlayer)
		return
	} else if !isNotFound(err) {
		h.fail(w, r, err)
		return
	}
	player := campaign.Player{UserID: u.ID, CampaignID: camp.ID, CreatedAt: h.clock()}
	if err := h.store.PutPlayers(r.Context(), []campaign.Player{player}); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toCampaignResource(camp, false))
}

func (h *handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cond, err := filter.Parse(filter.Sessions, r.URL.Query().Get(filter.Param))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	userID := c.UserID
	if c.IsAdmin() {
		userID = ""
	}
	sessions, err := h.store.ListSessions(r.Context(), userID, cond, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.clock()
	h.respond(w, http.StatusOK, mapPage(sessions, func(s campaign.Session) sessionResource {
		return toSessionResource(s, false, now)
	}))
}

// loadSession returns the session and the caller's role in its campaign.
// Sessions are visible to players and admins only.
func (h *handler) loadSession(ctx context.Context, caller requestctx.Caller, sessionID string) (campaign.Session, membership, error) {
	s, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		return campaign.Session{}, membership{}, err
	}
	camp, err := h.store.GetCampaign(ctx, s.CampaignID)
	if err != nil {
		return campaign.Session{}, membership{}, err
	}
	m, err := h.membership(ctx, camp, caller.UserID)
	if err != nil {
		return campaign.Session{}, membership{}, err
	}
	if !m.player && !m.gameMaster && !caller.IsAdmin() {
		return campaign.Session{}, membership{}, notFound()
	}
	return s, m, nil
}

func (h *handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	s, m, err := h.loadSession(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toSessionResource(s, m.gameMaster || c.IsAdmin(), h.clock()))
}

func (h *handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	camp, err := h.store.GetCampaign(r.Context(), req.CampaignID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.membership(r.Context(), camp, c.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !m.player && !m.gameMaster && !c.IsAdmin() {
		h.fail(w, r, errForbidden)
		return
	}
	s, err := campaign.CreateSession(camp.ID, req.input(), h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !m.player || !m.gameMaster {
		gm := campaign.Player{UserID: c.UserID, CampaignID: camp.ID, IsGameMaster: true, CreatedAt: h.clock()}
		if err := h.store.PutPlayers(r.Context(), []campaign.Player{gm}); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.store.PutSession(r.Context(), s); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toSessionResource(s, true, h.clock()))
}

func (h *handler) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	current, m, err := h.loadSession(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !m.gameMaster && !c.IsAdmin() {
		h.fail(w, r, errForbidden)
		return
	}
	updated, err := campaign.UpdateSession(current, req.input(), h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutSession(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toSessionResource(updated, true, h.clock()))
}

func (h *handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	s, m, err := h.loadSession(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !m.gameMaster && !c.IsAdmin() {
		h.fail(w, r, errForbidden)
		return
	}
	if err := h.store.DeleteSession(r.Context(), s.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
