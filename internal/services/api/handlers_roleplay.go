package api

import (
	"context"
	"net/http"

	"github.com/louisbranch/oilandrope/internal/platform/requestctx"
	"github.com/louisbranch/oilandrope/internal/services/api/filter"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/domain"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
	"github.com/louisbranch/oilandrope/internal/services/roleplay/race"
	"github.com/louisbranch/oilandrope/internal/storage"
)

type domainRequest struct {
	Name        string `json:"name" validate:"required,max=25"`
	Description string `json:"description"`
	Type        int    `json:"domain_type" validate:"oneof=0 1"`
	Image       string `json:"image"`
}

func (req domainRequest) input() domain.Input {
	return domain.Input{
		Name:        req.Name,
		Description: req.Description,
		Type:        domain.Type(req.Type),
		Image:       req.Image,
	}
}

type placeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	SiteType    *int   `json:"site_type" validate:"omitempty,min=0,max=17"`
	Image       string `json:"image"`
	ParentID    string `json:"parent_site"`
	// Public creates a community place instead of a private one.
	Public bool `json:"public"`
	// UserID and OwnerID are honored on admin updates only.
	UserID  string `json:"user"`
	OwnerID string `json:"owner"`
}

func placeRequestFrom(p place.Place) placeRequest {
	siteType := int(p.SiteType)
	return placeRequest{
		Name:        p.Name,
		Description: p.Description,
		SiteType:    &siteType,
		Image:       p.Image,
		ParentID:    p.ParentID,
		UserID:      p.UserID,
		OwnerID:     p.OwnerID,
	}
}

func (req placeRequest) siteType() *place.SiteType {
	if req.SiteType == nil {
		return nil
	}
	st := place.SiteType(*req.SiteType)
	return &st
}

type raceRequest struct {
	Name            string `json:"name" validate:"required,max=50"`
	Description     string `json:"description"`
	Strength        int16  `json:"strength"`
	Dexterity       int16  `json:"dexterity"`
	Constitution    int16  `json:"constitution"`
	Intelligence    int16  `json:"intelligence"`
	Wisdom          int16  `json:"wisdom"`
	Charisma        int16  `json:"charisma"`
	AffectedByArmor *bool  `json:"affected_by_armor"`
	Image           string `json:"image"`
}

func (req raceRequest) input() race.Input {
	return race.Input{
		Name:        req.Name,
		Description: req.Description,
		Abilities: race.Abilities{
			Strength:     req.Strength,
			Dexterity:    req.Dexterity,
			Constitution: req.Constitution,
			Intelligence: req.Intelligence,
			Wisdom:       req.Wisdom,
			Charisma:     req.Charisma,
		},
		AffectedByArmor: req.AffectedByArmor,
		Image:           req.Image,
	}
}

func (h *handler) registerRoleplayRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.Domains, accessUser, h.handleListDomains)
	h.handle(mux, http.MethodPost, routepath.Domains, accessAdmin, h.handleCreateDomain)
	h.handle(mux, http.MethodGet, routepath.Domain, accessUser, h.handleGetDomain)
	h.handle(mux, http.MethodPut, routepath.Domain, accessAdmin, h.handleUpdateDomain)
	h.handle(mux, http.MethodDelete, routepath.Domain, accessAdmin, h.handleDeleteDomain)

	h.handle(mux, http.MethodGet, routepath.Places, accessUser, h.handleListPlaces)
	h.handle(mux, http.MethodPost, routepath.Places, accessUser, h.handleCreatePlace)
	h.handle(mux, http.MethodGet, routepath.Place, accessUser, h.handleGetPlace)
	h.handle(mux, http.MethodPut, routepath.Place, accessAdmin, h.handleUpdatePlace)
	h.handle(mux, http.MethodPatch, routepath.Place, accessAdmin, h.handlePatchPlace)
	h.handle(mux, http.MethodDelete, routepath.Place, accessUser, h.handleDeletePlace)

	h.handle(mux, http.MethodGet, routepath.Races, accessUser, h.handleListRaces)
	h.handle(mux, http.MethodPost, routepath.Races, accessUser, h.handleCreateRace)
	h.handle(mux, http.MethodGet, routepath.Race, accessUser, h.handleGetRace)
	h.handle(mux, http.MethodPut, routepath.Race, accessUser, h.handleUpdateRace)
	h.handle(mux, http.MethodDelete, routepath.Race, accessUser, h.handleDeleteRace)
}

func (h *handler) handleListDomains(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	domains, err := h.store.ListDomains(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(domains, toDomainResource))
}

func (h *handler) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	var req domainRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := domain.Create(req.input(), h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutDomain(r.Context(), d); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toDomainResource(d))
}

func (h *handler) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDomain(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toDomainResource(d))
}

func (h *handler) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	var req domainRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	current, err := h.store.GetDomain(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := domain.Update(current, req.input(), h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutDomain(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toDomainResource(updated))
}

func (h *handler) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDomain(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cond, err := filter.Parse(filter.Places, r.URL.Query().Get(filter.Param))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	query := storage.PlaceQuery{Scope: storage.PlaceScopeCommunity, Filter: cond}
	if caller(r).IsAdmin() {
		query.Scope = storage.PlaceScopeAll
	}
	places, err := h.store.ListPlaces(r.Context(), query, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(places, toPlaceResource))
}

// canSeePlace allows community places, their owner and staff.
func canSeePlace(c requestctx.Caller, p place.Place) bool {
	return p.IsCommunity() || c.IsAdmin() || p.OwnerID == c.UserID || p.UserID == c.UserID
}

func (h *handler) handleGetPlace(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetPlace(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !canSeePlace(caller(r), p) {
		h.fail(w, r, notFound())
		return
	}
	h.respond(w, http.StatusOK, toPlaceResource(p))
}

// checkParent ensures the parent exists and is visible to the caller.
func (h *handler) checkParent(ctx context.Context, c requestctx.Caller, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := h.store.GetPlace(ctx, parentID)
	if err != nil {
		if isNotFound(err) {
			return place.ErrInvalidParent
		}
		return err
	}
	if !canSeePlace(c, parent) {
		return place.ErrInvalidParent
	}
	return nil
}

func (h *handler) handleCreatePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	input := place.Input{
		Name:        req.Name,
		Description: req.Description,
		SiteType:    req.siteType(),
		Image:       req.Image,
		ParentID:    req.ParentID,
		OwnerID:     c.UserID,
	}
	if !req.Public {
		input.UserID = c.UserID
	}
	if err := h.checkParent(r.Context(), c, input.ParentID); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := place.Create(input, h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutPlace(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toPlaceResource(p))
}

// handleUpdatePlace replaces every writable field. Omitting user turns a
// private place into a community one.
func (h *handler) handleUpdatePlace(w http.ResponseWriter, r *http.Request) {
	h.updatePlace(w, r, false)
}

// handlePatchPlace applies only the fields present in the payload.
func (h *handler) handlePatchPlace(w http.ResponseWriter, r *http.Request) {
	h.updatePlace(w, r, true)
}

func (h *handler) updatePlace(w http.ResponseWriter, r *http.Request, partial bool) {
	current, err := h.store.GetPlace(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req placeRequest
	if partial {
		req = placeRequestFrom(current)
	}
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.checkParent(r.Context(), caller(r), req.ParentID); err != nil {
		h.fail(w, r, err)
		return
	}
	descendants, err := h.store.ListDescendants(r.Context(), current.ID, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	descendantIDs := make([]string, 0, len(descendants))
	for _, d := range descendants {
		descendantIDs = append(descendantIDs, d.ID)
	}
	if err := place.ValidateParent(current.ID, req.ParentID, descendantIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = current.OwnerID
	}
	updated, err := place.Update(current, place.Input{
		Name:        req.Name,
		Description: req.Description,
		SiteType:    req.siteType(),
		Image:       req.Image,
		ParentID:    req.ParentID,
		UserID:      req.UserID,
		OwnerID:     ownerID,
	}, h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutPlace(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toPlaceResource(updated))
}

func (h *handler) handleDeletePlace(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetPlace(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	if !c.IsAdmin() && p.OwnerID != c.UserID {
		if canSeePlace(c, p) {
			h.fail(w, r, errForbidden)
		} else {
			h.fail(w, r, notFound())
		}
		return
	}
	if err := h.store.DeletePlace(r.Context(), p.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleListRaces(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cond, err := filter.Parse(filter.Races, r.URL.Query().Get(filter.Param))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	userID := c.UserID
	if c.IsAdmin() {
		userID = ""
	}
	races, err := h.store.ListRaces(r.Context(), userID, cond, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(races, func(rc race.Race) raceResource {
		return toRaceResource(rc, nil)
	}))
}

// loadRace returns the race and its users. Races the caller is not attached
// to are hidden from non-staff.
func (h *handler) loadRace(ctx context.Context, c requestctx.Caller, raceID string) (race.Race, []race.RaceUser, error) {
	rc, err := h.store.GetRace(ctx, raceID)
	if err != nil {
		return race.Race{}, nil, err
	}
	users, err := h.store.ListRaceUsers(ctx, rc.ID)
	if err != nil {
		return race.Race{}, nil, err
	}
	if c.IsAdmin() {
		return rc, users, nil
	}
	for _, u := range users {
		if u.UserID == c.UserID {
			return rc, users, nil
		}
	}
	return race.Race{}, nil, notFound()
}

func isRaceOwner(users []race.RaceUser, userID string) bool {
	for _, u := range users {
		if u.UserID == userID && u.IsOwner {
			return true
		}
	}
	return false
}

func (h *handler) handleGetRace(w http.ResponseWriter, r *http.Request) {
	rc, users, err := h.loadRace(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toRaceResource(rc, users))
}

func (h *handler) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req raceRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rc, err := race.Create(req.input(), h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	owners := race.AddOwners(rc, h.clock(), caller(r).UserID)
	if err := h.store.CreateRace(r.Context(), rc, owners); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toRaceResource(rc, owners))
}

func (h *handler) handleUpdateRace(w http.ResponseWriter, r *http.Request) {
	var req raceRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	current, users, err := h.loadRace(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !c.IsAdmin() && !isRaceOwner(users, c.UserID) {
		h.fail(w, r, errForbidden)
		return
	}
	updated, err := race.Update(current, req.input(), h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.UpdateRace(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toRaceResource(updated, users))
}

func (h *handler) handleDeleteRace(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	rc, users, err := h.loadRace(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !c.IsAdmin() && !isRaceOwner(users, c.UserID) {
		h.fail(w, r, errForbidden)
		return
	}
	if err := h.store.DeleteRace(r.Context(), rc.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
