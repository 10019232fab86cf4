package api

import (
	"net/http"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	"github.com/louisbranch/oilandrope/internal/services/menu"
)

type menuRequest struct {
	Name              string   `json:"name" validate:"required,max=100"`
	Description       string   `json:"description"`
	PrependedText     string   `json:"prepended_text"`
	AppendedText      string   `json:"appended_text"`
	ParentID          string   `json:"parent"`
	URL               string   `json:"url_resolver"`
	ExtraURLArgs      string   `json:"extra_url_params"`
	Order             int      `json:"order" validate:"min=0"`
	Permissions       []string `json:"permissions"`
	StaffRequired     bool     `json:"staff_required"`
	SuperuserRequired bool     `json:"superuser_required"`
	Icon              string   `json:"icon"`
	RelatedModels     []string `json:"related_models"`
	Type              int      `json:"menu_type" validate:"oneof=0 1"`
}

func (req menuRequest) menu() menu.Menu {
	return menu.Menu{
		Name:              req.Name,
		Description:       req.Description,
		PrependedText:     req.PrependedText,
		AppendedText:      req.AppendedText,
		ParentID:          req.ParentID,
		URL:               req.URL,
		ExtraURLArgs:      req.ExtraURLArgs,
		Order:             req.Order,
		Permissions:       req.Permissions,
		StaffRequired:     req.StaffRequired,
		SuperuserRequired: req.SuperuserRequired,
		Icon:              req.Icon,
		RelatedModels:     req.RelatedModels,
		Type:              menu.Type(req.Type),
	}
}

func (h *handler) registerMenuRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.MenusVisible, accessAny, h.handleVisibleMenus)
	h.handle(mux, http.MethodGet, routepath.Menus, accessAdmin, h.handleListMenus)
	h.handle(mux, http.MethodPost, routepath.Menus, accessAdmin, h.handleCreateMenu)
	h.handle(mux, http.MethodGet, routepath.Menu, accessAdmin, h.handleGetMenu)
	h.handle(mux, http.MethodPut, routepath.Menu, accessAdmin, h.handleUpdateMenu)
	h.handle(mux, http.MethodDelete, routepath.Menu, accessAdmin, h.handleDeleteMenu)
}

// handleVisibleMenus returns the main menu tree for the caller, or the
// context menus under ?parent= when given.
func (h *handler) handleVisibleMenus(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	viewer := menu.Viewer{
		Authenticated: c.Authenticated(),
		IsStaff:       c.IsStaff,
		IsSuperuser:   c.IsSuperuser,
	}
	if c.Authenticated() {
		perms, err := h.store.ListPermissions(r.Context(), c.UserID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		viewer.Permissions = perms
	}
	all, err := h.store.ListMenus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var visible []menu.Menu
	if parent := strings.TrimSpace(r.URL.Query().Get("parent")); parent != "" {
		visible = menu.ContextMenus(viewer, parent, all)
	} else {
		visible = menu.VisibleMenus(viewer, all)
	}
	h.respond(w, http.StatusOK, toMenuTree(menu.Tree(visible)))
}

// handleListMenus returns every menu in one page.
func (h *handler) handleListMenus(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListMenus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(pagination.Page[menu.Menu]{Results: all}, toMenuResource))
}

func (h *handler) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMenu(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toMenuResource(m))
}

// checkTree validates the menu tree with m inserted or replaced.
func (h *handler) checkTree(r *http.Request, m menu.Menu) error {
	all, err := h.store.ListMenus(r.Context())
	if err != nil {
		return err
	}
	next := make([]menu.Menu, 0, len(all)+1)
	for _, existing := range all {
		if existing.ID != m.ID {
			next = append(next, existing)
		}
	}
	return menu.ValidateTree(append(next, m))
}

func (h *handler) handleCreateMenu(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := menu.Create(req.menu(), h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.checkTree(r, m); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutMenu(r.Context(), m); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toMenuResource(m))
}

func (h *handler) handleUpdateMenu(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	current, err := h.store.GetMenu(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := menu.Normalize(req.menu())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = h.clock()
	if err := h.checkTree(r, updated); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutMenu(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toMenuResource(updated))
}

func (h *handler) handleDeleteMenu(w http.ResponseWriter, r *http.Request) {
	current, err := h.store.GetMenu(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.DeleteMenu(r.Context(), current.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
