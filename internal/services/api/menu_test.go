package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
)

func names(menus []menuResource) []string {
	out := make([]string, 0, len(menus))
	for _, m := range menus {
		out = append(out, m.Name)
	}
	return out
}

func TestMenuAdmin(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, f.seedUser(t, "alice", false))
	admin := f.token(t, f.seedUser(t, "root", true))

	body := menuRequest{Name: "Home", URL: "/", Order: 1}
	expectStatus(t, f.do(t, http.MethodPost, "/api/menu/", alice, body), http.StatusForbidden)
	expectStatus(t, f.do(t, http.MethodGet, "/api/menu/", alice, nil), http.StatusForbidden)

	rr := f.do(t, http.MethodPost, "/api/menu/", admin, body)
	expectStatus(t, rr, http.StatusCreated)
	home := decodeBody[menuResource](t, rr)
	path := "/api/menu/" + home.ID + "/"

	rr = f.do(t, http.MethodPost, "/api/menu/", admin, menuRequest{Name: "Orphan", ParentID: "ghost"})
	expectStatus(t, rr, http.StatusBadRequest)
	if reason := errorReason(t, rr); reason != "MENU_INVALID_TREE" {
		t.Fatalf("reason = %q", reason)
	}

	rr = f.do(t, http.MethodPost, "/api/menu/", admin, menuRequest{Name: "Campaigns", ParentID: home.ID, URL: "/campaigns/"})
	expectStatus(t, rr, http.StatusCreated)
	campaigns := decodeBody[menuResource](t, rr)

	// Home cannot become a child of its own child.
	rr = f.do(t, http.MethodPut, path, admin, menuRequest{Name: "Home", ParentID: campaigns.ID})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = f.do(t, http.MethodPut, path, admin, menuRequest{Name: "Start", URL: "/", ExtraURLArgs: "?tab=news", PrependedText: "*"})
	expectStatus(t, rr, http.StatusOK)
	updated := decodeBody[menuResource](t, rr)
	if updated.ID != home.ID || updated.Link != "/?tab=news" || updated.DisplayName != "*  Start" {
		t.Fatalf("updated = %+v", updated)
	}

	rr = f.do(t, http.MethodGet, "/api/menu/", admin, nil)
	expectStatus(t, rr, http.StatusOK)
	if page := decodeBody[pagination.Page[menuResource]](t, rr); len(page.Results) != 2 {
		t.Fatalf("menus = %v", names(page.Results))
	}

	expectStatus(t, f.do(t, http.MethodDelete, "/api/menu/"+campaigns.ID+"/", admin, nil), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodGet, "/api/menu/"+campaigns.ID+"/", admin, nil), http.StatusNotFound)
}

func TestVisibleMenus(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice", false)
	admin := f.token(t, f.seedUser(t, "root", true))
	if err := f.store.GrantPermission(context.Background(), alice.ID, "roleplay.view_campaign"); err != nil {
		t.Fatalf("grant permission: %v", err)
	}

	create := func(req menuRequest) menuResource {
		t.Helper()
		rr := f.do(t, http.MethodPost, "/api/menu/", admin, req)
		expectStatus(t, rr, http.StatusCreated)
		return decodeBody[menuResource](t, rr)
	}
	home := create(menuRequest{Name: "Home", URL: "/", Order: 1})
	create(menuRequest{Name: "Admin", URL: "/admin/", Order: 2, StaffRequired: true})
	create(menuRequest{Name: "Campaigns", ParentID: home.ID, URL: "/campaigns/", Permissions: []string{"roleplay.view_campaign"}})
	create(menuRequest{Name: "Edit", ParentID: home.ID, Type: 1})

	rr := f.do(t, http.MethodGet, "/api/menu/visible/", "", nil)
	expectStatus(t, rr, http.StatusOK)
	anonymous := decodeBody[[]menuResource](t, rr)
	if len(anonymous) != 1 || anonymous[0].Name != "Home" || len(anonymous[0].Children) != 0 {
		t.Fatalf("anonymous tree = %+v", anonymous)
	}

	rr = f.do(t, http.MethodGet, "/api/menu/visible/", f.token(t, alice), nil)
	tree := decodeBody[[]menuResource](t, rr)
	if len(tree) != 1 || len(tree[0].Children) != 1 || tree[0].Children[0].Name != "Campaigns" {
		t.Fatalf("alice tree = %+v", tree)
	}

	rr = f.do(t, http.MethodGet, "/api/menu/visible/", admin, nil)
	if got := names(decodeBody[[]menuResource](t, rr)); len(got) != 2 || got[0] != "Home" || got[1] != "Admin" {
		t.Fatalf("staff roots = %v", got)
	}

	rr = f.do(t, http.MethodGet, "/api/menu/visible/?parent="+home.ID, "", nil)
	if got := names(decodeBody[[]menuResource](t, rr)); len(got) != 1 || got[0] != "Edit" {
		t.Fatalf("context menus = %v", got)
	}
}
