package api

import (
	"net/http"
	"testing"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
)

func TestUserAccess(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice", false)
	bob := f.seedUser(t, "bob", false)
	admin := f.seedUser(t, "root", true)

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{name: "self by alias", path: "/api/registration/user/@me/", bearer: f.token(t, alice), want: http.StatusOK},
		{name: "self by id", path: "/api/registration/user/alice/", bearer: f.token(t, alice), want: http.StatusOK},
		{name: "other user", path: "/api/registration/user/alice/", bearer: f.token(t, bob), want: http.StatusForbidden},
		{name: "admin reads other", path: "/api/registration/user/alice/", bearer: f.token(t, admin), want: http.StatusOK},
		{name: "admin missing user", path: "/api/registration/user/ghost/", bearer: f.token(t, admin), want: http.StatusNotFound},
		{name: "profile other user", path: "/api/registration/profile/alice/", bearer: f.token(t, bob), want: http.StatusForbidden},
		{name: "own profile", path: "/api/registration/profile/@me/", bearer: f.token(t, bob), want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, f.do(t, http.MethodGet, tc.path, tc.bearer, nil), tc.want)
		})
	}

	rr := f.do(t, http.MethodGet, "/api/registration/user/@me/", f.token(t, alice), nil)
	if got := decodeBody[userResource](t, rr); got.ID != alice.ID {
		t.Fatalf("@me resolved to %q, want %q", got.ID, alice.ID)
	}
}

func TestListUsersPaginates(t *testing.T) {
	f := newFixture(t)
	admin := f.seedUser(t, "root", true)
	f.seedUser(t, "alice", false)
	f.seedUser(t, "bob", false)
	bearer := f.token(t, admin)

	rr := f.do(t, http.MethodGet, "/api/registration/user/?page_size=2", bearer, nil)
	expectStatus(t, rr, http.StatusOK)
	first := decodeBody[pagination.Page[userResource]](t, rr)
	if len(first.Results) != 2 || first.NextPageToken == "" {
		t.Fatalf("first page = %+v", first)
	}

	rr = f.do(t, http.MethodGet, "/api/registration/user/?page_size=2&page_token="+first.NextPageToken, bearer, nil)
	expectStatus(t, rr, http.StatusOK)
	second := decodeBody[pagination.Page[userResource]](t, rr)
	if len(second.Results) != 1 || second.NextPageToken != "" {
		t.Fatalf("second page = %+v", second)
	}
	if second.Results[0].ID == first.Results[0].ID || second.Results[0].ID == first.Results[1].ID {
		t.Fatal("pages overlap")
	}
}

func TestPatchProfile(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice", false)
	bob := f.seedUser(t, "bob", false)

	rr := f.do(t, http.MethodPatch, "/api/registration/profile/@me/", f.token(t, alice), map[string]string{
		"bio":      "Plays bards.",
		"birthday": "1990-05-01",
		"language": "es",
	})
	expectStatus(t, rr, http.StatusOK)
	got := decodeBody[profileResource](t, rr)
	if got.Bio != "Plays bards." || got.Language != "es" || got.Birthday != "1990-05-01" {
		t.Fatalf("profile = %+v", got)
	}
	if got.Age == nil || *got.Age != 34 {
		t.Fatalf("age = %v, want 34", got.Age)
	}

	rr = f.do(t, http.MethodPatch, "/api/registration/profile/alice/", f.token(t, bob), map[string]string{"bio": "hacked"})
	expectStatus(t, rr, http.StatusForbidden)

	rr = f.do(t, http.MethodPatch, "/api/registration/profile/@me/", f.token(t, alice), map[string]string{"birthday": "01/05/1990"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = f.do(t, http.MethodPatch, "/api/registration/profile/@me/", f.token(t, alice), map[string]string{"web": "not a url"})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestBotUser(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice", false)

	expectStatus(t, f.do(t, http.MethodGet, "/api/registration/bot/", f.token(t, alice), nil), http.StatusNotFound)

	f.seedUser(t, "bot", false)
	rr := f.do(t, http.MethodGet, "/api/registration/bot/", f.token(t, alice), nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[userResource](t, rr); got.Email != "bot@example.com" {
		t.Fatalf("bot user = %+v", got)
	}
}
