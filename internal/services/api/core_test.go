package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/louisbranch/oilandrope/internal/services/registration/token"
)

func TestTokenEndpoint(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice", false)

	rr := f.do(t, http.MethodPost, "/api/auth/token/", "", tokenRequest{Username: "alice", Password: testPassword})
	expectStatus(t, rr, http.StatusOK)
	got := decodeBody[tokenResponse](t, rr)
	claims, err := f.tokens.Verify(got.Token, token.KindAccess)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.Subject != alice.ID {
		t.Fatalf("subject = %q, want %q", claims.Subject, alice.ID)
	}

	rr = f.do(t, http.MethodPost, "/api/auth/token/", "", tokenRequest{Username: "alice", Password: "wrong-password"})
	expectStatus(t, rr, http.StatusUnauthorized)
	if reason := errorReason(t, rr); reason != "USER_INVALID_CREDENTIALS" {
		t.Fatalf("reason = %q", reason)
	}

	rr = f.do(t, http.MethodPost, "/api/auth/token/", "", map[string]string{"username": "alice"})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestRegisterAndActivate(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/auth/register/", "", registerRequest{
		Username: "newbie",
		Email:    "Newbie@Example.com",
		Password: testPassword,
		Language: "es",
	})
	expectStatus(t, rr, http.StatusCreated)
	created := decodeBody[userResource](t, rr)
	if created.IsActive {
		t.Fatal("registered user should start inactive")
	}

	sent := f.sender.Sent()
	if len(sent) != 1 || sent[0].To[0] != created.Email {
		t.Fatalf("activation mail = %+v", sent)
	}

	rr = f.do(t, http.MethodPost, "/api/auth/register/", "", registerRequest{
		Username: "newbie",
		Email:    "other@example.com",
		Password: testPassword,
	})
	expectStatus(t, rr, http.StatusConflict)

	raw, err := f.tokens.IssueActivation(created.ID)
	if err != nil {
		t.Fatalf("issue activation: %v", err)
	}
	rr = f.do(t, http.MethodPost, "/api/auth/activate/", "", activateRequest{Token: raw})
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[userResource](t, rr); !got.IsActive {
		t.Fatal("user should be active")
	}

	rr = f.do(t, http.MethodPost, "/api/auth/activate/", "", activateRequest{Token: "garbage"})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		req   registerRequest
		field string
	}{
		{name: "missing username", req: registerRequest{Email: "a@example.com", Password: testPassword}, field: "username"},
		{name: "bad email", req: registerRequest{Username: "a", Email: "nope", Password: testPassword}, field: "email"},
		{name: "bad language", req: registerRequest{Username: "a", Email: "a@example.com", Password: testPassword, Language: "fr"}, field: "language"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/api/auth/register/", "", tc.req)
			expectStatus(t, rr, http.StatusBadRequest)
			if !strings.Contains(rr.Body.String(), tc.field) {
				t.Fatalf("body does not name %s: %s", tc.field, rr.Body.String())
			}
		})
	}
}

func TestResendActivationHidesUnknownEmail(t *testing.T) {
	f := newFixture(t)
	pending := f.seedUser(t, "pending", false)
	pending.IsActive = false
	if err := f.store.UpdateUser(context.Background(), pending); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rr := f.do(t, http.MethodPost, "/api/auth/activate/resend/", "", resendRequest{Email: "ghost@example.com"})
	expectStatus(t, rr, http.StatusAccepted)
	if len(f.sender.Sent()) != 0 {
		t.Fatal("no mail expected for an unknown address")
	}

	rr = f.do(t, http.MethodPost, "/api/auth/activate/resend/", "", resendRequest{Email: pending.Email})
	expectStatus(t, rr, http.StatusAccepted)
	if len(f.sender.Sent()) != 1 {
		t.Fatalf("sent = %d, want 1", len(f.sender.Sent()))
	}
}

func TestRoll(t *testing.T) {
	f := newFixture(t)
	bearer := f.token(t, f.seedUser(t, "alice", false))

	rr := f.do(t, http.MethodPost, "/api/roll/", bearer, rollRequest{Roll: "2d6+3"})
	expectStatus(t, rr, http.StatusOK)
	got := decodeBody[rollResponse](t, rr)
	rolls := got.Rolls["2d6"]
	if len(rolls) != 2 {
		t.Fatalf("rolls = %+v, want two 2d6 results", got.Rolls)
	}
	if want := rolls[0] + rolls[1] + 3; got.Result != want {
		t.Fatalf("result = %d, want %d", got.Result, want)
	}

	rr = f.do(t, http.MethodPost, "/api/roll/", bearer, rollRequest{Roll: "2x6"})
	expectStatus(t, rr, http.StatusBadRequest)
	if reason := errorReason(t, rr); reason != "DICE_INVALID_ROLL" {
		t.Fatalf("reason = %q", reason)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/roll/", "", rollRequest{Roll: "1d6"}), http.StatusUnauthorized)
}
