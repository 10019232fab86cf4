package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeStatusMapping(t *testing.T) {
	tests := []struct {
		code     Code
		grpcCode codes.Code
		http     int
	}{
		{CodeDiceInvalidRoll, codes.InvalidArgument, http.StatusBadRequest},
		{CodeUnauthenticated, codes.Unauthenticated, http.StatusUnauthorized},
		{CodeChatNotMember, codes.PermissionDenied, http.StatusForbidden},
		{CodeNotFound, codes.NotFound, http.StatusNotFound},
		{CodeUserEmailTaken, codes.AlreadyExists, http.StatusConflict},
		{CodeUserInactive, codes.FailedPrecondition, http.StatusBadRequest},
		{CodeUnknown, codes.Internal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.grpcCode {
			t.Fatalf("%s grpc code = %v, want %v", tc.code, got, tc.grpcCode)
		}
		if got := tc.code.HTTPStatus(); got != tc.http {
			t.Fatalf("%s http status = %d, want %d", tc.code, got, tc.http)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeNotFound, "not found")
	wrapped := fmt.Errorf("lookup: %w", Wrap(CodeNotFound, "place missing", errors.New("sql")))
	if !errors.Is(wrapped, sentinel) {
		t.Fatal("expected errors.Is to match by code")
	}
	if GetCode(wrapped) != CodeNotFound {
		t.Fatalf("code = %s, want %s", GetCode(wrapped), CodeNotFound)
	}
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for plain error")
	}
	if !IsCode(wrapped, CodeNotFound) {
		t.Fatal("expected IsCode to match")
	}
}

func TestHandleErrorAttachesDetails(t *testing.T) {
	err := HandleError(WithMetadata(CodeDiceInvalidRoll, "bad roll", map[string]string{"Roll": "d"}), "")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected status error")
	}
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", st.Code())
	}
	var foundInfo, foundMessage bool
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			foundInfo = d.GetReason() == string(CodeDiceInvalidRoll) && d.GetDomain() == Domain
		case *errdetails.LocalizedMessage:
			foundMessage = d.GetMessage() == "Dice roll `d` syntax is incorrect."
		}
	}
	if !foundInfo || !foundMessage {
		t.Fatalf("details missing: info=%v message=%v", foundInfo, foundMessage)
	}

	if HandleError(nil, "en-US") != nil {
		t.Fatal("expected nil for nil error")
	}
	plain, _ := status.FromError(HandleError(errors.New("boom"), "en-US"))
	if plain.Code() != codes.Internal {
		t.Fatalf("code = %v, want Internal", plain.Code())
	}
}

func TestWriteHTTPEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, New(CodePermissionDenied, "not owner"), "en-US")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	var body struct {
		Error struct {
			Code    int              `json:"code"`
			Message string           `json:"message"`
			Status  string           `json:"status"`
			Details []map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", body.Error.Code)
	}
	if body.Error.Status != "PERMISSION_DENIED" {
		t.Fatalf("status = %q, want PERMISSION_DENIED", body.Error.Status)
	}
	if len(body.Error.Details) != 2 {
		t.Fatalf("details = %d, want 2", len(body.Error.Details))
	}
}

func TestWriteHTTPHidesUnexpectedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, errors.New("database is on fire"), "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got == "" || strings.Contains(got, "on fire") {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestHelpfulErrorFormat(t *testing.T) {
	err := Helpful("missing token", "set OILANDROPE_BOT_TOKEN")
	err.Footnote = "see the README"
	want := "\nAn error ocurred\n\tProblem: missing token\n\n\tSolution: set OILANDROPE_BOT_TOKEN\n\nsee the README"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}

	custom := &HelpfulError{Preface: "Bot failed", Issue: "a", Solution: "b"}
	if custom.Error() != "\nBot failed\n\tProblem: a\n\n\tSolution: b\n\n" {
		t.Fatalf("unexpected custom preface output %q", custom.Error())
	}
}

func TestDiscordAPIError(t *testing.T) {
	cause := errors.New("forbidden")
	err := &DiscordAPIError{Method: "POST", Endpoint: "/channels/1/messages", StatusCode: 403, DiscordCode: 50013, Message: "Missing Permissions", Cause: cause}
	want := "discord api: POST /channels/1/messages: status 403 (code 50013): Missing Permissions"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	domain := err.AsDomain()
	if domain.Code != CodeDiscordAPI || domain.Metadata["Status"] != "403" {
		t.Fatalf("unexpected domain error %+v", domain)
	}
}
