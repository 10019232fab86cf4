package campaign

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/oilandrope/internal/services/roleplay/place"
)

func staticID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 20, 0, 0, 0, time.UTC)
	return &t
}

func TestCreateCampaign(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c, err := Create(Input{Name: " Curse of Strahd ", System: SystemDnD5e, PlaceID: "w1"}, "u1", func() time.Time { return now }, staticID("c1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != "c1" || c.OwnerID != "u1" || c.Name != "Curse of Strahd" || !c.CreatedAt.Equal(now) {
		t.Fatalf("unexpected campaign: %+v", c)
	}
	if got := c.Slug(); got != "curse-of-strahd" {
		t.Fatalf("Slug() = %q", got)
	}
	if got := c.ChatName(); got != "Curse of Strahd Chat" {
		t.Fatalf("ChatName() = %q", got)
	}
	if got := c.String(); got != "Curse of Strahd [c1]" {
		t.Fatalf("String() = %q", got)
	}
}

func TestCampaignValidation(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  error
	}{
		{name: "missing name", input: Input{}, want: ErrInvalidName},
		{name: "long name", input: Input{Name: strings.Repeat("n", MaxNameLength+1)}, want: ErrInvalidName},
		{name: "long resume", input: Input{Name: "x", Resume: strings.Repeat("r", MaxResumeLength+1)}, want: ErrInvalidResume},
		{name: "bad system", input: Input{Name: "x", System: System(9)}, want: ErrInvalidSystem},
		{name: "end before start", input: Input{Name: "x", StartDate: datePtr(2026, 5, 2), EndDate: datePtr(2026, 5, 1)}, want: ErrInvalidDates},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Create(tc.input, "u1", nil, staticID("c1")); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateWorld(t *testing.T) {
	if err := ValidateWorld(place.Place{SiteType: place.SiteWorld}); err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := ValidateWorld(place.Place{SiteType: place.SiteCity}); !errors.Is(err, ErrPlaceNotWorld) {
		t.Fatalf("city: %v", err)
	}
}

func TestAddGameMasters(t *testing.T) {
	players := AddGameMasters(Campaign{ID: "c1"}, time.Now(), "u1", "u1", "u2")
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(players))
	}
	for _, p := range players {
		if !p.IsGameMaster || p.CampaignID != "c1" {
			t.Fatalf("unexpected player: %+v", p)
		}
	}
}

func TestSessionFinishedAndOrdering(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	sessions := []Session{
		{ID: "old", NextGame: datePtr(2026, 4, 1)},
		{ID: "today", NextGame: datePtr(2026, 5, 10)},
		{ID: "recent", NextGame: datePtr(2026, 5, 9)},
		{ID: "unscheduled"},
		{ID: "future", NextGame: datePtr(2026, 6, 1)},
	}
	finished := FinishedSessions(sessions, now)
	if len(finished) != 2 || finished[0].ID != "recent" || finished[1].ID != "old" {
		t.Fatalf("unexpected finished sessions: %+v", finished)
	}
}

func TestCreateSession(t *testing.T) {
	s, err := CreateSession("c1", SessionInput{Name: "Into the mists", System: SystemPathfinder}, nil, staticID("s1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := s.String(); got != "Into the mists [Pathfinder]" {
		t.Fatalf("String() = %q", got)
	}
	if _, err := CreateSession("", SessionInput{Name: "x"}, nil, staticID("s1")); err == nil {
		t.Fatal("expected missing campaign to fail")
	}
	if _, err := CreateSession("c1", SessionInput{Name: "x", Plot: strings.Repeat("p", MaxPlotLength+1)}, nil, staticID("s1")); !errors.Is(err, ErrInvalidPlot) {
		t.Fatalf("expected plot error, got %v", err)
	}
}

func TestNormalizeEmails(t *testing.T) {
	valid, invalid, err := NormalizeEmails([]string{"B@x.test", "a@x.test", "b@x.test", "nope", " "})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(valid) != 2 || valid[0] != "a@x.test" || valid[1] != "b@x.test" {
		t.Fatalf("valid = %v", valid)
	}
	if len(invalid) != 1 || invalid[0] != "nope" {
		t.Fatalf("invalid = %v", invalid)
	}
	if _, _, err := NormalizeEmails([]string{"nope"}); !errors.Is(err, ErrNoEmails) {
		t.Fatalf("expected no emails error, got %v", err)
	}
}

func TestInvitationLinkAndInvitee(t *testing.T) {
	link := InvitationLink("https://oilandrope.test/", "abc.def")
	if link != "https://oilandrope.test/roleplay/campaign/join/?token=abc.def" {
		t.Fatalf("link = %q", link)
	}
	if err := CheckInvitee("A@x.test", "a@x.test"); err != nil {
		t.Fatalf("matching invitee: %v", err)
	}
	if err := CheckInvitee("a@x.test", "b@x.test"); !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
