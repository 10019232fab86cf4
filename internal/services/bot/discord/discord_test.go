package discord

import (
	"testing"
	"time"
)

func TestUserString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{code: 7, want: "ana#0007"},
		{code: 1234, want: "ana#1234"},
		{code: 0, want: "ana#0000"},
	}
	for _, tc := range tests {
		if got := (User{Nick: "ana", Code: tc.code}).String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestUserLinked(t *testing.T) {
	if (User{ID: "1"}).Linked() {
		t.Fatal("expected unlinked user")
	}
	if !(User{ID: "1", UserID: "u1"}).Linked() {
		t.Fatal("expected linked user")
	}
}

func TestChannelString(t *testing.T) {
	if got := (Channel{Name: "general"}).String(); got != "#general" {
		t.Fatalf("text channel = %q", got)
	}
	if got := (Channel{Name: "Tavern", Kind: ChannelVoice}).String(); got != "Tavern" {
		t.Fatalf("voice channel = %q", got)
	}
}

func TestSnowflakeTime(t *testing.T) {
	got := SnowflakeTime("175928847299117063")
	want := time.Date(2016, 4, 30, 11, 18, 25, 796000000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("SnowflakeTime = %v, want %v", got, want)
	}
	if !SnowflakeTime("abc").IsZero() {
		t.Fatal("expected zero time for invalid snowflake")
	}
}
