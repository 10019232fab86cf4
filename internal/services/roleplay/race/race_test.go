package race

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateRaceDefaults(t *testing.T) {
	r, err := Create(Input{Name: "Elf", Abilities: Abilities{Dexterity: 2}}, nil, func() (string, error) { return "r1", nil })
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.AffectedByArmor {
		t.Fatal("expected affected by armor by default")
	}
	if r.Dexterity != 2 || r.Strength != 0 {
		t.Fatalf("unexpected abilities: %+v", r.Abilities)
	}
}

func TestCreateRaceRejectsBadName(t *testing.T) {
	for _, name := range []string{"", "  ", strings.Repeat("x", MaxNameLength+1)} {
		if _, err := Create(Input{Name: name}, nil, nil); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: err = %v", name, err)
		}
	}
}

func TestUpdateRaceKeepsArmorFlagWhenUnset(t *testing.T) {
	r := Race{ID: "r1", Name: "Dwarf", AffectedByArmor: false}
	updated, err := Update(r, Input{Name: "Dwarf", Abilities: Abilities{Constitution: 2}}, time.Now())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AffectedByArmor {
		t.Fatal("expected armor flag to be kept")
	}
	yes := true
	updated, err = Update(updated, Input{Name: "Dwarf", AffectedByArmor: &yes}, time.Now())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.AffectedByArmor {
		t.Fatal("expected armor flag to change")
	}
}

func TestAddOwnersDeduplicates(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	links := AddOwners(Race{ID: "r1"}, now, "u1", "u2", "u1", " ")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	for _, link := range links {
		if !link.IsOwner || link.RaceID != "r1" {
			t.Fatalf("unexpected link: %+v", link)
		}
	}
}
