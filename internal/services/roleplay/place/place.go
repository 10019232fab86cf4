// Package place models the hierarchy of locations a campaign is set in.
package place

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// MaxNameLength bounds Place.Name.
const MaxNameLength = 100

// SiteType classifies a place. Values are stable and persisted.
type SiteType int

const (
	SiteHouse SiteType = iota
	SiteTown
	SiteVillage
	SiteCity
	SiteMetropolis
	SiteForest
	SiteHills
	SiteMountains
	SiteMines
	SiteRiver
	SiteSea
	SiteDesert
	SiteTundra
	SiteUnusual
	SiteIsland
	SiteCountry
	SiteContinent
	SiteWorld
)

// DefaultSiteType is used when none is given.
const DefaultSiteType = SiteTown

var siteTypeNames = [...]string{
	"HOUSE", "TOWN", "VILLAGE", "CITY", "METROPOLIS", "FOREST", "HILLS",
	"MOUNTAINS", "MINES", "RIVER", "SEA", "DESERT", "TUNDRA", "UNUSUAL",
	"ISLAND", "COUNTRY", "CONTINENT", "WORLD",
}

var siteTypeIcons = [...]string{
	"ra ra-wooden-sign",
	"ra ra-tower",
	"ra ra-village",
	"ra ra-castle-emblem",
	"ra ra-capitol",
	"ra ra-pine-tree",
	"ra ra-grass-patch",
	"ra ra-mountains",
	"ra ra-mining-diamonds",
	"ra ra-water-drop",
	"ra ra-anchor",
	"ra ra-cactus",
	"ra ra-snowflake",
	"ra ra-crystal-ball",
	"ra ra-palm-tree",
	"ra ra-flag",
	"ra ra-compass",
	"ra ra-globe",
}

// Valid reports whether s is a known site type.
func (s SiteType) Valid() bool {
	return s >= SiteHouse && s <= SiteWorld
}

// String returns the upper-case site type name.
func (s SiteType) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return siteTypeNames[s]
}

// Icon returns the icon class for the site type.
func (s SiteType) Icon() string {
	if !s.Valid() {
		return ""
	}
	return siteTypeIcons[s]
}

// ParseSiteType resolves a site type by name, case-insensitively.
func ParseSiteType(value string) (SiteType, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	for i, name := range siteTypeNames {
		if name == value {
			return SiteType(i), true
		}
	}
	return 0, false
}

var (
	// ErrInvalidName indicates a missing or too long name.
	ErrInvalidName = apperrors.WithMetadata(apperrors.CodePlaceInvalidName, "place name is invalid",
		map[string]string{"Max": fmt.Sprint(MaxNameLength)})
	// ErrInvalidSiteType indicates an unknown site type.
	ErrInvalidSiteType = apperrors.New(apperrors.CodePlaceInvalidSiteType, "site type is invalid")
	// ErrPrivateWithoutOwner indicates a private place with no owner.
	ErrPrivateWithoutOwner = apperrors.New(apperrors.CodePlacePrivateWithoutOwner, "a private world must have owner")
	// ErrInvalidParent indicates a parent that would create a cycle.
	ErrInvalidParent = apperrors.New(apperrors.CodePlaceInvalidParent, "place parent is invalid")
)

// Place is a node in the location tree.
type Place struct {
	ID          string
	Name        string
	Description string
	SiteType    SiteType
	Image       string
	ParentID    string
	// UserID marks the place as private to that user. Empty means community.
	UserID    string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCommunity reports whether the place is not private to any user.
func (p Place) IsCommunity() bool {
	return p.UserID == ""
}

// IsWorld reports whether the place is a world.
func (p Place) IsWorld() bool {
	return p.SiteType == SiteWorld
}

// Icon resolves the site-type icon class.
func (p Place) Icon() string {
	return p.SiteType.Icon()
}

// Input describes the editable fields of a place.
type Input struct {
	Name        string
	Description string
	SiteType    *SiteType
	Image       string
	ParentID    string
	UserID      string
	OwnerID     string
}

func normalize(input Input) (Input, SiteType, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Image = strings.TrimSpace(input.Image)
	input.ParentID = strings.TrimSpace(input.ParentID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.Name == "" || utf8.RuneCountInString(input.Name) > MaxNameLength {
		return Input{}, 0, ErrInvalidName
	}
	siteType := DefaultSiteType
	if input.SiteType != nil {
		siteType = *input.SiteType
	}
	if !siteType.Valid() {
		return Input{}, 0, ErrInvalidSiteType
	}
	if input.UserID != "" && input.OwnerID == "" {
		return Input{}, 0, ErrPrivateWithoutOwner
	}
	return input, siteType, nil
}

// Create builds a new place.
func Create(input Input, now func() time.Time, idGenerator func() (string, error)) (Place, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	normalized, siteType, err := normalize(input)
	if err != nil {
		return Place{}, err
	}
	placeID, err := idGenerator()
	if err != nil {
		return Place{}, fmt.Errorf("generate place id: %w", err)
	}
	created := now().UTC()
	return Place{
		ID:          placeID,
		Name:        normalized.Name,
		Description: normalized.Description,
		SiteType:    siteType,
		Image:       normalized.Image,
		ParentID:    normalized.ParentID,
		UserID:      normalized.UserID,
		OwnerID:     normalized.OwnerID,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

// Update applies input to p. The parent must not be p itself; descendant
// checks need the tree and are enforced with ValidateParent.
func Update(p Place, input Input, now time.Time) (Place, error) {
	normalized, siteType, err := normalize(input)
	if err != nil {
		return Place{}, err
	}
	if normalized.ParentID == p.ID {
		return Place{}, ErrInvalidParent
	}
	p.Name = normalized.Name
	p.Description = normalized.Description
	p.SiteType = siteType
	p.Image = normalized.Image
	p.ParentID = normalized.ParentID
	p.UserID = normalized.UserID
	p.OwnerID = normalized.OwnerID
	p.UpdatedAt = now.UTC()
	return p, nil
}

// ValidateParent rejects parentID when it is placeID or one of its descendants.
func ValidateParent(placeID, parentID string, descendantIDs []string) error {
	if parentID == "" {
		return nil
	}
	if parentID == placeID {
		return ErrInvalidParent
	}
	for _, descendant := range descendantIDs {
		if descendant == parentID {
			return ErrInvalidParent
		}
	}
	return nil
}

// Node is a place with its children, used for tree rendering.
type Node struct {
	Place    Place
	Children []*Node
}

// BuildTree nests places under their parents. Places whose parent is not in
// the slice become roots. Input order is kept among siblings.
func BuildTree(places []Place) []*Node {
	nodes := make(map[string]*Node, len(places))
	for _, p := range places {
		nodes[p.ID] = &Node{Place: p}
	}
	roots := make([]*Node, 0)
	for _, p := range places {
		node := nodes[p.ID]
		if parent, ok := nodes[p.ParentID]; ok && p.ParentID != p.ID {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots
}
