// Package menu builds the navigation menus shown to each user.
package menu

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

const (
	// MaxNameLength bounds Menu.Name.
	MaxNameLength = 100
	// NoURL is the link of menus without a target.
	NoURL = "#no-url"
)

// Type separates navigation menus from contextual actions.
type Type int

const (
	TypeMain    Type = 0
	TypeContext Type = 1
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t == TypeMain || t == TypeContext
}

var (
	// ErrInvalidName indicates a missing or too long name.
	ErrInvalidName = apperrors.WithMetadata(apperrors.CodeMenuInvalidName, "menu name is invalid",
		map[string]string{"Max": fmt.Sprint(MaxNameLength)})
	// ErrInvalidType indicates an unknown menu type.
	ErrInvalidType = apperrors.New(apperrors.CodeMenuInvalidType, "menu type is invalid")
	// ErrInvalidTree indicates a dangling parent or a parent cycle.
	ErrInvalidTree = apperrors.New(apperrors.CodeMenuInvalidTree, "menu tree is invalid")
)

// Menu is one entry of the menu tree.
type Menu struct {
	ID                string
	Name              string
	Description       string
	PrependedText     string
	AppendedText      string
	ParentID          string
	URL               string
	ExtraURLArgs      string
	Order             int
	Permissions       []string
	StaffRequired     bool
	SuperuserRequired bool
	Icon              string
	RelatedModels     []string
	Type              Type
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Link returns the menu target with its extra arguments, or NoURL.
func (m Menu) Link() string {
	if m.URL == "" {
		if m.ExtraURLArgs != "" {
			return NoURL + m.ExtraURLArgs
		}
		return NoURL
	}
	return m.URL + m.ExtraURLArgs
}

// DisplayName joins prepended text, name and appended text.
func (m Menu) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{m.PrependedText, m.Name, m.AppendedText} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "  ")
}

// Normalize trims and validates m.
func Normalize(m Menu) (Menu, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.URL = strings.TrimSpace(m.URL)
	m.ExtraURLArgs = strings.TrimSpace(m.ExtraURLArgs)
	m.ParentID = strings.TrimSpace(m.ParentID)
	if m.Name == "" || utf8.RuneCountInString(m.Name) > MaxNameLength {
		return Menu{}, ErrInvalidName
	}
	if !m.Type.Valid() {
		return Menu{}, ErrInvalidType
	}
	if m.Order < 0 {
		m.Order = 0
	}
	m.Permissions = normalizeSet(m.Permissions)
	m.RelatedModels = normalizeSet(m.RelatedModels)
	return m, nil
}

// Create validates m and assigns its id and timestamps.
func Create(m Menu, now func() time.Time, idGenerator func() (string, error)) (Menu, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	normalized, err := Normalize(m)
	if err != nil {
		return Menu{}, err
	}
	menuID, err := idGenerator()
	if err != nil {
		return Menu{}, fmt.Errorf("generate menu id: %w", err)
	}
	created := now().UTC()
	normalized.ID = menuID
	normalized.CreatedAt = created
	normalized.UpdatedAt = created
	return normalized, nil
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// Viewer is the identity menus are filtered for.
type Viewer struct {
	Authenticated bool
	IsStaff       bool
	IsSuperuser   bool
	Permissions   []string
}

// CanSee reports whether v may see m.
func (v Viewer) CanSee(m Menu) bool {
	if v.IsSuperuser {
		return true
	}
	if m.SuperuserRequired {
		return false
	}
	if m.StaffRequired && !v.IsStaff {
		return false
	}
	if len(m.Permissions) == 0 {
		return true
	}
	if !v.Authenticated {
		return false
	}
	granted := make(map[string]struct{}, len(v.Permissions))
	for _, perm := range v.Permissions {
		granted[perm] = struct{}{}
	}
	for _, perm := range m.Permissions {
		if _, ok := granted[perm]; !ok {
			return false
		}
	}
	return true
}

// VisibleMenus returns the main menus v may see, ordered.
func VisibleMenus(v Viewer, all []Menu) []Menu {
	out := make([]Menu, 0, len(all))
	for _, m := range all {
		if m.Type == TypeMain && v.CanSee(m) {
			out = append(out, m)
		}
	}
	sortMenus(out)
	return out
}

// ContextMenus returns the context menus under parentID that v may see.
func ContextMenus(v Viewer, parentID string, all []Menu) []Menu {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return []Menu{}
	}
	out := make([]Menu, 0)
	for _, m := range all {
		if m.Type == TypeContext && m.ParentID == parentID && v.CanSee(m) {
			out = append(out, m)
		}
	}
	sortMenus(out)
	return out
}

func sortMenus(menus []Menu) {
	sort.SliceStable(menus, func(i, j int) bool {
		if menus[i].Order != menus[j].Order {
			return menus[i].Order < menus[j].Order
		}
		return menus[i].Name < menus[j].Name
	})
}

// Node is a menu with its ordered children.
type Node struct {
	Menu     Menu    `json:"menu"`
	Link     string  `json:"link"`
	Children []*Node `json:"children"`
}

// Tree nests menus under their parents. Menus whose parent is absent become
// roots, so a filtered list still renders.
func Tree(menus []Menu) []*Node {
	sorted := append([]Menu(nil), menus...)
	sortMenus(sorted)
	nodes := make(map[string]*Node, len(sorted))
	for _, m := range sorted {
		nodes[m.ID] = &Node{Menu: m, Link: m.Link(), Children: []*Node{}}
	}
	roots := make([]*Node, 0)
	for _, m := range sorted {
		node := nodes[m.ID]
		if parent, ok := nodes[m.ParentID]; ok && m.ParentID != m.ID {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots
}

// ValidateTree rejects dangling parents and parent cycles.
func ValidateTree(menus []Menu) error {
	parents := make(map[string]string, len(menus))
	for _, m := range menus {
		parents[m.ID] = m.ParentID
	}
	for _, m := range menus {
		if m.ParentID == "" {
			continue
		}
		if _, ok := parents[m.ParentID]; !ok {
			return ErrInvalidTree
		}
		seen := map[string]struct{}{m.ID: {}}
		for current := m.ParentID; current != ""; current = parents[current] {
			if _, loop := seen[current]; loop {
				return ErrInvalidTree
			}
			seen[current] = struct{}{}
		}
	}
	return nil
}
