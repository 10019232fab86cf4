package menu

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// Entry is one node of a YAML menu fixture.
type Entry struct {
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	PrependedText     string   `yaml:"prepended_text"`
	AppendedText      string   `yaml:"appended_text"`
	URL               string   `yaml:"url"`
	ExtraURLArgs      string   `yaml:"extra_url_args"`
	Order             int      `yaml:"order"`
	Permissions       []string `yaml:"permissions"`
	StaffRequired     bool     `yaml:"staff_required"`
	SuperuserRequired bool     `yaml:"superuser_required"`
	Icon              string   `yaml:"icon"`
	RelatedModels     []string `yaml:"related_models"`
	Type              string   `yaml:"type"`
	Children          []Entry  `yaml:"children"`
}

// Decode reads a YAML list of menu entries.
func Decode(r io.Reader) ([]Entry, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var entries []Entry
	if err := decoder.Decode(&entries); err != nil {
		if err == io.EOF {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("decode menu fixture: %w", err)
	}
	return entries, nil
}

// Flatten converts nested entries into menus with parent ids assigned,
// parents before children.
func Flatten(entries []Entry, now func() time.Time, idGenerator func() (string, error)) ([]Menu, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	out := make([]Menu, 0, len(entries))
	var walk func(parentID string, level []Entry) error
	walk = func(parentID string, level []Entry) error {
		for _, entry := range level {
			menuType, err := parseType(entry.Type)
			if err != nil {
				return err
			}
			created, err := Create(Menu{
				Name:              entry.Name,
				Description:       entry.Description,
				PrependedText:     entry.PrependedText,
				AppendedText:      entry.AppendedText,
				ParentID:          parentID,
				URL:               entry.URL,
				ExtraURLArgs:      entry.ExtraURLArgs,
				Order:             entry.Order,
				Permissions:       entry.Permissions,
				StaffRequired:     entry.StaffRequired,
				SuperuserRequired: entry.SuperuserRequired,
				Icon:              entry.Icon,
				RelatedModels:     entry.RelatedModels,
				Type:              menuType,
			}, now, idGenerator)
			if err != nil {
				return fmt.Errorf("menu %q: %w", entry.Name, err)
			}
			out = append(out, created)
			if err := walk(created.ID, entry.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk("", entries); err != nil {
		return nil, err
	}
	return out, nil
}

func parseType(value string) (Type, error) {
	switch value {
	case "", "main":
		return TypeMain, nil
	case "context":
		return TypeContext, nil
	default:
		return 0, ErrInvalidType
	}
}
