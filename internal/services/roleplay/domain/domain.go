// Package domain models divine domains and their subdomains.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// MaxNameLength bounds Domain.Name.
const MaxNameLength = 25

// Type distinguishes domains from subdomains.
type Type int

const (
	TypeDomain    Type = 0
	TypeSubdomain Type = 1
)

// String returns the display label.
func (t Type) String() string {
	switch t {
	case TypeDomain:
		return "Domain"
	case TypeSubdomain:
		return "Subdomain"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t == TypeDomain || t == TypeSubdomain
}

var (
	// ErrInvalidName indicates a missing or too long name.
	ErrInvalidName = apperrors.WithMetadata(apperrors.CodeDomainInvalidName, "domain name is invalid",
		map[string]string{"Max": fmt.Sprint(MaxNameLength)})
	// ErrInvalidType indicates an unknown domain type.
	ErrInvalidType = apperrors.New(apperrors.CodeDomainInvalidType, "domain type is invalid")
)

// Domain is a sphere of influence a deity may hold.
type Domain struct {
	ID          string
	Name        string
	Description string
	Type        Type
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// String renders "Name [Domain]".
func (d Domain) String() string {
	return fmt.Sprintf("%s [%s]", d.Name, d.Type)
}

// IsSubdomain reports whether d is a subdomain.
func (d Domain) IsSubdomain() bool {
	return d.Type == TypeSubdomain
}

// Input describes the editable fields of a domain.
type Input struct {
	Name        string
	Description string
	Type        Type
	Image       string
}

// Normalize trims and validates input.
func Normalize(input Input) (Input, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Image = strings.TrimSpace(input.Image)
	if input.Name == "" || utf8.RuneCountInString(input.Name) > MaxNameLength {
		return Input{}, ErrInvalidName
	}
	if !input.Type.Valid() {
		return Input{}, ErrInvalidType
	}
	return input, nil
}

// Create builds a new domain.
func Create(input Input, now func() time.Time, idGenerator func() (string, error)) (Domain, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	normalized, err := Normalize(input)
	if err != nil {
		return Domain{}, err
	}
	domainID, err := idGenerator()
	if err != nil {
		return Domain{}, fmt.Errorf("generate domain id: %w", err)
	}
	created := now().UTC()
	return Domain{
		ID:          domainID,
		Name:        normalized.Name,
		Description: normalized.Description,
		Type:        normalized.Type,
		Image:       normalized.Image,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

// Update applies input to d.
func Update(d Domain, input Input, now time.Time) (Domain, error) {
	normalized, err := Normalize(input)
	if err != nil {
		return Domain{}, err
	}
	d.Name = normalized.Name
	d.Description = normalized.Description
	d.Type = normalized.Type
	d.Image = normalized.Image
	d.UpdatedAt = now.UTC()
	return d, nil
}
