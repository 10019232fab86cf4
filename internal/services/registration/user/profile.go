package user

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
)

// MaxAliasLength bounds Profile.Alias.
const MaxAliasLength = 30

// Language is a profile language code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"

	// DefaultLanguage is assigned to new profiles.
	DefaultLanguage = LanguageEnglish
)

var (
	// ErrInvalidLanguage indicates an unsupported language code.
	ErrInvalidLanguage = apperrors.New(apperrors.CodeProfileInvalidLanguage, "language is not supported")
	// ErrInvalidAlias indicates an alias longer than MaxAliasLength.
	ErrInvalidAlias = apperrors.New(apperrors.CodeProfileInvalidAlias, "alias is too long")
	// ErrInvalidWeb indicates a website that is not an absolute http(s) URL.
	ErrInvalidWeb = apperrors.New(apperrors.CodeProfileInvalidWeb, "website is invalid")
)

// Valid reports whether the language is supported.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageSpanish
}

// Locale maps the language to a catalog locale.
func (l Language) Locale() string {
	if l == LanguageSpanish {
		return "es-ES"
	}
	return "en-US"
}

// Profile holds the public details of a user.
type Profile struct {
	UserID    string
	Bio       string
	Birthday  *time.Time
	Language  Language
	Alias     string
	Web       string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile returns the default profile created alongside a user.
func NewProfile(userID string, language Language, now time.Time) Profile {
	if !language.Valid() {
		language = DefaultLanguage
	}
	return Profile{UserID: userID, Language: language, CreatedAt: now, UpdatedAt: now}
}

// Age returns whole years between the birthday and now, false when unknown.
func (p Profile) Age(now time.Time) (int, bool) {
	if p.Birthday == nil {
		return 0, false
	}
	born := p.Birthday.UTC()
	now = now.UTC()
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return 0, true
	}
	return years, true
}

// ProfileUpdate carries optional profile changes; nil fields are untouched.
type ProfileUpdate struct {
	Bio      *string
	Birthday *time.Time
	Language *Language
	Alias    *string
	Web      *string
	Image    *string
}

// ApplyProfileUpdate validates and applies update to p.
func ApplyProfileUpdate(p Profile, update ProfileUpdate, now time.Time) (Profile, error) {
	if update.Bio != nil {
		p.Bio = strings.TrimSpace(*update.Bio)
	}
	if update.Birthday != nil {
		birthday := update.Birthday.UTC()
		p.Birthday = &birthday
	}
	if update.Language != nil {
		if !update.Language.Valid() {
			return Profile{}, ErrInvalidLanguage
		}
		p.Language = *update.Language
	}
	if update.Alias != nil {
		alias := strings.TrimSpace(*update.Alias)
		if utf8.RuneCountInString(alias) > MaxAliasLength {
			return Profile{}, ErrInvalidAlias
		}
		p.Alias = alias
	}
	if update.Web != nil {
		web := strings.TrimSpace(*update.Web)
		if web != "" {
			parsed, err := url.Parse(web)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
				return Profile{}, ErrInvalidWeb
			}
		}
		p.Web = web
	}
	if update.Image != nil {
		p.Image = strings.TrimSpace(*update.Image)
	}
	p.UpdatedAt = now.UTC()
	return p, nil
}
