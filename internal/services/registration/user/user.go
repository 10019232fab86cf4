// Package user defines accounts and profiles.
package user

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@+\-]{3,150}$`)

var (
	// ErrInvalidUsername indicates a username outside the allowed charset or length.
	ErrInvalidUsername = apperrors.New(apperrors.CodeUserInvalidUsername, "username is invalid")
	// ErrInvalidEmail indicates an unparsable email address.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserInvalidEmail, "email is invalid")
	// ErrInvalidCredentials indicates a username/password mismatch.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeUserInvalidCredentials, "invalid credentials")
	// ErrInactive indicates the account has not been activated.
	ErrInactive = apperrors.New(apperrors.CodeUserInactive, "user is inactive")
)

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	IsPremium    bool
	DateJoined   time.Time
	LastLogin    *time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user may use admin-only operations.
func (u User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Language  Language
}

// NormalizeRegisterInput trims and validates registration fields.
func NormalizeRegisterInput(input RegisterInput) (RegisterInput, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)

	if !usernamePattern.MatchString(input.Username) {
		return RegisterInput{}, ErrInvalidUsername
	}
	if err := ValidateEmail(input.Email); err != nil {
		return RegisterInput{}, err
	}
	if utf8.RuneCountInString(input.Password) < MinPasswordLength {
		return RegisterInput{}, apperrors.WithMetadata(apperrors.CodeUserPasswordTooShort,
			"password is too short", map[string]string{"Min": fmt.Sprint(MinPasswordLength)})
	}
	if input.Language == "" {
		input.Language = DefaultLanguage
	}
	if !input.Language.Valid() {
		return RegisterInput{}, ErrInvalidLanguage
	}
	return input, nil
}

// ValidateEmail checks that value is a bare address.
func ValidateEmail(value string) error {
	parsed, err := mail.ParseAddress(value)
	if err != nil || parsed.Address != value {
		return ErrInvalidEmail
	}
	return nil
}

// CreateUser builds an inactive user and its default profile.
func CreateUser(input RegisterInput, now func() time.Time, idGenerator func() (string, error)) (User, Profile, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	normalized, err := NormalizeRegisterInput(input)
	if err != nil {
		return User{}, Profile{}, err
	}
	hash, err := HashPassword(normalized.Password)
	if err != nil {
		return User{}, Profile{}, err
	}
	userID, err := idGenerator()
	if err != nil {
		return User{}, Profile{}, fmt.Errorf("generate user id: %w", err)
	}

	joined := now().UTC()
	u := User{
		ID:           userID,
		Username:     normalized.Username,
		Email:        normalized.Email,
		FirstName:    normalized.FirstName,
		LastName:     normalized.LastName,
		PasswordHash: hash,
		DateJoined:   joined,
		UpdatedAt:    joined,
	}
	return u, NewProfile(userID, normalized.Language, joined), nil
}

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func (u User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
