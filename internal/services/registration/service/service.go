// Package service implements the account flows: registration, activation,
// login, profile edits and Discord linking.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
	"github.com/louisbranch/oilandrope/internal/services/registration/mail"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/services/registration/user"
	"github.com/louisbranch/oilandrope/internal/storage"
)

// ActivatePath is the site path receiving activation links.
const ActivatePath = "/registration/activate/"

var (
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = apperrors.New(apperrors.CodeUserUsernameTaken, "username is taken")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = apperrors.New(apperrors.CodeUserEmailTaken, "email is taken")
	// ErrAlreadyActive indicates an activation for an active account.
	ErrAlreadyActive = apperrors.New(apperrors.CodeUserAlreadyActive, "account is already active")
	// ErrDiscordNotLinked indicates a Discord account with no site user.
	ErrDiscordNotLinked = apperrors.New(apperrors.CodeDiscordAccountNotLinked, "discord account is not linked")
)

// Store is the persistence the account flows need.
type Store interface {
	storage.UserStore
	storage.DiscordStore
}

// Config configures Service.
type Config struct {
	// SiteURL prefixes links sent by email.
	SiteURL string
	// From is the sender address of account emails.
	From string
}

// Service runs the account flows.
type Service struct {
	store       Store
	tokens      *token.Manager
	sender      mail.Sender
	cfg         Config
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New creates a Service. sender may be nil, in which case no email is sent.
func New(store Store, tokens *token.Manager, sender mail.Sender, cfg Config) *Service {
	return &Service{
		store:       store,
		tokens:      tokens,
		sender:      sender,
		cfg:         cfg,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Service) configured() error {
	if s == nil || s.store == nil || s.tokens == nil {
		return fmt.Errorf("registration service is not configured")
	}
	return nil
}

// Register creates an inactive account and emails its activation link.
func (s *Service) Register(ctx context.Context, input user.RegisterInput) (user.User, error) {
	if err := s.configured(); err != nil {
		return user.User{}, err
	}
	normalized, err := user.NormalizeRegisterInput(input)
	if err != nil {
		return user.User{}, err
	}
	if _, err := s.store.GetUserByLogin(ctx, normalized.Username); err == nil {
		return user.User{}, ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}
	if _, err := s.store.GetUserByEmail(ctx, normalized.Email); err == nil {
		return user.User{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}

	u, profile, err := user.CreateUser(normalized, s.now, s.idGenerator)
	if err != nil {
		return user.User{}, err
	}
	if err := s.store.CreateUser(ctx, u, profile); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return user.User{}, ErrUsernameTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	if err := s.sendActivation(ctx, u, profile.Language); err != nil {
		// The account exists; the user can ask for a new link.
		log.Printf("registration: send activation to %s: %v", u.ID, err)
	}
	return u, nil
}

// ActivationLink returns the link carrying an activation token.
func (s *Service) ActivationLink(raw string) string {
	return strings.TrimRight(s.cfg.SiteURL, "/") + ActivatePath + "?token=" + url.QueryEscape(raw)
}

func (s *Service) sendActivation(ctx context.Context, u user.User, language user.Language) error {
	if s.sender == nil {
		return nil
	}
	raw, err := s.tokens.IssueActivation(u.ID)
	if err != nil {
		return err
	}
	locale := language.Locale()
	msg, err := mail.Activation(mail.LocalizerFor(locale), locale, u.FullName(), s.ActivationLink(raw))
	if err != nil {
		return err
	}
	msg.From = s.cfg.From
	msg.To = []string{u.Email}
	return s.sender.Send(ctx, msg)
}

// Activate verifies an activation token and activates its account.
func (s *Service) Activate(ctx context.Context, raw string) (user.User, error) {
	if err := s.configured(); err != nil {
		return user.User{}, err
	}
	claims, err := s.tokens.Verify(raw, token.KindActivation)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, token.ErrInvalid
		}
		return user.User{}, err
	}
	if u.IsActive {
		return user.User{}, ErrAlreadyActive
	}
	u.IsActive = true
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return user.User{}, fmt.Errorf("activate user: %w", err)
	}
	return u, nil
}

// Authenticate checks credentials of an active account, records the login
// and returns an access token.
func (s *Service) Authenticate(ctx context.Context, login, password string) (user.User, string, error) {
	if err := s.configured(); err != nil {
		return user.User{}, "", err
	}
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return user.User{}, "", user.ErrInvalidCredentials
	}
	u, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", user.ErrInvalidCredentials
		}
		return user.User{}, "", err
	}
	if !u.CheckPassword(password) {
		return user.User{}, "", user.ErrInvalidCredentials
	}
	if !u.IsActive {
		return user.User{}, "", user.ErrInactive
	}
	now := s.now()
	u.LastLogin = &now
	u.UpdatedAt = now
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return user.User{}, "", fmt.Errorf("record login: %w", err)
	}
	raw, err := s.tokens.IssueAccess(u.ID, u.IsStaff, u.IsSuperuser)
	if err != nil {
		return user.User{}, "", err
	}
	return u, raw, nil
}

// ResendActivation emails a new activation link to an inactive account.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	if err := s.configured(); err != nil {
		return err
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.IsActive {
		return ErrAlreadyActive
	}
	language := user.DefaultLanguage
	if profile, err := s.store.GetProfile(ctx, u.ID); err == nil {
		language = profile.Language
	}
	return s.sendActivation(ctx, u, language)
}

// UpdateProfile applies update to the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update user.ProfileUpdate) (user.Profile, error) {
	if err := s.configured(); err != nil {
		return user.Profile{}, err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return user.Profile{}, err
	}
	profile, err = user.ApplyProfileUpdate(profile, update, s.now())
	if err != nil {
		return user.Profile{}, err
	}
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return user.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// LinkDiscord attaches a Discord account the bot has seen to a site user.
func (s *Service) LinkDiscord(ctx context.Context, userID, discordID string) error {
	if err := s.configured(); err != nil {
		return err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.store.GetDiscordUser(ctx, discordID); err != nil {
		return err
	}
	return s.store.LinkDiscordUser(ctx, discordID, userID, s.now())
}

// UserForDiscord returns the site user linked to a Discord account.
func (s *Service) UserForDiscord(ctx context.Context, discordID string) (user.User, error) {
	if err := s.configured(); err != nil {
		return user.User{}, err
	}
	du, err := s.store.GetDiscordUser(ctx, discordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, ErrDiscordNotLinked
		}
		return user.User{}, err
	}
	if !du.Linked() {
		return user.User{}, ErrDiscordNotLinked
	}
	return s.store.GetUser(ctx, du.UserID)
}
