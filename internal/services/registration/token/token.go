// Package token issues and verifies the signed tokens used by registration:
// API access tokens, account activation links and campaign invitations.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/id"
)

// Kind distinguishes token purposes so one cannot be replayed as another.
type Kind string

const (
	KindAccess     Kind = "access"
	KindActivation Kind = "activation"
	KindInvitation Kind = "invitation"
)

const (
	// Issuer is stamped on every token.
	Issuer = "oilandrope"

	DefaultAccessTTL     = 24 * time.Hour
	DefaultActivationTTL = 72 * time.Hour
	DefaultInvitationTTL = 7 * 24 * time.Hour

	minSecretLength = 16
)

var (
	// ErrInvalid indicates a token that cannot be trusted.
	ErrInvalid = apperrors.New(apperrors.CodeTokenInvalid, "token is invalid")
	// ErrExpired indicates a well-formed token past its expiry.
	ErrExpired = apperrors.New(apperrors.CodeTokenExpired, "token is expired")
)

// Config defines how tokens are signed.
type Config struct {
	Secret        []byte
	AccessTTL     time.Duration
	ActivationTTL time.Duration
	InvitationTTL time.Duration
	Now           func() time.Time
	IDGenerator   func() (string, error)
}

// Claims captures validated token claims.
type Claims struct {
	Kind        Kind
	Subject     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	JWTID       string
	IsStaff     bool
	IsSuperuser bool
	CampaignID  string
	Email       string
}

// signedClaims is the wire form of Claims.
type signedClaims struct {
	jwt.RegisteredClaims
	Kind        Kind   `json:"kind"`
	IsStaff     bool   `json:"staff,omitempty"`
	IsSuperuser bool   `json:"superuser,omitempty"`
	CampaignID  string `json:"campaign_id,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Manager signs and verifies tokens with an HMAC key.
type Manager struct {
	cfg Config
}

// NewManager validates cfg and fills defaults.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = DefaultActivationTTL
	}
	if cfg.InvitationTTL <= 0 {
		cfg.InvitationTTL = DefaultInvitationTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	return &Manager{cfg: cfg}, nil
}

// IssueAccess signs an access token for a user.
func (m *Manager) IssueAccess(userID string, isStaff, isSuperuser bool) (string, error) {
	return m.sign(KindAccess, userID, m.cfg.AccessTTL, func(c *signedClaims) {
		c.IsStaff = isStaff
		c.IsSuperuser = isSuperuser
	})
}

// IssueActivation signs an account activation token.
func (m *Manager) IssueActivation(userID string) (string, error) {
	return m.sign(KindActivation, userID, m.cfg.ActivationTTL, nil)
}

// IssueInvitation signs a campaign invitation bound to an email address.
func (m *Manager) IssueInvitation(campaignID, email string) (string, error) {
	campaignID = strings.TrimSpace(campaignID)
	email = strings.ToLower(strings.TrimSpace(email))
	if campaignID == "" || email == "" {
		return "", errors.New("campaign id and email are required")
	}
	return m.sign(KindInvitation, email, m.cfg.InvitationTTL, func(c *signedClaims) {
		c.CampaignID = campaignID
		c.Email = email
	})
}

func (m *Manager) sign(kind Kind, subject string, ttl time.Duration, extra func(*signedClaims)) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	jti, err := m.cfg.IDGenerator()
	if err != nil {
		return "", err
	}
	now := m.cfg.Now().UTC()
	claims := signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		Kind: kind,
	}
	if extra != nil {
		extra(&claims)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
}

// Verify checks the signature, issuer, kind and expiry of raw.
func (m *Manager) Verify(raw string, kind Kind) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalid
	}

	var parsed signedClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if parsed.Issuer != Issuer || parsed.Kind != kind || parsed.Subject == "" {
		return Claims{}, ErrInvalid
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, ErrInvalid
	}
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(m.cfg.Now().UTC()) {
		return Claims{}, ErrExpired
	}
	if kind == KindInvitation && (parsed.CampaignID == "" || parsed.Email == "") {
		return Claims{}, ErrInvalid
	}

	claims := Claims{
		Kind:        parsed.Kind,
		Subject:     parsed.Subject,
		ExpiresAt:   exp,
		JWTID:       parsed.ID,
		IsStaff:     parsed.IsStaff,
		IsSuperuser: parsed.IsSuperuser,
		CampaignID:  parsed.CampaignID,
		Email:       parsed.Email,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpired
	}
	return apperrors.Wrap(apperrors.CodeTokenInvalid, "token is invalid", err)
}
