package campaign

import (
	"net/mail"
	"net/url"
	"sort"
	"strings"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
)

// JoinPath is the site path that accepts invitation tokens.
const JoinPath = "/roleplay/campaign/join/"

var (
	// ErrNoEmails indicates an invitation request without valid recipients.
	ErrNoEmails = apperrors.New(apperrors.CodeInvitationNoEmails, "at least one valid email is required")
	// ErrEmailMismatch indicates a token accepted by a user it was not sent to.
	ErrEmailMismatch = apperrors.New(apperrors.CodeInvitationEmailMismatch, "invitation was sent to another email")
)

// Invitation is one invitation ready to be mailed.
type Invitation struct {
	CampaignID string
	Email      string
	Token      string
	Link       string
}

// NormalizeEmails lowercases, deduplicates and sorts the recipient list.
// Unparsable addresses are returned separately.
func NormalizeEmails(emails []string) (valid []string, invalid []string, err error) {
	seen := map[string]struct{}{}
	for _, raw := range emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}
		parsed, parseErr := mail.ParseAddress(email)
		if parseErr != nil || parsed.Address != email {
			invalid = append(invalid, raw)
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		valid = append(valid, email)
	}
	if len(valid) == 0 {
		return nil, invalid, ErrNoEmails
	}
	sort.Strings(valid)
	return valid, invalid, nil
}

// InvitationLink builds the accept link for token under siteURL.
func InvitationLink(siteURL, token string) string {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	return base + JoinPath + "?" + url.Values{"token": {token}}.Encode()
}

// CheckInvitee ensures the token email belongs to the accepting user.
func CheckInvitee(tokenEmail, userEmail string) error {
	if !strings.EqualFold(strings.TrimSpace(tokenEmail), strings.TrimSpace(userEmail)) {
		return ErrEmailMismatch
	}
	return nil
}
