package server

import (
	"context"
	"errors"
	"strings"

	"github.com/louisbranch/oilandrope/internal/services/registration/token"
)

type wsAuthorizer interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
	IsChatMember(ctx context.Context, chatID string, userID string) (bool, error)
}

// storeAuthorizer verifies access tokens locally and checks membership in
// the shared store.
type storeAuthorizer struct {
	tokens *token.Manager
	store  Store
}

func newStoreAuthorizer(tokens *token.Manager, store Store) wsAuthorizer {
	if tokens == nil || store == nil {
		return nil
	}
	return &storeAuthorizer{tokens: tokens, store: store}
}

func (a *storeAuthorizer) Authenticate(ctx context.Context, accessToken string) (string, error) {
	if a == nil || a.tokens == nil {
		return "", errors.New("auth is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", errors.New("access token is required")
	}
	claims, err := a.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		return "", err
	}
	u, err := a.store.GetUser(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if !u.IsActive {
		return "", errors.New("user is inactive")
	}
	return u.ID, nil
}

func (a *storeAuthorizer) IsChatMember(ctx context.Context, chatID string, userID string) (bool, error) {
	if a == nil || a.store == nil {
		return false, errors.New("chat store is not configured")
	}
	chatID = strings.TrimSpace(chatID)
	userID = strings.TrimSpace(userID)
	if chatID == "" || userID == "" {
		return false, nil
	}
	return a.store.IsChatMember(ctx, chatID, userID)
}
