package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"
	"autopost/infrastructure/logger"

	"golang.org/x/oauth2"
)

// ICredentialProvider resolves the platform credentials of a post owner.
type ICredentialProvider interface {
	Credentials(ctx context.Context, userID string) (model.Credentials, error)
}

type credentialProvider struct {
	users repository.IUser
	oauth *oauth2.Config
	now   func() time.Time
}

// NewCredentialProvider returns a provider that refreshes expired tokens when
// oauthConfig is set and the user has a refresh token.
func NewCredentialProvider(users repository.IUser, oauthConfig *oauth2.Config) ICredentialProvider {
	return &credentialProvider{users: users, oauth: oauthConfig, now: time.Now}
}

func (p *credentialProvider) Credentials(ctx context.Context, userID string) (model.Credentials, error) {
	user, err := p.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Credentials{}, fmt.Errorf("%w: user %s not found", errs.ErrOwnerNotEligible, userID)
	}
	if err != nil {
		return model.Credentials{}, err
	}
	conn := user.LinkedIn
	if !conn.Connected {
		return model.Credentials{}, fmt.Errorf("%w: linkedin not connected", errs.ErrOwnerNotEligible)
	}
	if conn.AccessToken == "" {
		return model.Credentials{}, fmt.Errorf("%w: no access token", errs.ErrOwnerNotEligible)
	}

	tok := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if conn.ExpiresAt != nil {
		tok.Expiry = *conn.ExpiresAt
	}
	if !tok.Expiry.IsZero() && !tok.Expiry.After(p.now()) {
		tok, err = p.refresh(ctx, user.ID, tok)
		if err != nil {
			return model.Credentials{}, err
		}
	}
	return model.Credentials{AccountURN: conn.AccountURN, Token: tok}, nil
}

func (p *credentialProvider) refresh(ctx context.Context, userID string, tok *oauth2.Token) (*oauth2.Token, error) {
	if p.oauth == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: access token expired", errs.ErrOwnerNotEligible)
	}
	fresh, err := p.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		if refreshRejected(err) {
			return nil, fmt.Errorf("%w: token refresh: %w", errs.ErrOwnerNotEligible, err)
		}
		// The claim stays; the post is retried once the lease runs out.
		return nil, fmt.Errorf("%w: token refresh: %w", errs.ErrTransientNetwork, err)
	}
	var expiresAt *time.Time
	if !fresh.Expiry.IsZero() {
		exp := fresh.Expiry.UTC()
		expiresAt = &exp
	}
	if err := p.users.UpdateLinkedInToken(ctx, userID, fresh.AccessToken, fresh.RefreshToken, expiresAt); err != nil {
		logger.GetLogger().WithField("user_id", userID).WithError(err).Warn("refreshed token not persisted")
	}
	return fresh, nil
}

// refreshRejected reports whether the token endpoint answered with a 4xx,
// i.e. the refresh token itself is no longer usable.
func refreshRejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	return re.Response.StatusCode >= http.StatusBadRequest && re.Response.StatusCode < http.StatusInternalServerError
}
