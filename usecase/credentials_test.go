package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"autopost/domain/errs"
	"autopost/domain/model"
)

func linkedUser(expiresAt *time.Time) *model.User {
	return &model.User{
		ID: "u1",
		LinkedIn: model.LinkedInConnection{
			Connected:    true,
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    expiresAt,
			AccountURN:   "urn:li:person:abc",
		},
	}
}

func TestCredentialProvider_Connected(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u1").Return(linkedUser(&exp), nil)

	creds, err := NewCredentialProvider(users, nil).Credentials(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:person:abc", creds.AccountURN)
	require.NotNil(t, creds.Token)
	assert.Equal(t, "access", creds.Token.AccessToken)
	assert.True(t, creds.Token.Valid())
}

func TestCredentialProvider_NotEligible(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	disconnected := linkedUser(nil)
	disconnected.LinkedIn.Connected = false
	tokenless := linkedUser(nil)
	tokenless.LinkedIn.AccessToken = ""
	expiredNoRefresh := linkedUser(&past)
	expiredNoRefresh.LinkedIn.RefreshToken = ""

	tests := []struct {
		name string
		user *model.User
		err  error
	}{
		{"missing user", nil, errs.ErrNotFound},
		{"disconnected", disconnected, nil},
		{"no token", tokenless, nil},
		{"expired without refresh", expiredNoRefresh, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserRepository)
			users.On("GetByID", mock.Anything, "u1").Return(tt.user, tt.err)

			_, err := NewCredentialProvider(users, nil).Credentials(context.Background(), "u1")
			assert.ErrorIs(t, err, errs.ErrOwnerNotEligible)
		})
	}
}

func TestCredentialProvider_StoreErrorPassesThrough(t *testing.T) {
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u1").Return(nil, errs.ErrStoreUnavailable)

	_, err := NewCredentialProvider(users, nil).Credentials(context.Background(), "u1")
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, errs.ErrOwnerNotEligible)
}

func TestCredentialProvider_RefreshesExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`))
	}))
	defer srv.Close()

	past := time.Now().Add(-time.Minute)
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u1").Return(linkedUser(&past), nil)
	users.On("UpdateLinkedInToken", mock.Anything, "u1", "fresh", "refresh-2", mock.AnythingOfType("*time.Time")).Return(nil).Once()

	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}
	creds, err := NewCredentialProvider(users, cfg).Credentials(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", creds.Token.AccessToken)
	users.AssertExpectations(t)
}

func TestCredentialProvider_RefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	past := time.Now().Add(-time.Minute)
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u1").Return(linkedUser(&past), nil)

	cfg := &oauth2.Config{ClientID: "c", ClientSecret: "s", Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}
	_, err := NewCredentialProvider(users, cfg).Credentials(context.Background(), "u1")
	assert.ErrorIs(t, err, errs.ErrOwnerNotEligible)
	users.AssertNotCalled(t, "UpdateLinkedInToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialProvider_RefreshUnavailableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	past := time.Now().Add(-time.Minute)
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u1").Return(linkedUser(&past), nil)
	cfg := &oauth2.Config{ClientID: "c", ClientSecret: "s", Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}
	provider := NewCredentialProvider(users, cfg)

	_, err := provider.Credentials(context.Background(), "u1")
	assert.ErrorIs(t, err, errs.ErrTransientNetwork)
	assert.NotErrorIs(t, err, errs.ErrOwnerNotEligible)

	// Unreachable token endpoint.
	srv.Close()
	_, err = provider.Credentials(context.Background(), "u1")
	assert.ErrorIs(t, err, errs.ErrTransientNetwork)
	assert.NotErrorIs(t, err, errs.ErrOwnerNotEligible)
	users.AssertNotCalled(t, "UpdateLinkedInToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
