package configuration

import (
	"golang.org/x/oauth2"
)

// LinkedInOAuth2Config returns the OAuth client used to refresh member
// tokens, or nil when no client credentials are configured.
func LinkedInOAuth2Config(c LinkedIn) *oauth2.Config {
	if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     c.OAuth.ClientID,
		ClientSecret: c.OAuth.ClientSecret,
		RedirectURL:  c.OAuth.RedirectURI,
		Scopes:       []string{"openid", "profile", "w_member_social", "r_member_social"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:  c.OAuth.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
