package models

import "golang.org/x/oauth2"

// Credential is the access/refresh token pair. Both values are opaque.
type Credential struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh,omitempty"`
}

// Authenticated reports whether an access token is present.
func (c Credential) Authenticated() bool {
	return c.AccessToken != ""
}

// Token converts the credential into a bearer [oauth2.Token].
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
}

// CredentialFromToken builds a credential from t, keeping fallbackRefresh when the
// token endpoint did not rotate the refresh token.
func CredentialFromToken(t *oauth2.Token, fallbackRefresh string) Credential {
	if t == nil {
		return Credential{}
	}
	refresh := t.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return Credential{AccessToken: t.AccessToken, RefreshToken: refresh}
}
