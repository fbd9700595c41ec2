package session

import (
	"github.com/dgellow/oauth-front/internal/idp"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session credential.
type Claims struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"pic,omitempty"`
	jwt.RegisteredClaims
}

// FromIdentity copies the provider identity into session claims. Time
// fields are filled in by Codec.Issue.
func FromIdentity(identity idp.Identity) Claims {
	return Claims{
		Name:    identity.Name,
		Email:   identity.Email,
		Picture: identity.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: identity.Subject,
		},
	}
}
