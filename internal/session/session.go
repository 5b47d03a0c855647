// Package session resolves the signed-in identity used for claims.
package session

import (
	"os"
	"strings"

	"github.com/datacite/akita/internal/model"
)

// Environment variables that override configured session values
const (
	EnvToken = "AKITA_SESSION_TOKEN"
	EnvOrcid = "AKITA_ORCID"
	EnvName  = "AKITA_NAME"
)

// User is a signed-in identity
type User struct {
	Orcid string
	Name  string
	Token string
}

// Provider looks up the signed-in identity. A nil user means nobody is
// signed in, which is not an error.
type Provider interface {
	Current() *User
}

// Static always returns the same identity
type Static struct {
	user *User
}

// NewStatic returns a provider for u; u may be nil
func NewStatic(u *User) *Static {
	return &Static{user: u}
}

// Current returns the configured identity
func (s *Static) Current() *User {
	return s.user
}

// FromConfig builds a provider from configuration, letting the environment
// override the token and identity. A session needs a token to be present.
func FromConfig(cfg model.SessionConfig) *Static {
	token := firstNonEmpty(os.Getenv(EnvToken), cfg.Token)
	if token == "" {
		return NewStatic(nil)
	}

	return NewStatic(&User{
		Token: token,
		Orcid: normalizeOrcid(firstNonEmpty(os.Getenv(EnvOrcid), cfg.Orcid)),
		Name:  firstNonEmpty(os.Getenv(EnvName), cfg.Name),
	})
}

// Token returns the user's token, or "" when signed out
func Token(p Provider) string {
	if p == nil {
		return ""
	}
	if u := p.Current(); u != nil {
		return u.Token
	}
	return ""
}

func normalizeOrcid(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "https://orcid.org/")
	id = strings.TrimPrefix(id, "http://orcid.org/")
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
