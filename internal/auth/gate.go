// internal/auth/gate.go
package auth

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/user/agentdeck/internal/types"
)

// CookieName is the HTTP-only cookie carrying the console credential.
const CookieName = "auth_token"

// tokenTTL is how long an issued credential cookie lives.
const tokenTTL = 7 * 24 * time.Hour

// Gate issues and checks the console's opaque bearer credential. Any caller
// is accepted on login and the gate only checks for the cookie's presence,
// which is appropriate for a development tool, not for production identity.
type Gate struct {
	secure bool
}

// NewGate creates a Gate. secure controls the cookie's Secure flag and
// should be true whenever the console is served over TLS.
func NewGate(secure bool) *Gate {
	return &Gate{secure: secure}
}

// Issue mints a fresh user id and credential and sets the cookie on the
// response.
func (g *Gate) Issue(w http.ResponseWriter) types.UserID {
	userID := types.NewUserID()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    uuid.New().String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenTTL.Seconds()),
	})
	return userID
}

// Clear expires the credential cookie.
func (g *Gate) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Present reports whether the request carries the credential cookie.
func (g *Gate) Present(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	return err == nil && c.Value != ""
}

// Require wraps an API handler and rejects requests without the credential.
func (g *Gate) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Present(r) {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
