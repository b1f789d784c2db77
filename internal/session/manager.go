package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/splax/umd/pkg/jwt"
)

// ErrInvalidToken indicates a session cookie or bearer token failed verification.
var ErrInvalidToken = errors.New("session: invalid token")

// Manager issues and verifies the signed session cookie.
type Manager struct {
	secret     string
	cookieName string
	secure     bool
	ttl        time.Duration
}

// NewManager validates inputs and returns a Manager. A non-positive ttl makes
// browser-session cookies whose tokens never expire.
func NewManager(secret, cookieName string, secure bool, ttl time.Duration) (Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return Manager{}, errors.New("session secret is required")
	}
	if strings.TrimSpace(cookieName) == "" {
		return Manager{}, errors.New("session cookie name is required")
	}
	return Manager{secret: secret, cookieName: cookieName, secure: secure, ttl: ttl}, nil
}

// CookieName returns the configured cookie name.
func (m Manager) CookieName() string {
	return m.cookieName
}

// Token signs a session id for use as cookie value or bearer token.
func (m Manager) Token(sessionID string) (string, error) {
	return jwt.GenerateToken(sessionID, m.secret, m.ttl)
}

// MakeCookie wraps a signed token for sessionID in an HTTP-only cookie.
func (m Manager) MakeCookie(sessionID string) (*http.Cookie, error) {
	token, err := m.Token(sessionID)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// ExpireCookie returns a cookie that clears the session in the browser.
func (m Manager) ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionIDFromRequest reads the session id from the Authorization bearer
// token, falling back to the cookie. It returns http.ErrNoCookie when the
// request carries neither.
func (m Manager) SessionIDFromRequest(r *http.Request) (string, error) {
	token := ""
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrInvalidToken
		}
		token = parts[1]
	} else {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil {
			return "", err
		}
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" {
		return "", ErrInvalidToken
	}
	claims, err := jwt.Parse(token, m.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}
