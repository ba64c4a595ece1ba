// Package session assigns every client an opaque UUID session token kept in a
// cookie-identified server-side session.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"traitor/internal/config"
)

// TokenKey is the session key the token is stored under.
const TokenKey = "sessionToken"

const (
	tokenContextKey     = "session_token"
	sessionIDContextKey = "session_id"

	sessionIDBytes = 32
)

// Manager issues session tokens and binds them to the session cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager builds a Manager around the store.
func NewManager(store Store, cfg config.SessionConfig) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "session"
	}
	return &Manager{
		store:      store,
		cookieName: name,
		ttl:        time.Duration(cfg.TTLMinutes) * time.Minute,
		secure:     cfg.SecureCookie,
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Middleware makes sure the session carries a token before the handler runs.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, fresh, err := m.sessionID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var token string
		found := false
		if !fresh {
			token, found, err = m.store.Load(c.Request.Context(), sessionID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		if !found {
			token = uuid.NewString()
			if err := m.store.Save(c.Request.Context(), sessionID, token); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		if fresh {
			m.setCookie(c, sessionID)
		}
		c.Set(sessionIDContextKey, sessionID)
		c.Set(tokenContextKey, token)
		c.Next()
	}
}

// Regenerate replaces the session token with a new one and returns it.
func (m *Manager) Regenerate(c *gin.Context) (string, error) {
	sessionID, ok := stringFromContext(c, sessionIDContextKey)
	fresh := false
	if !ok {
		var err error
		sessionID, fresh, err = m.sessionID(c)
		if err != nil {
			return "", err
		}
	}
	token := uuid.NewString()
	if err := m.store.Save(c.Request.Context(), sessionID, token); err != nil {
		return "", err
	}
	if fresh {
		m.setCookie(c, sessionID)
	}
	c.Set(sessionIDContextKey, sessionID)
	c.Set(tokenContextKey, token)
	return token, nil
}

// Peek reports the current token of the session without creating one.
func (m *Manager) Peek(c *gin.Context) (string, bool, error) {
	if token, ok := TokenFromContext(c); ok {
		return token, true, nil
	}
	sessionID, err := c.Cookie(m.cookieName)
	if err != nil || !validSessionID(sessionID) {
		return "", false, nil
	}
	return m.store.Load(c.Request.Context(), sessionID)
}

// TokenFromContext retrieves the token resolved by the middleware.
func TokenFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, tokenContextKey)
}

func stringFromContext(c *gin.Context, key string) (string, bool) {
	val, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok && s != ""
}

// sessionID returns the id from the cookie, or a new one with fresh set.
func (m *Manager) sessionID(c *gin.Context) (string, bool, error) {
	if id, err := c.Cookie(m.cookieName); err == nil && validSessionID(id) {
		return id, false, nil
	}
	id, err := generateSessionID()
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (m *Manager) setCookie(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		MaxAge:   int(m.ttl.Seconds()),
		Path:     "/",
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validSessionID(id string) bool {
	if len(id) != sessionIDBytes*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
