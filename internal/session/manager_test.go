package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"traitor/internal/config"
)

func TestMiddlewareAssignsTokenOnce(t *testing.T) {
	router, _ := newTestRouter(t, NewMemoryStore(time.Hour))

	first := doRequest(t, router, "/whoami", nil)
	cookie := sessionCookie(t, first)
	token := first.Body.String()
	if _, err := uuid.Parse(token); err != nil {
		t.Fatalf("expected uuid token, got %q", token)
	}

	second := doRequest(t, router, "/whoami", cookie)
	if second.Body.String() != token {
		t.Fatalf("expected same token %q, got %q", token, second.Body.String())
	}
	if len(second.Result().Cookies()) != 0 {
		t.Fatalf("existing session must not be re-issued a cookie")
	}
}

func TestRegenerateReplacesToken(t *testing.T) {
	router, _ := newTestRouter(t, NewMemoryStore(time.Hour))

	first := doRequest(t, router, "/whoami", nil)
	cookie := sessionCookie(t, first)
	before := first.Body.String()

	regen := doRequest(t, router, "/regen", cookie)
	after := regen.Body.String()
	if after == before {
		t.Fatalf("expected a new token after regenerate")
	}
	check := doRequest(t, router, "/whoami", cookie)
	if check.Body.String() != after {
		t.Fatalf("regenerated token not persisted: %q vs %q", check.Body.String(), after)
	}
}

func TestPeekDoesNotCreateToken(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	router, _ := newTestRouter(t, store)

	rec := doRequest(t, router, "/peek", nil)
	if rec.Body.String() != "none" {
		t.Fatalf("expected no token, got %q", rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("peek must not issue a cookie")
	}
	if len(store.entries) != 0 {
		t.Fatalf("peek must not store a token")
	}

	first := doRequest(t, router, "/whoami", nil)
	cookie := sessionCookie(t, first)
	rec = doRequest(t, router, "/peek", cookie)
	if rec.Body.String() != first.Body.String() {
		t.Fatalf("peek returned %q, want %q", rec.Body.String(), first.Body.String())
	}
}

func TestMiddlewareIgnoresForgedCookie(t *testing.T) {
	router, _ := newTestRouter(t, NewMemoryStore(time.Hour))
	forged := &http.Cookie{Name: "session", Value: "../../etc"}

	rec := doRequest(t, router, "/whoami", forged)
	newCookie := sessionCookie(t, rec)
	if newCookie.Value == forged.Value {
		t.Fatalf("forged session id must be replaced")
	}
}

func TestMiddlewareStoreFailure(t *testing.T) {
	router, _ := newTestRouter(t, failingStore{})
	rec := doRequest(t, router, "/whoami", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d", rec.Code)
	}
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()
	if err := store.Save(ctx, "sid", "tok"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if tok, ok, _ := store.Load(ctx, "sid"); !ok || tok != "tok" {
		t.Fatalf("expected stored token, got %q %v", tok, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Load(ctx, "sid"); ok {
		t.Fatalf("expected entry to expire")
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func (failingStore) Save(context.Context, string, string) error {
	return errors.New("store down")
}

func newTestRouter(t *testing.T, store Store) (*gin.Engine, *Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mgr := NewManager(store, config.SessionConfig{CookieName: "session", TTLMinutes: 60})
	router := gin.New()
	router.GET("/peek", func(c *gin.Context) {
		token, ok, err := mgr.Peek(c)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			c.String(http.StatusOK, "none")
			return
		}
		c.String(http.StatusOK, token)
	})
	tracked := router.Group("/", mgr.Middleware())
	tracked.GET("/whoami", func(c *gin.Context) {
		token, _ := TokenFromContext(c)
		c.String(http.StatusOK, token)
	})
	tracked.GET("/regen", func(c *gin.Context) {
		token, err := mgr.Regenerate(c)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.String(http.StatusOK, token)
	})
	return router, mgr
}

func doRequest(t *testing.T, router *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session" {
			return ck
		}
	}
	t.Fatalf("expected session cookie in response")
	return nil
}
