package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lumenpress/internal/domain"
	"lumenpress/internal/service"
)

type mockAdminLookup struct {
	users map[string]domain.User
	hits  int
}

func (m *mockAdminLookup) GetByID(_ context.Context, id string) (domain.User, error) {
	m.hits++
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func setupAdminRouter(tokens *service.TokenService, lookup AdminLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware(tokens))
	r.GET("/admin/ping", RequireAdmin(lookup), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestRequireAdminWithoutSession(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	r := setupAdminRouter(tokens, &mockAdminLookup{users: map[string]domain.User{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAdminForbiddenForRegularUser(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	lookup := &mockAdminLookup{users: map[string]domain.User{
		"u1": {ID: "u1", Email: "user@x.com"},
	}}
	r := setupAdminRouter(tokens, lookup)

	token, err := tokens.Issue(domain.User{ID: "u1", Email: "user@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAdminStaleClaimRecheckedAgainstStore(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	// Token emitido antes de la promoción: el claim dice que no es admin,
	// pero la base ya sí.
	lookup := &mockAdminLookup{users: map[string]domain.User{
		"u1": {ID: "u1", Email: "user@x.com", IsAdmin: true},
	}}
	r := setupAdminRouter(tokens, lookup)

	token, err := tokens.Issue(domain.User{ID: "u1", Email: "user@x.com", IsAdmin: false})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after live recheck, got %d", w.Code)
	}
	if lookup.hits != 1 {
		t.Fatalf("expected exactly one store lookup, got %d", lookup.hits)
	}
}

func TestRequireAdminTrustsEmbeddedAdminClaim(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	lookup := &mockAdminLookup{users: map[string]domain.User{}}
	r := setupAdminRouter(tokens, lookup)

	token, err := tokens.Issue(domain.User{ID: "u1", Email: "admin@x.com", IsAdmin: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if lookup.hits != 0 {
		t.Fatalf("admin claim must not hit the store, got %d lookups", lookup.hits)
	}
}

func TestSessionFromCookie(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware(tokens))
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		claims, _ := GetAuthClaims(c)
		c.JSON(http.StatusOK, gin.H{"uid": claims.UserID})
	})

	token, err := tokens.Issue(domain.User{ID: "u1", Email: "user@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMalformedTokenTreatedAsNoSession(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware(tokens))
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
