package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lumenpress/internal/domain"
	"lumenpress/internal/service"
)

// AdminLookup es lo mínimo que necesita el gate de admin para revalidar
// contra la base.
type AdminLookup interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

const authClaimsKey = "auth_claims"

// Nombres de cookies del servicio.
const (
	SessionCookieName = "lp_session"
	BypassCookieName  = "lp_unlock"
)

// sessionToken lee la credencial: cookie primero, header Bearer después.
func sessionToken(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookieName); err == nil && v != "" {
		return v
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// SessionMiddleware resuelve la sesión si viene una credencial válida y
// guarda los claims en el contexto. Un token malformado o vencido se trata
// como "sin sesión", nunca corta el request.
func SessionMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionToken(c); token != "" {
			if claims, err := tokens.Parse(token); err == nil {
				c.Set(authClaimsKey, claims)
			}
		}
		c.Next()
	}
}

// RequireAuth corta con 401 cuando no hay sesión resuelta.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetAuthClaims(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin exige sesión con privilegio de admin. Si el claim embebido
// dice que no, se reconsulta la base: un token emitido antes de la
// promoción debe seguir sirviendo sin re-login. La reconsulta es
// obligatoria, no una optimización.
func RequireAdmin(users AdminLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if !claims.IsAdmin {
			user, err := users.GetByID(c.Request.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				} else {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify privileges"})
				}
				c.Abort()
				return
			}
			if !user.IsAdmin {
				c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
				c.Abort()
				return
			}
			claims.IsAdmin = true
			c.Set(authClaimsKey, claims)
		}
		c.Next()
	}
}

// GetAuthClaims obtiene los claims de sesión desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
