package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumenpress/internal/domain"
	"lumenpress/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger        *zap.Logger
	authServ      *service.AuthService
	tokens        *service.TokenService
	secureCookies bool
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, tokens *service.TokenService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		logger:        logger,
		authServ:      authServ,
		tokens:        tokens,
		secureCookies: secureCookies,
	}
}

// SignUp maneja POST /auth/email/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authServ.RegisterLocal(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			h.logger.Error("signup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign up"})
		}
		return
	}
	h.respondWithSession(c, http.StatusCreated, user)
}

// SignIn maneja POST /auth/email/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signin request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authServ.AuthenticateLocal(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		default:
			h.logger.Error("signin failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		}
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

// GoogleLogin maneja POST /auth/google.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	h.externalLogin(c, domain.ProviderGoogle)
}

// AppleLogin maneja POST /auth/apple.
func (h *AuthHandler) AppleLogin(c *gin.Context) {
	h.externalLogin(c, domain.ProviderApple)
}

func (h *AuthHandler) externalLogin(c *gin.Context, provider string) {
	var req struct {
		IDToken       string `json:"id_token"`
		IdentityToken string `json:"identity_token"`
		Name          string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid oauth request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	assertion := req.IDToken
	if assertion == "" {
		assertion = req.IdentityToken
	}

	user, err := h.authServ.AuthenticateExternal(c.Request.Context(), provider, assertion, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAssertion):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrUnknownProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		default:
			h.logger.Error("oauth login failed", zap.Error(err), zap.String("provider", provider))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete oauth"})
		}
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

// Me maneja GET /auth/me. Lee el usuario fresco de la base: los claims son
// una foto al momento de emitir el token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	user, err := h.authServ.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		h.logger.Error("me lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// respondWithSession emite la credencial y la entrega por cookie http-only y
// en el body, para clientes sin cookies.
func (h *AuthHandler) respondWithSession(c *gin.Context, status int, user domain.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue session"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(h.tokens.TTL().Seconds()), "/", "", h.secureCookies, true)
	c.JSON(status, gin.H{"user": user, "token": token})
}
