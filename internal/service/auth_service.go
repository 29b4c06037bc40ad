package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lumenpress/internal/domain"
	"lumenpress/internal/repository"
)

// AuthService coordina registro, login y el upsert de identidades externas.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	verifiers  map[string]IdentityVerifier
	adminEmail string
	limiter    SignInRateLimiter
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrUnknownProvider    = errors.New("unknown auth provider")
	ErrRateLimited        = errors.New("rate limited")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	minPasswordLength = 8
	bcryptCost        = 12
)

func NewAuthService(logger *zap.Logger, users repository.UserRepository, verifiers map[string]IdentityVerifier, adminEmail string, limiter SignInRateLimiter) *AuthService {
	if limiter == nil {
		limiter = NewSignInRateLimiter(10*time.Minute, 10)
	}
	return &AuthService{
		logger:     logger,
		users:      users,
		verifiers:  verifiers,
		adminEmail: normalizeEmail(adminEmail),
		limiter:    limiter,
	}
}

// RegisterLocal crea un usuario con email y password. El hash es bcrypt con
// costo deliberadamente alto para resistir fuerza bruta offline.
func (s *AuthService) RegisterLocal(ctx context.Context, emailAddr, password, displayName string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	// El password se recorta igual que en el login: si el hash y la
	// comparación vieran bytes distintos, la cuenta quedaría inaccesible.
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:                 uuid.NewString(),
		Email:              emailAddr,
		DisplayName:        strings.TrimSpace(displayName),
		AuthProvider:       domain.ProviderEmail,
		PasswordHash:       string(hashBytes),
		SubscriptionStatus: domain.SubscriptionFree,
		CreatedAt:          now,
		LastLoginAt:        &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return s.promoteBootstrapAdmin(ctx, user)
}

// AuthenticateLocal valida email y password. Todo fallo devuelve el mismo
// error: nunca se revela cuál de los dos factores falló.
func (s *AuthService) AuthenticateLocal(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return domain.User{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		return domain.User{}, err
	}
	user.LastLoginAt = &now
	return s.promoteBootstrapAdmin(ctx, user)
}

// AuthenticateExternal verifica la aserción del proveedor y hace upsert del
// usuario con el email como clave. Un segundo método de login con el mismo
// email refresca nombre/foto/último login y no toca entitlements.
func (s *AuthService) AuthenticateExternal(ctx context.Context, provider, assertion, fallbackName string) (domain.User, error) {
	verifier, ok := s.verifiers[provider]
	if !ok || verifier == nil {
		return domain.User{}, ErrUnknownProvider
	}
	identity, err := verifier.Verify(ctx, assertion)
	if err != nil {
		return domain.User{}, ErrInvalidAssertion
	}

	name := identity.Name
	if name == "" {
		name = strings.TrimSpace(fallbackName)
	}
	now := time.Now().UTC()
	user, err := s.users.UpsertExternal(ctx, domain.User{
		ID:                 uuid.NewString(),
		Email:              normalizeEmail(identity.Email),
		DisplayName:        name,
		PictureURL:         identity.Picture,
		AuthProvider:       identity.Provider,
		AuthSubject:        identity.Subject,
		SubscriptionStatus: domain.SubscriptionFree,
		CreatedAt:          now,
		LastLoginAt:        &now,
	})
	if err != nil {
		return domain.User{}, err
	}
	return s.promoteBootstrapAdmin(ctx, user)
}

// GetUser devuelve el usuario por id, para /auth/me y revalidaciones.
func (s *AuthService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// promoteBootstrapAdmin asegura que el admin designado por entorno quede con
// el flag puesto antes de emitir la credencial, desde su primer login.
func (s *AuthService) promoteBootstrapAdmin(ctx context.Context, user domain.User) (domain.User, error) {
	if s.adminEmail == "" || user.IsAdmin || normalizeEmail(user.Email) != s.adminEmail {
		return user, nil
	}
	if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
		return domain.User{}, err
	}
	if s.logger != nil {
		s.logger.Info("bootstrap admin promoted", zap.String("user_id", user.ID))
	}
	user.IsAdmin = true
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
