package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"lumenpress/internal/domain"
	"lumenpress/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	failWith     error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	if m.failWith != nil {
		return domain.User{}, m.failWith
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) UpsertExternal(_ context.Context, user domain.User) (domain.User, error) {
	if m.failWith != nil {
		return domain.User{}, m.failWith
	}
	if id, ok := m.usersByEmail[user.Email]; ok {
		existing := m.usersByID[id]
		if user.DisplayName != "" {
			existing.DisplayName = user.DisplayName
		}
		if user.PictureURL != "" {
			existing.PictureURL = user.PictureURL
		}
		existing.AuthProvider = user.AuthProvider
		existing.AuthSubject = user.AuthSubject
		existing.LastLoginAt = user.LastLoginAt
		m.usersByID[id] = existing
		return existing, nil
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return user, nil
}

func (m *mockUserRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLoginAt = &at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsAdmin = isAdmin
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetStripeCustomer(_ context.Context, id, customerID string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.StripeCustomerID = customerID
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) GrantBook(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.HasBook = true
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetSubscription(_ context.Context, id, status string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.SubscriptionStatus = status
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) SetSubscriptionByCustomer(_ context.Context, customerID, status string) error {
	if customerID == "" {
		return nil
	}
	for id, user := range m.usersByID {
		if user.StripeCustomerID == customerID {
			user.SubscriptionStatus = status
			m.usersByID[id] = user
		}
	}
	return nil
}

func (m *mockUserRepo) List(_ context.Context, _ int) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.usersByID))
	for _, user := range m.usersByID {
		out = append(out, user)
	}
	return out, nil
}

func (m *mockUserRepo) Patch(_ context.Context, id string, patch repository.UserPatch) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	if patch.DisplayName != nil {
		user.DisplayName = *patch.DisplayName
	}
	if patch.PictureURL != nil {
		user.PictureURL = *patch.PictureURL
	}
	if patch.IsAdmin != nil {
		user.IsAdmin = *patch.IsAdmin
	}
	if patch.SubscriptionStatus != nil {
		user.SubscriptionStatus = *patch.SubscriptionStatus
	}
	if patch.HasBook != nil {
		user.HasBook = *patch.HasBook
	}
	m.usersByID[id] = user
	return user, nil
}

type staticVerifier struct {
	identity ExternalIdentity
	err      error
}

func (v staticVerifier) Verify(_ context.Context, _ string) (ExternalIdentity, error) {
	if v.err != nil {
		return ExternalIdentity{}, v.err
	}
	return v.identity, nil
}

func newTestAuthService(repo *mockUserRepo, adminEmail string, verifiers map[string]IdentityVerifier) *AuthService {
	return NewAuthService(zap.NewNop(), repo, verifiers, adminEmail, NewSignInRateLimiter(time.Minute, 100))
}

func TestRegisterLocalShortPassword(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), "", nil)

	_, err := svc.RegisterLocal(context.Background(), "a@x.com", "1234567", "Ana")
	if err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterLocalDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, "", nil)

	if _, err := svc.RegisterLocal(context.Background(), "a@x.com", "password123", "Ana"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.RegisterLocal(context.Background(), "a@x.com", "password123", "Ana")
	if err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if len(repo.usersByID) != 1 {
		t.Fatalf("expected single user, got %d", len(repo.usersByID))
	}
}

func TestRegisterLocalDefaultsToFreeTier(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), "", nil)

	user, err := svc.RegisterLocal(context.Background(), "a@x.com", "password123", "Ana")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.SubscriptionStatus != domain.SubscriptionFree {
		t.Fatalf("expected free tier, got %q", user.SubscriptionStatus)
	}
	if user.PasswordHash == "" || user.PasswordHash == "password123" {
		t.Fatalf("expected hashed password")
	}
}

func TestAuthenticateLocalNeverRevealsWhichFactorFailed(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, "", nil)

	if _, err := svc.RegisterLocal(context.Background(), "a@x.com", "password123", "Ana"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, errUnknown := svc.AuthenticateLocal(context.Background(), "nobody@x.com", "password123")
	_, errWrongPw := svc.AuthenticateLocal(context.Background(), "a@x.com", "wrongpassword")
	if errUnknown != ErrInvalidCredentials || errWrongPw != ErrInvalidCredentials {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v / %v", errUnknown, errWrongPw)
	}
}

func TestAuthenticateLocalSuccess(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, "", nil)

	created, err := svc.RegisterLocal(context.Background(), "a@x.com", "password123", "Ana")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	user, err := svc.AuthenticateLocal(context.Background(), "A@X.com", "password123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected same user id")
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login touched")
	}
}

func TestAuthenticateLocalPasswordWithWhitespaceRoundTrips(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, "", nil)

	// El mismo string exacto que se registró tiene que servir para entrar,
	// espacios incluidos.
	created, err := svc.RegisterLocal(context.Background(), "a@x.com", "pass word ", "Ana")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	user, err := svc.AuthenticateLocal(context.Background(), "a@x.com", "pass word ")
	if err != nil {
		t.Fatalf("authenticate with registered password: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected same user id")
	}
	if _, err := svc.AuthenticateLocal(context.Background(), "a@x.com", "pass word"); err != nil {
		t.Fatalf("authenticate with trimmed variant: %v", err)
	}
}

func TestAuthenticateLocalRateLimited(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, nil, "", NewSignInRateLimiter(time.Minute, 2))

	for i := 0; i < 2; i++ {
		if _, err := svc.AuthenticateLocal(context.Background(), "a@x.com", "whatever1"); err != ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := svc.AuthenticateLocal(context.Background(), "a@x.com", "whatever1"); err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAuthenticateExternalSameEmailTwice(t *testing.T) {
	repo := newMockUserRepo()
	verifiers := map[string]IdentityVerifier{
		domain.ProviderGoogle: staticVerifier{identity: ExternalIdentity{
			Provider: domain.ProviderGoogle,
			Subject:  "g-123",
			Email:    "a@x.com",
			Name:     "Ana",
		}},
	}
	svc := newTestAuthService(repo, "", verifiers)

	first, err := svc.AuthenticateExternal(context.Background(), domain.ProviderGoogle, "assertion", "")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.AuthenticateExternal(context.Background(), domain.ProviderGoogle, "assertion", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user id, got %s / %s", first.ID, second.ID)
	}
	if len(repo.usersByID) != 1 {
		t.Fatalf("expected single row, got %d", len(repo.usersByID))
	}
}

func TestAuthenticateExternalKeepsEntitlements(t *testing.T) {
	repo := newMockUserRepo()
	verifiers := map[string]IdentityVerifier{
		domain.ProviderApple: staticVerifier{identity: ExternalIdentity{
			Provider: domain.ProviderApple,
			Subject:  "ap-1",
			Email:    "a@x.com",
		}},
	}
	svc := newTestAuthService(repo, "", verifiers)

	user, err := svc.AuthenticateExternal(context.Background(), domain.ProviderApple, "assertion", "Ana")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if err := repo.GrantBook(context.Background(), user.ID); err != nil {
		t.Fatalf("grant book: %v", err)
	}
	if err := repo.SetSubscription(context.Background(), user.ID, domain.SubscriptionPremium); err != nil {
		t.Fatalf("set subscription: %v", err)
	}

	again, err := svc.AuthenticateExternal(context.Background(), domain.ProviderApple, "assertion", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if !again.HasBook || again.SubscriptionStatus != domain.SubscriptionPremium {
		t.Fatalf("entitlements must survive re-login: %+v", again)
	}
}

func TestBootstrapAdminPromotedBeforeToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, "Admin@X.com", nil)

	user, err := svc.RegisterLocal(context.Background(), "admin@x.com", "password123", "Root")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !user.IsAdmin {
		t.Fatalf("expected returned user flagged admin")
	}
	stored := repo.usersByID[user.ID]
	if !stored.IsAdmin {
		t.Fatalf("expected promotion persisted")
	}
}

func TestAuthenticateExternalUnknownProvider(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), "", nil)

	_, err := svc.AuthenticateExternal(context.Background(), "github", "assertion", "")
	if err != ErrUnknownProvider {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}
