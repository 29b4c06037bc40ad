package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumenpress/internal/domain"
)

// UserPatch describe una actualización parcial: solo los campos no nulos
// se traducen a la sentencia UPDATE.
type UserPatch struct {
	DisplayName        *string
	PictureURL         *string
	IsAdmin            *bool
	SubscriptionStatus *string
	HasBook            *bool
}

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpsertExternal(ctx context.Context, user domain.User) (domain.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	SetStripeCustomer(ctx context.Context, id, customerID string) error
	GrantBook(ctx context.Context, id string) error
	SetSubscription(ctx context.Context, id, status string) error
	SetSubscriptionByCustomer(ctx context.Context, customerID, status string) error
	List(ctx context.Context, limit int) ([]domain.User, error)
	Patch(ctx context.Context, id string, patch UserPatch) (domain.User, error)
}

const userColumns = `id, email, display_name, picture_url, auth_provider, auth_subject,
		password_hash, is_admin, subscription_status, has_book, stripe_customer_id,
		created_at, last_login_at`

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, display_name, picture_url, auth_provider, auth_subject,
			password_hash, is_admin, subscription_status, has_book, stripe_customer_id,
			created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PictureURL,
		user.AuthProvider,
		user.AuthSubject,
		user.PasswordHash,
		user.IsAdmin,
		user.SubscriptionStatus,
		user.HasBook,
		user.StripeCustomerID,
		user.CreatedAt,
		user.LastLoginAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// UpsertExternal inserta o refresca un usuario autenticado por un proveedor
// externo. El email es la clave: un segundo método de login con el mismo
// email actualiza el registro existente y nunca toca entitlements.
func (r *PgUserRepository) UpsertExternal(ctx context.Context, user domain.User) (domain.User, error) {
	query := `
		INSERT INTO users (id, email, display_name, picture_url, auth_provider, auth_subject,
			password_hash, is_admin, subscription_status, has_book, stripe_customer_id,
			created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (email) DO UPDATE SET
			display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE users.display_name END,
			picture_url = CASE WHEN EXCLUDED.picture_url <> '' THEN EXCLUDED.picture_url ELSE users.picture_url END,
			auth_provider = EXCLUDED.auth_provider,
			auth_subject = EXCLUDED.auth_subject,
			last_login_at = EXCLUDED.last_login_at
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PictureURL,
		user.AuthProvider,
		user.AuthSubject,
		user.PasswordHash,
		user.IsAdmin,
		user.SubscriptionStatus,
		user.HasBook,
		user.StripeCustomerID,
		user.CreatedAt,
		user.LastLoginAt,
	))
}

func (r *PgUserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *PgUserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, id, isAdmin)
	return err
}

func (r *PgUserRepository) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET stripe_customer_id = $2 WHERE id = $1`, id, customerID)
	return err
}

// GrantBook marca la compra única del libro. Es un SET absoluto: aplicarlo
// dos veces deja el mismo estado final.
func (r *PgUserRepository) GrantBook(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET has_book = TRUE WHERE id = $1`, id)
	return err
}

func (r *PgUserRepository) SetSubscription(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET subscription_status = $2 WHERE id = $1`, id, status)
	return err
}

// SetSubscriptionByCustomer aplica el estado de suscripción al usuario dueño
// de la referencia de cliente de Stripe. Un customer desconocido no es error:
// los webhooks pueden llegar para clientes creados fuera de esta base.
func (r *PgUserRepository) SetSubscriptionByCustomer(ctx context.Context, customerID, status string) error {
	if strings.TrimSpace(customerID) == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET subscription_status = $2 WHERE stripe_customer_id = $1`,
		customerID, status,
	)
	return err
}

func (r *PgUserRepository) List(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0, 64)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Patch traduce los campos presentes a una sentencia UPDATE parametrizada.
func (r *PgUserRepository) Patch(ctx context.Context, id string, patch UserPatch) (domain.User, error) {
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.PictureURL != nil {
		add("picture_url", *patch.PictureURL)
	}
	if patch.IsAdmin != nil {
		add("is_admin", *patch.IsAdmin)
	}
	if patch.SubscriptionStatus != nil {
		add("subscription_status", *patch.SubscriptionStatus)
	}
	if patch.HasBook != nil {
		add("has_book", *patch.HasBook)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PictureURL,
		&u.AuthProvider,
		&u.AuthSubject,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.SubscriptionStatus,
		&u.HasBook,
		&u.StripeCustomerID,
		&u.CreatedAt,
		&u.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}

// IsUniqueViolation reconoce el error de clave duplicada de Postgres.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
