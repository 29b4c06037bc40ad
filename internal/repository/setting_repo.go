package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumenpress/internal/domain"
)

// SettingRepository define el contrato de persistencia para settings
// clave→valor. Solo hay semántica de upsert.
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]domain.Setting, error)
}

// PgSettingRepository implementa SettingRepository usando pgxpool.
type PgSettingRepository struct {
	pool *pgxpool.Pool
}

func NewPgSettingRepository(pool *pgxpool.Pool) *PgSettingRepository {
	return &PgSettingRepository{pool: pool}
}

func (r *PgSettingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	return value, err
}

func (r *PgSettingRepository) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}

func (r *PgSettingRepository) List(ctx context.Context) ([]domain.Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Setting, 0, 8)
	for rows.Next() {
		var s domain.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
