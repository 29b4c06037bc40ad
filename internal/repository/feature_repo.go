package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumenpress/internal/domain"
)

// FeaturePatch describe una actualización parcial sobre un feature flag.
type FeaturePatch struct {
	Label     *string
	Icon      *string
	TargetURL *string
	Enabled   *bool
}

// FeatureRepository define el contrato de persistencia para feature flags.
type FeatureRepository interface {
	List(ctx context.Context) ([]domain.Feature, error)
	Get(ctx context.Context, key string) (domain.Feature, error)
	Patch(ctx context.Context, key string, patch FeaturePatch) (domain.Feature, error)
	SeedDefaults(ctx context.Context, defaults []domain.Feature) error
}

const featureColumns = `key, label, icon, target_url, enabled, updated_at`

// PgFeatureRepository implementa FeatureRepository usando pgxpool.
type PgFeatureRepository struct {
	pool *pgxpool.Pool
}

func NewPgFeatureRepository(pool *pgxpool.Pool) *PgFeatureRepository {
	return &PgFeatureRepository{pool: pool}
}

func (r *PgFeatureRepository) List(ctx context.Context) ([]domain.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features ORDER BY key`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Feature, 0, 8)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PgFeatureRepository) Get(ctx context.Context, key string) (domain.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE key = $1`
	return scanFeature(r.pool.QueryRow(ctx, query, key))
}

func (r *PgFeatureRepository) Patch(ctx context.Context, key string, patch FeaturePatch) (domain.Feature, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{key}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Label != nil {
		add("label", *patch.Label)
	}
	if patch.Icon != nil {
		add("icon", *patch.Icon)
	}
	if patch.TargetURL != nil {
		add("target_url", *patch.TargetURL)
	}
	if patch.Enabled != nil {
		add("enabled", *patch.Enabled)
	}
	query := `UPDATE features SET ` + strings.Join(sets, ", ") + ` WHERE key = $1 RETURNING ` + featureColumns
	return scanFeature(r.pool.QueryRow(ctx, query, args...))
}

// SeedDefaults inserta el set por defecto sin pisar flags ya existentes.
func (r *PgFeatureRepository) SeedDefaults(ctx context.Context, defaults []domain.Feature) error {
	const query = `
		INSERT INTO features (key, label, icon, target_url, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (key) DO NOTHING
	`
	for _, f := range defaults {
		if _, err := r.pool.Exec(ctx, query, f.Key, f.Label, f.Icon, f.TargetURL, f.Enabled); err != nil {
			return err
		}
	}
	return nil
}

func scanFeature(row pgx.Row) (domain.Feature, error) {
	var f domain.Feature
	err := row.Scan(&f.Key, &f.Label, &f.Icon, &f.TargetURL, &f.Enabled, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Feature{}, err
	}
	return f, err
}
