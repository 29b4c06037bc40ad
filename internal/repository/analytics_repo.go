package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumenpress/internal/domain"
)

// AnalyticsRepository persiste eventos append-only y arma el agregado para
// el dashboard. Los eventos nunca se actualizan.
type AnalyticsRepository interface {
	InsertPageView(ctx context.Context, view domain.PageView) error
	InsertClick(ctx context.Context, click domain.Click) error
	Stats(ctx context.Context, now time.Time) (domain.Stats, error)
}

// PgAnalyticsRepository implementa AnalyticsRepository usando pgxpool.
type PgAnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewPgAnalyticsRepository(pool *pgxpool.Pool) *PgAnalyticsRepository {
	return &PgAnalyticsRepository{pool: pool}
}

func (r *PgAnalyticsRepository) InsertPageView(ctx context.Context, view domain.PageView) error {
	const query = `
		INSERT INTO page_views (id, session_id, user_id, page, referrer, ip, user_agent, device, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		view.ID,
		view.SessionID,
		view.UserID,
		view.Page,
		view.Referrer,
		view.IP,
		view.UserAgent,
		view.Device,
		view.CreatedAt,
	)
	return err
}

func (r *PgAnalyticsRepository) InsertClick(ctx context.Context, click domain.Click) error {
	const query = `
		INSERT INTO clicks (id, session_id, page, element, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		click.ID,
		click.SessionID,
		click.Page,
		click.Element,
		click.CreatedAt,
	)
	return err
}

func (r *PgAnalyticsRepository) Stats(ctx context.Context, now time.Time) (domain.Stats, error) {
	var stats domain.Stats

	const counts = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*) FILTER (WHERE created_at >= $3),
			COUNT(DISTINCT session_id),
			COUNT(DISTINCT ip)
		FROM page_views
	`
	err := r.pool.QueryRow(ctx, counts,
		now.Add(-24*time.Hour),
		now.Add(-7*24*time.Hour),
		now.Add(-30*24*time.Hour),
	).Scan(
		&stats.TotalViews,
		&stats.ViewsLastDay,
		&stats.ViewsLastWeek,
		&stats.ViewsLastMonth,
		&stats.UniqueSessions,
		&stats.UniqueIPs,
	)
	if err != nil {
		return domain.Stats{}, err
	}

	if stats.TopPages, err = r.countedItems(ctx,
		`SELECT page, COUNT(*) FROM page_views GROUP BY page ORDER BY COUNT(*) DESC LIMIT 10`); err != nil {
		return domain.Stats{}, err
	}
	if stats.DeviceBreakdown, err = r.countedItems(ctx,
		`SELECT device, COUNT(*) FROM page_views GROUP BY device ORDER BY COUNT(*) DESC`); err != nil {
		return domain.Stats{}, err
	}
	if stats.TopReferrers, err = r.countedItems(ctx,
		`SELECT referrer, COUNT(*) FROM page_views WHERE referrer <> '' GROUP BY referrer ORDER BY COUNT(*) DESC LIMIT 10`); err != nil {
		return domain.Stats{}, err
	}
	if stats.TopClicks, err = r.countedItems(ctx,
		`SELECT element, COUNT(*) FROM clicks GROUP BY element ORDER BY COUNT(*) DESC LIMIT 10`); err != nil {
		return domain.Stats{}, err
	}

	stats.RecentViews, err = r.recentViews(ctx, 100)
	if err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

func (r *PgAnalyticsRepository) countedItems(ctx context.Context, query string) ([]domain.CountedItem, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CountedItem, 0, 10)
	for rows.Next() {
		var item domain.CountedItem
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *PgAnalyticsRepository) recentViews(ctx context.Context, limit int) ([]domain.PageView, error) {
	const query = `
		SELECT id, session_id, user_id, page, referrer, ip, user_agent, device, created_at
		FROM page_views
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PageView, 0, limit)
	for rows.Next() {
		var v domain.PageView
		if err := rows.Scan(&v.ID, &v.SessionID, &v.UserID, &v.Page, &v.Referrer, &v.IP, &v.UserAgent, &v.Device, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
