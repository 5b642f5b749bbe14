package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/smartlink/smartlink/internal/model"
)

// ClickRepository stores audit records and their daily rollups.
type ClickRepository struct {
	repo *Repository
}

// NewClickRepository creates a new ClickRepository.
func NewClickRepository(repo *Repository) *ClickRepository {
	return &ClickRepository{repo: repo}
}

// BulkInsert inserts click records. Redelivered records are skipped via the
// event_id unique index.
func (r *ClickRepository) BulkInsert(ctx context.Context, records []*model.Click) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO click_events (
			id, event_id, link_id, short_code, ip_address, user_agent, referrer,
			click_type, target_reached, platform, confidence_score, risk_level,
			detection_methods, country_code, clicked_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		methods := rec.DetectionMethods
		if methods == nil {
			methods = []string{}
		}
		batch.Queue(query,
			rec.ID,
			rec.EventID,
			rec.LinkID,
			rec.ShortCode,
			nullableString(rec.IPAddress),
			nullableString(rec.UserAgent),
			nullableString(rec.Referrer),
			string(rec.ClickType),
			string(rec.TargetReached),
			rec.Platform,
			rec.ConfidenceScore,
			rec.RiskLevel,
			pq.Array(methods),
			nullableString(rec.CountryCode),
			rec.ClickedAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert record %d: %w", i, err)
		}
	}

	return nil
}

// UpdateDailyStats recomputes the daily rollup of every link/day touched by
// records. Recomputing from click_events keeps retries idempotent.
func (r *ClickRepository) UpdateDailyStats(ctx context.Context, records []*model.Click) error {
	if len(records) == 0 {
		return nil
	}

	for _, key := range uniqueDailyKeys(records) {
		acc, err := r.recalculateDailyStat(ctx, key.linkID, key.date)
		if err != nil {
			return fmt.Errorf("recalculate daily stat %s:%s: %w", key.linkID, key.date.Format(time.DateOnly), err)
		}
		if err := r.upsertDailyStat(ctx, acc); err != nil {
			return fmt.Errorf("upsert daily stat %s:%s: %w", key.linkID, key.date.Format(time.DateOnly), err)
		}
	}

	for _, linkID := range uniqueLinkIDs(records) {
		if err := r.refreshClickCount(ctx, linkID); err != nil {
			return fmt.Errorf("refresh click count %s: %w", linkID, err)
		}
	}

	return nil
}

type dailyStatsKey struct {
	linkID string
	date   time.Time
}

func uniqueDailyKeys(records []*model.Click) []dailyStatsKey {
	seen := make(map[dailyStatsKey]struct{})
	keys := make([]dailyStatsKey, 0)
	for _, rec := range records {
		key := dailyStatsKey{linkID: rec.LinkID, date: utcDay(rec.ClickedAt)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func uniqueLinkIDs(records []*model.Click) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, rec := range records {
		if _, ok := seen[rec.LinkID]; ok {
			continue
		}
		seen[rec.LinkID] = struct{}{}
		ids = append(ids, rec.LinkID)
	}
	return ids
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// classifiedClick is the slice of a click_events row the rollup needs.
type classifiedClick struct {
	clickType model.ClickType
	platform  string
}

func accumulateDailyStats(clicks []classifiedClick) *model.DailyLinkStats {
	stat := &model.DailyLinkStats{PlatformBreakdown: make(map[string]int64)}

	for _, c := range clicks {
		stat.TotalClicks++
		switch c.clickType {
		case model.ClickHuman:
			stat.HumanClicks++
		case model.ClickBot:
			stat.BotClicks++
		case model.ClickSuspect:
			stat.SuspectClicks++
		}

		platform := c.platform
		if platform == "" {
			platform = "unknown"
		}
		stat.PlatformBreakdown[platform]++
	}

	return stat
}

func (r *ClickRepository) recalculateDailyStat(ctx context.Context, linkID string, day time.Time) (*model.DailyLinkStats, error) {
	query := `
		SELECT click_type, COALESCE(platform, '')
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2 AND clicked_at < $3
	`

	rows, err := r.repo.pool.Query(ctx, query, linkID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("query click events: %w", err)
	}
	defer rows.Close()

	clicks := make([]classifiedClick, 0)
	for rows.Next() {
		var clickType, platform string
		if err := rows.Scan(&clickType, &platform); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		clicks = append(clicks, classifiedClick{clickType: model.ClickType(clickType), platform: platform})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate click events: %w", err)
	}

	stat := accumulateDailyStats(clicks)
	stat.LinkID = linkID
	stat.Date = day
	return stat, nil
}

func (r *ClickRepository) upsertDailyStat(ctx context.Context, stat *model.DailyLinkStats) error {
	platformJSON, err := json.Marshal(stat.PlatformBreakdown)
	if err != nil {
		return fmt.Errorf("marshal platform breakdown: %w", err)
	}

	query := `
		INSERT INTO daily_link_stats (
			link_id, date, total_clicks, human_clicks, bot_clicks, suspect_clicks,
			platform_breakdown, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (link_id, date) DO UPDATE SET
			total_clicks = EXCLUDED.total_clicks,
			human_clicks = EXCLUDED.human_clicks,
			bot_clicks = EXCLUDED.bot_clicks,
			suspect_clicks = EXCLUDED.suspect_clicks,
			platform_breakdown = EXCLUDED.platform_breakdown,
			updated_at = NOW()
	`

	_, err = r.repo.pool.Exec(ctx, query,
		stat.LinkID,
		stat.Date,
		stat.TotalClicks,
		stat.HumanClicks,
		stat.BotClicks,
		stat.SuspectClicks,
		platformJSON,
	)
	return err
}

func (r *ClickRepository) refreshClickCount(ctx context.Context, linkID string) error {
	query := `
		UPDATE links
		SET click_count = (SELECT COUNT(*) FROM click_events WHERE link_id = $1)
		WHERE id = $1
	`
	_, err := r.repo.pool.Exec(ctx, query, linkID)
	return err
}

// GetDailyStats returns the rollups for a link between from and to
// (inclusive dates), oldest first.
func (r *ClickRepository) GetDailyStats(ctx context.Context, linkID string, from, to time.Time) ([]*model.DailyLinkStats, error) {
	query := `
		SELECT link_id, date, total_clicks, human_clicks, bot_clicks, suspect_clicks,
			platform_breakdown, updated_at
		FROM daily_link_stats
		WHERE link_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := r.repo.pool.Query(ctx, query, linkID, utcDay(from), utcDay(to))
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.DailyLinkStats
	for rows.Next() {
		var (
			stat         model.DailyLinkStats
			platformJSON []byte
		)
		if err := rows.Scan(
			&stat.LinkID,
			&stat.Date,
			&stat.TotalClicks,
			&stat.HumanClicks,
			&stat.BotClicks,
			&stat.SuspectClicks,
			&platformJSON,
			&stat.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		if len(platformJSON) > 0 {
			if err := json.Unmarshal(platformJSON, &stat.PlatformBreakdown); err != nil {
				return nil, fmt.Errorf("decode platform breakdown: %w", err)
			}
		}
		stats = append(stats, &stat)
	}

	return stats, rows.Err()
}

// GetPlatformBreakdown counts a link's clicks per platform since from.
func (r *ClickRepository) GetPlatformBreakdown(ctx context.Context, linkID string, from, to time.Time) ([]model.PlatformCount, error) {
	query := `
		SELECT COALESCE(platform, 'unknown'), COUNT(*),
			COUNT(*) FILTER (WHERE click_type = 'bot')
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2 AND clicked_at < $3
		GROUP BY 1
	`

	rows, err := r.repo.pool.Query(ctx, query, linkID, utcDay(from), utcDay(to).Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("query platform breakdown: %w", err)
	}
	defer rows.Close()

	return scanPlatformCounts(rows)
}

// GetDashboardStats returns totals across all links.
func (r *ClickRepository) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{}

	totals := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE click_type = 'human'),
			COUNT(*) FILTER (WHERE click_type = 'bot'),
			COUNT(*) FILTER (WHERE click_type = 'suspect')
		FROM click_events
	`
	if err := r.repo.pool.QueryRow(ctx, totals).Scan(
		&stats.TotalClicks,
		&stats.HumanClicks,
		&stats.BotClicks,
		&stats.SuspectClicks,
	); err != nil {
		return nil, fmt.Errorf("query click totals: %w", err)
	}

	links, err := r.repo.CountLinks(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalLinks = links

	rows, err := r.repo.pool.Query(ctx, `
		SELECT COALESCE(platform, 'unknown'), COUNT(*),
			COUNT(*) FILTER (WHERE click_type = 'bot')
		FROM click_events
		GROUP BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query platform totals: %w", err)
	}
	defer rows.Close()

	stats.Platforms, err = scanPlatformCounts(rows)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func scanPlatformCounts(rows pgx.Rows) ([]model.PlatformCount, error) {
	counts := make([]model.PlatformCount, 0)
	for rows.Next() {
		var pc model.PlatformCount
		if err := rows.Scan(&pc.Platform, &pc.Total, &pc.Bots); err != nil {
			return nil, fmt.Errorf("scan platform count: %w", err)
		}
		counts = append(counts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platform counts: %w", err)
	}
	sortPlatformCounts(counts)
	return counts, nil
}

// sortPlatformCounts orders by volume, then name.
func sortPlatformCounts(counts []model.PlatformCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Total != counts[j].Total {
			return counts[i].Total > counts[j].Total
		}
		return counts[i].Platform < counts[j].Platform
	})
}
