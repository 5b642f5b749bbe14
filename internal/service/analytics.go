package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smartlink/smartlink/internal/model"
)

const (
	// DefaultAnalyticsDays is the window used when none is given.
	DefaultAnalyticsDays = 30
	// MaxAnalyticsRange caps the from/to window.
	MaxAnalyticsRange = 90 * 24 * time.Hour
)

// StatsStore reads classified click rollups.
type StatsStore interface {
	GetDailyStats(ctx context.Context, linkID string, from, to time.Time) ([]*model.DailyLinkStats, error)
	GetPlatformBreakdown(ctx context.Context, linkID string, from, to time.Time) ([]model.PlatformCount, error)
	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// AnalyticsService assembles per-link and account-wide click analytics.
type AnalyticsService struct {
	links *LinkService
	stats StatsStore
	now   func() time.Time
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(links *LinkService, stats StatsStore) *AnalyticsService {
	return &AnalyticsService{links: links, stats: stats, now: time.Now}
}

// Range is an inclusive UTC date window.
type Range struct {
	From time.Time
	To   time.Time
}

// NormalizeRange fills defaults and clamps a requested window: default last
// DefaultAnalyticsDays days, never in the future, at most MaxAnalyticsRange.
func NormalizeRange(from, to *time.Time, now time.Time) Range {
	today := truncateDay(now)

	r := Range{To: today, From: today.AddDate(0, 0, -(DefaultAnalyticsDays - 1))}
	if to != nil {
		r.To = truncateDay(*to)
	}
	if r.To.After(today) {
		r.To = today
	}
	if from != nil {
		r.From = truncateDay(*from)
	} else if to != nil {
		r.From = r.To.AddDate(0, 0, -(DefaultAnalyticsDays - 1))
	}
	if r.To.Sub(r.From) > MaxAnalyticsRange {
		r.From = r.To.Add(-MaxAnalyticsRange)
	}
	if r.From.After(r.To) {
		r.From = r.To
	}
	return r
}

// LinkAnalytics returns the classified click history of the link behind
// shortCode. Days without clicks are reported as zeros.
func (s *AnalyticsService) LinkAnalytics(ctx context.Context, shortCode string, window Range) (*model.LinkAnalytics, error) {
	link, err := s.links.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	daily, err := s.stats.GetDailyStats(ctx, link.ID, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("load daily stats: %w", err)
	}
	platforms, err := s.stats.GetPlatformBreakdown(ctx, link.ID, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("load platform breakdown: %w", err)
	}

	out := &model.LinkAnalytics{
		LinkID:      link.ID,
		ShortCode:   link.ShortCode,
		Daily:       fillDays(daily, window),
		Platforms:   platforms,
		GeneratedAt: s.now().UTC(),
	}
	out.Period.From = window.From.Format(time.DateOnly)
	out.Period.To = window.To.Format(time.DateOnly)

	for _, d := range out.Daily {
		out.Summary.TotalClicks += d.Total
		out.Summary.HumanClicks += d.Human
		out.Summary.BotClicks += d.Bot
		out.Summary.SuspectClicks += d.Suspect
	}
	out.Summary.BotRate = out.Summary.Rate()

	return out, nil
}

// Dashboard returns account-wide totals.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := s.stats.GetDashboardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dashboard stats: %w", err)
	}
	return stats, nil
}

// fillDays returns one row per day of window, oldest first.
func fillDays(stats []*model.DailyLinkStats, window Range) []model.DailyBreakdown {
	byDay := make(map[string]*model.DailyLinkStats, len(stats))
	for _, st := range stats {
		byDay[st.Date.UTC().Format(time.DateOnly)] = st
	}

	days := make([]model.DailyBreakdown, 0)
	for d := window.From; !d.After(window.To); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		row := model.DailyBreakdown{Date: key}
		if st, ok := byDay[key]; ok {
			row.Total = st.TotalClicks
			row.Human = st.HumanClicks
			row.Bot = st.BotClicks
			row.Suspect = st.SuspectClicks
		}
		days = append(days, row)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
