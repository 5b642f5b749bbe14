package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartlink/smartlink/internal/cache"
	"github.com/smartlink/smartlink/internal/challenge"
	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/metrics"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/repository"
	"github.com/smartlink/smartlink/internal/routing"
	"github.com/smartlink/smartlink/internal/service"
)

const testBaseURL = "https://sl.test"

type memStore struct {
	mu    sync.Mutex
	links map[string]*model.Link // by short code
}

func newMemStore(links ...*model.Link) *memStore {
	s := &memStore{links: make(map[string]*model.Link)}
	for _, l := range links {
		s.links[l.ShortCode] = l
	}
	return s
}

func (s *memStore) CreateLink(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ShortCode]; ok {
		return repository.ErrAliasExists
	}
	copied := *link
	s.links[link.ShortCode] = &copied
	return nil
}

func (s *memStore) GetLinkByID(_ context.Context, id string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ID == id && l.DeletedAt == nil {
			copied := *l
			return &copied, nil
		}
	}
	return nil, repository.ErrLinkNotFound
}

func (s *memStore) GetLinkByShortCode(_ context.Context, code string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[code]
	if !ok || l.DeletedAt != nil {
		return nil, repository.ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *memStore) ListLinks(_ context.Context, filter repository.LinkFilter, _ string, _ int) ([]*model.Link, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Link, 0, len(s.links))
	for _, l := range s.links {
		if l.DeletedAt != nil {
			continue
		}
		if filter.Enabled != nil && l.Enabled != *filter.Enabled {
			continue
		}
		copied := *l
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortCode < out[j].ShortCode })
	return out, "", nil
}

func (s *memStore) UpdateLink(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *link
	s.links[link.ShortCode] = &copied
	return nil
}

func (s *memStore) DeleteLink(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ID == id && l.DeletedAt == nil {
			now := time.Now()
			l.DeletedAt = &now
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (s *memStore) ShortCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[code]
	return ok, nil
}

// noCache always misses, so every lookup reaches memStore.
type noCache struct{}

func (noCache) GetLink(context.Context, string) (*model.CachedLink, error) {
	return nil, cache.ErrCacheMiss
}
func (noCache) SetLink(context.Context, *model.Link) error { return nil }
func (noCache) DeleteLink(context.Context, string) error { return nil }
func (noCache) IsNegativelyCached(context.Context, string) (bool, error) { return false, nil }
func (noCache) SetNegativeCache(context.Context, string) error { return nil }

type memPublisher struct {
	mu      sync.Mutex
	records []*model.Click
}

func (p *memPublisher) PublishAsync(r *model.Click) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
}

func (p *memPublisher) all() []*model.Click {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Click(nil), p.records...)
}

type memChallengeStore struct {
	mu   sync.Mutex
	used map[string]bool
}

func (s *memChallengeStore) ConsumeChallenge(_ context.Context, token string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[token] {
		return false, nil
	}
	s.used[token] = true
	return true, nil
}

type memStats struct {
	daily     []*model.DailyLinkStats
	platforms []model.PlatformCount
}

func (m *memStats) GetDailyStats(context.Context, string, time.Time, time.Time) ([]*model.DailyLinkStats, error) {
	return m.daily, nil
}

func (m *memStats) GetPlatformBreakdown(context.Context, string, time.Time, time.Time) ([]model.PlatformCount, error) {
	return m.platforms, nil
}

func (m *memStats) GetDashboardStats(context.Context) (*model.DashboardStats, error) {
	return &model.DashboardStats{TotalLinks: 2, TotalClicks: 10, HumanClicks: 6, BotClicks: 3, SuspectClicks: 1, Platforms: m.platforms}, nil
}

type testEnv struct {
	router    http.Handler
	store     *memStore
	publisher *memPublisher
	recorder  *metrics.InMemoryRecorder
	issuer    *challenge.Issuer
}

func newTestEnv(t *testing.T, links ...*model.Link) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore(links...)
	pub := &memPublisher{}
	rec := metrics.NewInMemory()
	resolver := routing.NewResolver(testBaseURL)

	issuer, err := challenge.NewIssuer("handler-test-secret", 5*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	linkSvc := service.NewLinkService(store, noCache{}, testBaseURL, rec, logger)
	visitSvc := service.NewVisitService(linkSvc, detection.NewEngine(), resolver, pub, rec, logger)
	challengeSvc := service.NewChallengeService(linkSvc, issuer, resolver, &memChallengeStore{used: map[string]bool{}}, rec, logger)
	analyticsSvc := service.NewAnalyticsService(linkSvc, &memStats{
		daily:     []*model.DailyLinkStats{{Date: time.Now().UTC(), TotalClicks: 4, HumanClicks: 1, BotClicks: 3}},
		platforms: []model.PlatformCount{{Platform: "tiktok", Total: 3, Bots: 3}},
	})

	h := New("test")
	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	linkH := NewLinkHandler(linkSvc, logger)
	analytics := NewAnalyticsHandler(analyticsSvc, logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/links", linkH.Create)
		r.Get("/links", linkH.List)
		r.Get("/links/{id}", linkH.Get)
		r.Patch("/links/{id}", linkH.Update)
		r.Delete("/links/{id}", linkH.Delete)
		r.Get("/links/{id}/analytics", analytics.GetLinkAnalytics)
		r.Get("/stats", analytics.GetDashboard)
		r.Post("/classify", NewClassifyHandler(visitSvc).Classify)
	})

	safe := NewSafeHandler(linkSvc, logger)
	r.Get("/safe/{shortCode}", safe.Safe)
	r.Get("/safe/{shortCode}/{platform}", safe.Safe)

	ch := NewChallengeHandler(challengeSvc, logger)
	r.Get("/challenge/{shortCode}", ch.Page)
	r.Get("/challenge/{shortCode}/verify", ch.Verify)

	r.Get("/metrics", NewMetricsHandler(rec).Metrics)
	r.Get("/{shortCode}", NewRedirectHandler(visitSvc, logger).Redirect)

	return &testEnv{router: r, store: store, publisher: pub, recorder: rec, issuer: issuer}
}

func testLink(code string) *model.Link {
	now := time.Now().UTC()
	return &model.Link{
		ID:               "link-" + code,
		ShortCode:        code,
		TargetURL:        "https://target.example/" + code,
		Title:            "Spring sale",
		Description:      "Everything half price this week.",
		UseJSChallenge:   true,
		DirectFromTikTok: true,
		Enabled:          true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
