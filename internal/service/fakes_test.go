package service

import (
	"context"
	"sync"
	"time"

	"github.com/smartlink/smartlink/internal/cache"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/repository"
)

type fakeStore struct {
	mu      sync.Mutex
	links   map[string]*model.Link // by short code
	lookups int
}

func newFakeStore(links ...*model.Link) *fakeStore {
	s := &fakeStore{links: make(map[string]*model.Link)}
	for _, l := range links {
		s.links[l.ShortCode] = l
	}
	return s
}

func (s *fakeStore) CreateLink(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ShortCode]; ok {
		return repository.ErrAliasExists
	}
	s.links[link.ShortCode] = link
	return nil
}

func (s *fakeStore) GetLinkByID(_ context.Context, id string) (*model.Link, error) {
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

func (s *fakeStore) GetLinkByShortCode(_ context.Context, code string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	l, ok := s.links[code]
	if !ok || l.DeletedAt != nil {
		return nil, repository.ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *fakeStore) ListLinks(_ context.Context, _ repository.LinkFilter, cursor string, _ int) ([]*model.Link, string, error) {
	if cursor == "bad" {
		return nil, "", repository.ErrInvalidCursor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	return out, "", nil
}

func (s *fakeStore) UpdateLink(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ShortCode]; !ok {
		return repository.ErrLinkNotFound
	}
	copied := *link
	s.links[link.ShortCode] = &copied
	return nil
}

func (s *fakeStore) DeleteLink(_ context.Context, id string) error {
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

func (s *fakeStore) ShortCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[code]
	return ok, nil
}

type fakeCache struct {
	mu       sync.Mutex
	links    map[string]*model.CachedLink
	negative map[string]bool
	err      error // returned by GetLink when set
}

func newFakeCache() *fakeCache {
	return &fakeCache{links: make(map[string]*model.CachedLink), negative: make(map[string]bool)}
}

func (c *fakeCache) GetLink(_ context.Context, code string) (*model.CachedLink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	l, ok := c.links[code]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return l, nil
}

func (c *fakeCache) SetLink(_ context.Context, link *model.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[link.ShortCode] = link.ToCachedLink()
	delete(c.negative, link.ShortCode)
	return nil
}

func (c *fakeCache) DeleteLink(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, code)
	delete(c.negative, code)
	return nil
}

func (c *fakeCache) IsNegativelyCached(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negative[code], nil
}

func (c *fakeCache) SetNegativeCache(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[code] = true
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	records []*model.Click
}

func (p *fakePublisher) PublishAsync(r *model.Click) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
}

type fakeChallengeStore struct {
	used map[string]bool
}

func (f *fakeChallengeStore) ConsumeChallenge(_ context.Context, token string, _ time.Duration) (bool, error) {
	if f.used[token] {
		return false, nil
	}
	f.used[token] = true
	return true, nil
}

type fakeStats struct {
	daily     []*model.DailyLinkStats
	platforms []model.PlatformCount
	dash      *model.DashboardStats
}

func (f *fakeStats) GetDailyStats(context.Context, string, time.Time, time.Time) ([]*model.DailyLinkStats, error) {
	return f.daily, nil
}

func (f *fakeStats) GetPlatformBreakdown(context.Context, string, time.Time, time.Time) ([]model.PlatformCount, error) {
	return f.platforms, nil
}

func (f *fakeStats) GetDashboardStats(context.Context) (*model.DashboardStats, error) {
	return f.dash, nil
}

func testLink(code string) *model.Link {
	now := time.Now().UTC()
	return &model.Link{
		ID:               "link-" + code,
		ShortCode:        code,
		TargetURL:        "https://target.example/" + code,
		Title:            "Test",
		UseJSChallenge:   true,
		DirectFromTikTok: true,
		Enabled:          true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
