// Package service provides business logic for the application.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/smartlink/smartlink/internal/cache"
	"github.com/smartlink/smartlink/internal/metrics"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/repository"
)

// Service errors.
var (
	ErrInvalidTarget  = errors.New("invalid target URL")
	ErrInvalidSafeURL = errors.New("invalid safe URL")
	ErrInvalidTitle   = errors.New("invalid title")
	ErrInvalidDesc    = errors.New("description too long")
	ErrInvalidAlias   = errors.New("invalid alias format")
	ErrAliasExists    = errors.New("alias already exists")
	ErrLinkNotFound   = errors.New("link not found")
	ErrLinkDisabled   = errors.New("link is disabled")
	ErrURLTooLong     = errors.New("URL too long")
	ErrInvalidCursor  = errors.New("invalid pagination cursor")
)

// Alias validation regex: 3-50 chars, alphanumeric, hyphen, underscore.
var aliasRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// reservedAliases collide with fixed routes.
var reservedAliases = map[string]struct{}{
	"api":       {},
	"safe":      {},
	"challenge": {},
	"healthz":   {},
	"readyz":    {},
	"metrics":   {},
}

const (
	maxURLLength    = 2048
	maxTitleLength  = 100
	maxDescLength   = 1000
	aliasLength     = 6
	aliasAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxAliasRetries = 5
)

// LinkStore is the persistence LinkService needs.
type LinkStore interface {
	CreateLink(ctx context.Context, link *model.Link) error
	GetLinkByID(ctx context.Context, id string) (*model.Link, error)
	GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error)
	ListLinks(ctx context.Context, filter repository.LinkFilter, cursor string, limit int) ([]*model.Link, string, error)
	UpdateLink(ctx context.Context, link *model.Link) error
	DeleteLink(ctx context.Context, id string) error
	ShortCodeExists(ctx context.Context, shortCode string) (bool, error)
}

// LinkCache is the read-through cache in front of LinkStore.
type LinkCache interface {
	GetLink(ctx context.Context, shortCode string) (*model.CachedLink, error)
	SetLink(ctx context.Context, link *model.Link) error
	DeleteLink(ctx context.Context, shortCode string) error
	IsNegativelyCached(ctx context.Context, shortCode string) (bool, error)
	SetNegativeCache(ctx context.Context, shortCode string) error
}

// LinkService handles link business logic.
type LinkService struct {
	repo    LinkStore
	cache   LinkCache
	baseURL string
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewLinkService creates a new LinkService.
func NewLinkService(repo LinkStore, linkCache LinkCache, baseURL string, recorder metrics.Recorder, logger *slog.Logger) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkService{
		repo:    repo,
		cache:   linkCache,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		metrics: recorder,
		logger:  logger.With("component", "service.LinkService"),
	}
}

// CreateLinkInput defines input for creating a link.
type CreateLinkInput struct {
	TargetURL        string
	SafeURL          string
	Title            string
	Description      string
	Alias            string
	UseJSChallenge   *bool // default true
	DirectFromTikTok *bool // default true
}

// CreateLink creates a new cloaked link.
func (s *LinkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateURL(input.TargetURL, ErrInvalidTarget); err != nil {
		return nil, err
	}
	if input.SafeURL != "" {
		if err := validateURL(input.SafeURL, ErrInvalidSafeURL); err != nil {
			return nil, err
		}
	}

	title, err := normalizeTitle(input.Title, input.TargetURL)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(input.Description) > maxDescLength {
		return nil, ErrInvalidDesc
	}

	alias := input.Alias
	if alias != "" {
		if err := validateAlias(alias); err != nil {
			return nil, err
		}
	} else {
		alias, err = s.generateUniqueAlias(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate alias: %w", err)
		}
	}

	now := time.Now().UTC()
	link := &model.Link{
		ID:               ulid.Make().String(),
		ShortCode:        alias,
		TargetURL:        input.TargetURL,
		SafeURL:          input.SafeURL,
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		UseJSChallenge:   boolOr(input.UseJSChallenge, true),
		DirectFromTikTok: boolOr(input.DirectFromTikTok, true),
		Enabled:          true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrAliasExists) {
			return nil, ErrAliasExists
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	s.metrics.IncLinkCreated()
	s.logger.Info("link_created", "link_id", link.ID, "short_code", link.ShortCode)

	return link, nil
}

// GetLink retrieves a link by ID.
func (s *LinkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.repo.GetLinkByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

// GetLinkByShortCode retrieves a link by short code, bypassing the cache.
func (s *LinkService) GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := s.repo.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

// ListLinksInput defines input for listing links.
type ListLinksInput struct {
	Cursor        string
	Limit         int
	Enabled       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ListLinksOutput defines output for listing links.
type ListLinksOutput struct {
	Links      []*model.Link
	NextCursor string
	HasMore    bool
}

// ListLinks retrieves a paginated list of links.
func (s *LinkService) ListLinks(ctx context.Context, input ListLinksInput) (*ListLinksOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	filter := repository.LinkFilter{
		Enabled:       input.Enabled,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
	}

	links, nextCursor, err := s.repo.ListLinks(ctx, filter, input.Cursor, input.Limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, err
	}

	return &ListLinksOutput{
		Links:      links,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

// UpdateLinkInput defines input for updating a link. Nil fields are left
// unchanged; an empty SafeURL clears the custom decoy.
type UpdateLinkInput struct {
	ID               string
	TargetURL        *string
	SafeURL          *string
	Title            *string
	Description      *string
	UseJSChallenge   *bool
	DirectFromTikTok *bool
	Enabled          *bool
}

// UpdateLink updates a link's mutable fields and evicts it from cache.
func (s *LinkService) UpdateLink(ctx context.Context, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.GetLink(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.TargetURL != nil {
		if err := validateURL(*input.TargetURL, ErrInvalidTarget); err != nil {
			return nil, err
		}
		link.TargetURL = *input.TargetURL
	}
	if input.SafeURL != nil {
		if *input.SafeURL != "" {
			if err := validateURL(*input.SafeURL, ErrInvalidSafeURL); err != nil {
				return nil, err
			}
		}
		link.SafeURL = *input.SafeURL
	}
	if input.Title != nil {
		title, err := normalizeTitle(*input.Title, link.TargetURL)
		if err != nil {
			return nil, err
		}
		link.Title = title
	}
	if input.Description != nil {
		if utf8.RuneCountInString(*input.Description) > maxDescLength {
			return nil, ErrInvalidDesc
		}
		link.Description = strings.TrimSpace(*input.Description)
	}
	if input.UseJSChallenge != nil {
		link.UseJSChallenge = *input.UseJSChallenge
	}
	if input.DirectFromTikTok != nil {
		link.DirectFromTikTok = *input.DirectFromTikTok
	}
	if input.Enabled != nil {
		link.Enabled = *input.Enabled
	}
	link.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	s.evict(ctx, link.ShortCode)
	return link, nil
}

// DeleteLink soft-deletes a link.
func (s *LinkService) DeleteLink(ctx context.Context, id string) error {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteLink(ctx, id); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrLinkNotFound
		}
		return err
	}

	s.evict(ctx, link.ShortCode)
	return nil
}

// ResolveLink finds the live link behind shortCode: cache, then negative
// cache, then Postgres with cache backfill. Redis failures fall through to
// the database.
func (s *LinkService) ResolveLink(ctx context.Context, shortCode string) (*model.Link, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	cached, err := s.cache.GetLink(ctx, shortCode)
	if err == nil {
		s.metrics.IncRedirectCacheHit()
		return checkResolvable(cached.ToLink(shortCode))
	}

	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.IncRedirectCacheMiss()
		if negative, _ := s.cache.IsNegativelyCached(ctx, shortCode); negative {
			return nil, ErrLinkNotFound
		}
	} else {
		s.logger.Warn("link cache unavailable", "short_code", shortCode, "error", err)
	}

	link, err := s.repo.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			_ = s.cache.SetNegativeCache(ctx, shortCode)
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	if err := s.cache.SetLink(ctx, link); err != nil {
		s.logger.Warn("link cache backfill failed", "short_code", shortCode, "error", err)
	}

	return checkResolvable(link)
}

// BaseURL returns the configured base URL.
func (s *LinkService) BaseURL() string {
	return s.baseURL
}

// ShortURL returns the public URL of a link.
func (s *LinkService) ShortURL(link *model.Link) string {
	return s.baseURL + "/" + link.ShortCode
}

func (s *LinkService) evict(ctx context.Context, shortCode string) {
	if err := s.cache.DeleteLink(ctx, shortCode); err != nil {
		s.logger.Warn("link cache eviction failed", "short_code", shortCode, "error", err)
	}
}

func checkResolvable(link *model.Link) (*model.Link, error) {
	switch link.Status() {
	case model.LinkStatusDeleted:
		return nil, ErrLinkNotFound
	case model.LinkStatusDisabled:
		return nil, ErrLinkDisabled
	}
	return link, nil
}

// validateURL accepts absolute http(s) URLs with a host.
func validateURL(raw string, invalid error) error {
	if raw == "" {
		return invalid
	}
	if len(raw) > maxURLLength {
		return ErrURLTooLong
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return invalid
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid
	}
	if parsed.Host == "" {
		return invalid
	}
	return nil
}

func validateAlias(alias string) error {
	if !aliasRegex.MatchString(alias) {
		return ErrInvalidAlias
	}
	if _, reserved := reservedAliases[strings.ToLower(alias)]; reserved {
		return ErrInvalidAlias
	}
	return nil
}

// normalizeTitle trims title and falls back to the target's host.
func normalizeTitle(title, target string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		if u, err := url.Parse(target); err == nil {
			title = u.Hostname()
		}
	}
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return "", ErrInvalidTitle
	}
	return title, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// generateUniqueAlias generates a unique alias with collision retry.
func (s *LinkService) generateUniqueAlias(ctx context.Context) (string, error) {
	for i := 0; i < maxAliasRetries; i++ {
		alias, err := generateRandomAlias()
		if err != nil {
			return "", err
		}
		if validateAlias(alias) != nil {
			continue
		}
		exists, err := s.repo.ShortCodeExists(ctx, alias)
		if err != nil {
			return "", err
		}
		if !exists {
			return alias, nil
		}
	}
	return "", errors.New("failed to generate unique alias after retries")
}

// generateRandomAlias generates a random alias using crypto/rand.
func generateRandomAlias() (string, error) {
	b := make([]byte, aliasLength)
	limit := big.NewInt(int64(len(aliasAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b[i] = aliasAlphabet[n.Int64()]
	}
	return string(b), nil
}
