package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartlink/smartlink/internal/challenge"
	"github.com/smartlink/smartlink/internal/metrics"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/routing"
)

// ErrChallengeReused is returned when a solved token is presented again.
var ErrChallengeReused = errors.New("challenge already used")

// ChallengeStore remembers consumed challenge tokens.
type ChallengeStore interface {
	ConsumeChallenge(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// ChallengeResult is the outcome of a verification attempt.
type ChallengeResult struct {
	Passed      bool
	RedirectURL string
	Err         error // why the attempt failed, nil when Passed
}

// ChallengeService issues and checks the interactive challenge shown to
// suspicious visitors.
type ChallengeService struct {
	links    LinkResolver
	issuer   *challenge.Issuer
	resolver *routing.Resolver
	store    ChallengeStore
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewChallengeService creates a ChallengeService. store may be nil, which
// allows a token to be replayed until it expires.
func NewChallengeService(
	links LinkResolver,
	issuer *challenge.Issuer,
	resolver *routing.Resolver,
	store ChallengeStore,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *ChallengeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChallengeService{
		links:    links,
		issuer:   issuer,
		resolver: resolver,
		store:    store,
		metrics:  recorder,
		logger:   logger.With("component", "service.ChallengeService"),
		now:      time.Now,
	}
}

// Start issues a challenge for the link behind shortCode.
func (s *ChallengeService) Start(ctx context.Context, shortCode string) (*model.Link, challenge.Challenge, error) {
	link, err := s.links.ResolveLink(ctx, shortCode)
	if err != nil {
		return nil, challenge.Challenge{}, err
	}

	c, err := s.issuer.Issue(link.ShortCode, s.now())
	if err != nil {
		return nil, challenge.Challenge{}, fmt.Errorf("issue challenge: %w", err)
	}
	return link, c, nil
}

// Verify checks a solved challenge. Passing visitors are sent to the target,
// everyone else to the link's safe page.
func (s *ChallengeService) Verify(ctx context.Context, shortCode, token, proof string) (*ChallengeResult, error) {
	link, err := s.links.ResolveLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	safe := s.FallbackURL(link)

	fail := func(reason error) *ChallengeResult {
		s.metrics.IncChallengeVerified("failed")
		s.logger.Info("challenge_failed", "short_code", link.ShortCode, "reason", reason.Error())
		return &ChallengeResult{RedirectURL: safe, Err: reason}
	}

	if err := s.issuer.Verify(link.ShortCode, token, proof, s.now()); err != nil {
		return fail(err), nil
	}

	if s.store != nil {
		first, err := s.store.ConsumeChallenge(ctx, token, s.issuer.TTL())
		if err != nil {
			s.logger.Warn("challenge store unavailable", "error", err)
		} else if !first {
			return fail(ErrChallengeReused), nil
		}
	}

	s.metrics.IncChallengeVerified("passed")
	s.logger.Info("challenge_passed", "short_code", link.ShortCode)
	return &ChallengeResult{Passed: true, RedirectURL: link.TargetURL}, nil
}

// FallbackURL is where visitors that fail or cannot run the challenge go:
// the link's custom decoy, else its generic safe page.
func (s *ChallengeService) FallbackURL(link *model.Link) string {
	if link.HasSafeURL() {
		return link.SafeURL
	}
	return s.resolver.SafeURL(link)
}
