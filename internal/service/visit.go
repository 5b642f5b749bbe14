package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartlink/smartlink/internal/audit"
	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/metrics"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/routing"
)

// LinkResolver finds the live link behind a short code.
type LinkResolver interface {
	ResolveLink(ctx context.Context, shortCode string) (*model.Link, error)
}

// RecordPublisher hands audit records to the persistence pipeline without
// blocking the caller.
type RecordPublisher interface {
	PublishAsync(record *model.Click)
}

// VisitOutcome is everything decided about one visit.
type VisitOutcome struct {
	Link        *model.Link
	Verdict     detection.Verdict
	Decision    routing.Decision
	RedirectURL string
	Record      *model.Click
}

// VisitService classifies visits to a short link and routes them.
type VisitService struct {
	links     LinkResolver
	engine    *detection.Engine
	resolver  *routing.Resolver
	publisher RecordPublisher
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewVisitService creates a VisitService. publisher may be nil, in which
// case records are built but not persisted.
func NewVisitService(
	links LinkResolver,
	engine *detection.Engine,
	resolver *routing.Resolver,
	publisher RecordPublisher,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *VisitService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = detection.NewEngine()
	}
	return &VisitService{
		links:     links,
		engine:    engine,
		resolver:  resolver,
		publisher: publisher,
		metrics:   recorder,
		logger:    logger.With("component", "service.VisitService"),
		now:       time.Now,
	}
}

// Classify runs the detection engine on v.
func (s *VisitService) Classify(v detection.Visit) detection.Verdict {
	start := time.Now()
	verdict := s.engine.Classify(v)
	s.metrics.ObserveClassifyDuration(time.Since(start))
	return verdict
}

// Handle resolves shortCode, classifies the visit, routes it and emits the
// audit record. country is the raw CF-IPCountry value, if any.
func (s *VisitService) Handle(ctx context.Context, shortCode string, visit detection.Visit, country string) (*VisitOutcome, error) {
	link, err := s.links.ResolveLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	verdict := s.Classify(visit)
	decision := routing.Decide(routing.Input{
		Verdict:    verdict,
		LegacyBot:  detection.IsLegacyBot(visit.UserAgent),
		Suspicious: detection.IsSuspicious(visit.UserAgent),
		Link:       routing.ConfigFor(link),
	})

	record := audit.NewRecord(link, visit, verdict, decision, country, s.now())
	if s.publisher != nil {
		s.publisher.PublishAsync(record)
	}

	s.metrics.IncVisitClassified(string(decision.ClickType))
	if verdict.Platform != detection.PlatformUnknown {
		s.metrics.IncPlatformDetected(string(verdict.Platform))
	}

	s.logger.Info("visit_classified",
		"short_code", link.ShortCode,
		"click_type", decision.ClickType,
		"target_reached", decision.Target,
		"platform", record.Platform,
		"confidence", verdict.ConfidenceScore,
		"risk_level", verdict.RiskLevel,
		"detection_methods", verdict.DetectionMethods,
		"ip", record.IPAddress,
	)

	return &VisitOutcome{
		Link:        link,
		Verdict:     verdict,
		Decision:    decision,
		RedirectURL: s.resolver.URL(link, decision),
		Record:      record,
	}, nil
}
