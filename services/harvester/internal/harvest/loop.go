package harvest

import (
	"context"
	"time"

	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/config"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobharvest/harvester/harvest")

type PageFetcher interface {
	FetchPage(ctx context.Context, req models.PageRequest) (*models.PageResponse, error)
}

type RecordNormalizer interface {
	Normalize(raw models.RawListing) models.NormalizedRecord
}

type Options struct {
	Limit      int
	PageDelay  time.Duration
	MaxPages   int
	SearchText string
	Facets     map[string][]string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Limit:      cfg.PageLimit,
		PageDelay:  cfg.PageDelay,
		MaxPages:   cfg.MaxPages,
		SearchText: cfg.SearchText,
		Facets:     cfg.Facets,
	}
}

// Loop drives a PageFetcher across offsets until the listing is exhausted.
// It runs on the caller's goroutine with one outstanding request at a time.
type Loop struct {
	fetcher    PageFetcher
	normalizer RecordNormalizer
	logger     *zap.Logger
	opts       Options

	sleep func(time.Duration)
	now   func() time.Time
	newID func() string
}

func NewLoop(fetcher PageFetcher, normalizer RecordNormalizer, logger *zap.Logger, opts Options) *Loop {
	return &Loop{
		fetcher:    fetcher,
		normalizer: normalizer,
		logger:     logger,
		opts:       opts,
		sleep:      time.Sleep,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run harvests every page and returns the terminal session. A FETCH error
// ends the session as Aborted with a nil error so the partial result can
// still be persisted; any other fetcher error is returned alongside the
// aborted session.
func (l *Loop) Run(ctx context.Context) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Loop.Run")
	defer span.End()

	if l.opts.Limit <= 0 {
		return nil, errors.InvalidInput("page limit must be positive", nil)
	}

	session := newSession(l.newID(), l.opts.Limit, l.now())
	logger := l.logger.With(zap.String("session_id", session.ID))
	logger.Info("starting harvest", zap.Int("limit", session.Limit))

	for {
		session.State = StateFetching
		page, err := l.fetcher.FetchPage(ctx, models.PageRequest{
			Offset:     session.Offset,
			Limit:      session.Limit,
			SearchText: l.opts.SearchText,
			Facets:     l.opts.Facets,
		})
		if err != nil {
			span.RecordError(err)
			if errors.IsType(err, errors.ErrTypeFetch) {
				session.finish(StateAborted, StopFetchError, err, l.now())
				logger.Error("page fetch failed, keeping partial result",
					zap.Int("offset", session.Offset),
					zap.Int("records", session.Len()),
					zap.Error(err))
				l.annotate(span, session)
				return session, nil
			}
			session.finish(StateAborted, StopFatal, err, l.now())
			logger.Error("harvest aborted", zap.Int("offset", session.Offset), zap.Error(err))
			l.annotate(span, session)
			return session, err
		}

		session.State = StateAccumulating
		session.Pages++
		hadTotal := session.Total != nil
		session.observeTotal(page)
		if !hadTotal && session.Total != nil {
			logger.Info("found job postings to harvest", zap.Int("total", *session.Total))
		}
		for _, raw := range page.Entries {
			session.append(l.normalizer.Normalize(raw))
		}

		logger.Info("harvested page",
			zap.Int("offset", session.Offset),
			zap.Int("page_entries", len(page.Entries)),
			zap.Int("records_so_far", session.Len()))

		if reason, stop := l.shouldStop(session, page); stop {
			session.finish(StateDone, reason, nil, l.now())
			if reason == StopPageCap {
				logger.Warn("page cap reached before the listing was exhausted", zap.Int("max_pages", l.opts.MaxPages))
			}
			logger.Info("harvest complete",
				zap.String("reason", string(reason)),
				zap.Int("pages", session.Pages),
				zap.Int("records", session.Len()))
			l.annotate(span, session)
			return session, nil
		}

		session.Offset += session.Limit
		if l.opts.PageDelay > 0 {
			l.sleep(l.opts.PageDelay)
		}
	}
}

// shouldStop evaluates the termination checks in order: empty page, known
// total reached, short page, then the optional page cap.
func (l *Loop) shouldStop(s *Session, page *models.PageResponse) (StopReason, bool) {
	switch {
	case len(page.Entries) == 0:
		return StopEmptyPage, true
	case s.Total != nil && s.Len() >= *s.Total:
		return StopTotalReached, true
	case len(page.Entries) < s.Limit:
		return StopShortPage, true
	case l.opts.MaxPages > 0 && s.Pages >= l.opts.MaxPages:
		return StopPageCap, true
	}
	return "", false
}

func (l *Loop) annotate(span trace.Span, s *Session) {
	span.SetAttributes(
		telemetry.String("harvest.session_id", s.ID),
		telemetry.String("harvest.state", string(s.State)),
		telemetry.String("harvest.stop_reason", string(s.StopReason)),
		telemetry.Int("harvest.pages", s.Pages),
		telemetry.Int("harvest.records", s.Len()),
		telemetry.Bool("harvest.total_known", s.Total != nil),
	)
}
