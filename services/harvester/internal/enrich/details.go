// Package enrich attaches job detail fields to harvested records.
package enrich

import (
	"context"
	"time"

	"jobharvest/services/harvester/internal/models"

	"go.uber.org/zap"
)

const (
	FieldTimeType  = "time_type"
	FieldJobReqID  = "job_req_id"
	FieldStartDate = "start_date"
)

type DetailFetcher interface {
	FetchDetail(ctx context.Context, jobID string) (*models.JobDetail, error)
	CachedDetail(ctx context.Context, jobID string) (*models.JobDetail, bool)
}

// DetailEnricher looks up each record's detail document sequentially. A
// failed lookup leaves that record unchanged. The delay separates network
// lookups only; cached details are served without pausing.
type DetailEnricher struct {
	fetcher DetailFetcher
	logger  *zap.Logger
	delay   time.Duration
	sleep   func(time.Duration)
}

func NewDetailEnricher(fetcher DetailFetcher, logger *zap.Logger, delay time.Duration) *DetailEnricher {
	return &DetailEnricher{fetcher: fetcher, logger: logger, delay: delay, sleep: time.Sleep}
}

// Enrich returns a new slice; the input is not modified.
func (e *DetailEnricher) Enrich(ctx context.Context, records []models.NormalizedRecord) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(records))
	enriched, failed, cached := 0, 0, 0
	requested := false

	for i, rec := range records {
		out[i] = rec
		if rec.JobID == "" {
			continue
		}

		detail, ok := e.fetcher.CachedDetail(ctx, rec.JobID)
		if ok {
			cached++
		} else {
			if requested && e.delay > 0 {
				e.sleep(e.delay)
			}
			requested = true

			var err error
			detail, err = e.fetcher.FetchDetail(ctx, rec.JobID)
			if err != nil {
				failed++
				e.logger.Warn("failed to fetch job details", zap.String("job_id", rec.JobID), zap.Error(err))
				continue
			}
		}
		out[i] = rec.WithExtra(
			models.Field{Key: FieldTimeType, Value: detail.TimeType},
			models.Field{Key: FieldJobReqID, Value: detail.JobReqID},
			models.Field{Key: FieldStartDate, Value: detail.StartDate},
		)
		enriched++
	}

	e.logger.Info("enriched job records",
		zap.Int("enriched", enriched),
		zap.Int("failed", failed),
		zap.Int("cached", cached),
		zap.Int("total", len(records)))
	return out
}
