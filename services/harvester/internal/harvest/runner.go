package harvest

import (
	"context"
	stderrors "errors"

	"jobharvest/services/harvester/internal/models"
	"jobharvest/services/harvester/internal/sink"

	"go.uber.org/zap"
)

type Enricher interface {
	Enrich(ctx context.Context, records []models.NormalizedRecord) []models.NormalizedRecord
}

// Runner runs one harvest end to end: loop, optional enrichment, then a
// single hand-off to the sink. The sink is called for aborted sessions too.
type Runner struct {
	loop     *Loop
	enricher Enricher
	sink     sink.ResultSink
	logger   *zap.Logger
}

// NewRunner builds a Runner. enricher may be nil.
func NewRunner(loop *Loop, enricher Enricher, resultSink sink.ResultSink, logger *zap.Logger) *Runner {
	return &Runner{loop: loop, enricher: enricher, sink: resultSink, logger: logger}
}

type Summary struct {
	Session *Session
	Result  sink.PersistResult
}

// Run returns a non-nil error only for fatal conditions: an unexpected
// fetcher error or a failed persist. A fetch failure mid-harvest is not one.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	session, loopErr := r.loop.Run(ctx)
	if session == nil {
		return Summary{}, loopErr
	}

	records := session.Records()
	if r.enricher != nil && len(records) > 0 {
		records = r.enricher.Enrich(ctx, records)
	}

	result, persistErr := r.sink.Persist(ctx, records)

	fields := []zap.Field{
		zap.String("session_id", session.ID),
		zap.String("state", string(session.State)),
		zap.String("reason", string(session.StopReason)),
		zap.Int("pages", session.Pages),
		zap.Int("records", session.Len()),
		zap.Duration("elapsed", session.FinishedAt.Sub(session.StartedAt)),
	}
	if session.Total != nil {
		fields = append(fields, zap.Int("total", *session.Total))
	}
	if result.NothingToSave {
		r.logger.Info("no jobs to save", fields...)
	}
	r.logger.Info("job harvest completed", fields...)

	return Summary{Session: session, Result: result}, stderrors.Join(loopErr, persistErr)
}
