// Package sink persists the records of a finished harvest.
package sink

import (
	"context"
	stderrors "errors"

	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobharvest/harvester/sink")

// PersistResult describes what a sink did with a batch.
type PersistResult struct {
	Sink          string
	Destination   string
	Saved         int
	NothingToSave bool
}

// ResultSink persists a harvested batch once. An empty batch is a no-op that
// reports NothingToSave; failures are PERSIST DomainErrors and are not retried.
type ResultSink interface {
	Name() string
	Persist(ctx context.Context, records []models.NormalizedRecord) (PersistResult, error)
}

func nothingToSave(name, destination string) PersistResult {
	return PersistResult{Sink: name, Destination: destination, NothingToSave: true}
}

// Fanout persists to a primary sink and then to each secondary sink. Every
// sink runs even if an earlier one failed; the primary's result is returned.
type Fanout struct {
	primary   ResultSink
	secondary []ResultSink
	logger    *zap.Logger
}

func NewFanout(logger *zap.Logger, primary ResultSink, secondary ...ResultSink) *Fanout {
	var kept []ResultSink
	for _, s := range secondary {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{primary: primary, secondary: kept, logger: logger}
}

func (f *Fanout) Name() string {
	return "fanout"
}

func (f *Fanout) Persist(ctx context.Context, records []models.NormalizedRecord) (PersistResult, error) {
	var errs []error

	result, err := f.primary.Persist(ctx, records)
	if err != nil {
		errs = append(errs, err)
	}
	f.report(result, err, f.primary.Name())

	for _, s := range f.secondary {
		res, err := s.Persist(ctx, records)
		if err != nil {
			errs = append(errs, err)
		}
		f.report(res, err, s.Name())
	}

	if len(errs) > 0 {
		return result, errors.Persist("one or more sinks failed", stderrors.Join(errs...))
	}
	return result, nil
}

func (f *Fanout) report(res PersistResult, err error, name string) {
	switch {
	case err != nil:
		f.logger.Error("sink failed", zap.String("sink", name), zap.Error(err))
	case res.NothingToSave:
		f.logger.Info("no jobs to save", zap.String("sink", name))
	default:
		f.logger.Info("saved jobs",
			zap.String("sink", name),
			zap.Int("count", res.Saved),
			zap.String("destination", res.Destination))
	}
}
