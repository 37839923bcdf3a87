package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var jobNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

const insertHarvestedJob = `
	INSERT INTO harvested_jobs (
		id, job_id, title, location, posted_date, url, extra, harvested_at
	) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?
	)
`

// execer is the subset of clickhouse.Conn the sink needs.
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ClickHouseSink inserts each record into the harvested_jobs table. Rows
// are keyed by a UUID derived from the job id, so re-harvesting the same
// posting replaces it.
type ClickHouseSink struct {
	db     execer
	logger *zap.Logger
	now    func() time.Time
}

func NewClickHouseSink(db execer, logger *zap.Logger) *ClickHouseSink {
	return &ClickHouseSink{db: db, logger: logger, now: time.Now}
}

func (s *ClickHouseSink) Name() string {
	return "clickhouse"
}

func (s *ClickHouseSink) Persist(ctx context.Context, records []models.NormalizedRecord) (PersistResult, error) {
	ctx, span := tracer.Start(ctx, "ClickHouseSink.Persist")
	defer span.End()
	span.SetAttributes(telemetry.Int("records", len(records)))

	if len(records) == 0 {
		return nothingToSave(s.Name(), "harvested_jobs"), nil
	}

	harvestedAt := s.now().UTC()
	saved := 0
	for _, rec := range records {
		extra, err := json.Marshal(extraMap(rec.Extra))
		if err != nil {
			return PersistResult{Sink: s.Name(), Saved: saved}, errors.Persist("encoding extra fields", err)
		}
		if err := s.db.Exec(ctx, insertHarvestedJob,
			rowID(rec.JobID),
			rec.JobID,
			rec.Title,
			rec.Location,
			rec.PostedDate,
			rec.URL,
			string(extra),
			harvestedAt,
		); err != nil {
			span.RecordError(err)
			s.logger.Error("failed to insert harvested job", zap.String("job_id", rec.JobID), zap.Error(err))
			return PersistResult{Sink: s.Name(), Destination: "harvested_jobs", Saved: saved},
				errors.Persist(fmt.Sprintf("inserting job %q", rec.JobID), err)
		}
		saved++
	}

	return PersistResult{Sink: s.Name(), Destination: "harvested_jobs", Saved: saved}, nil
}

func rowID(jobID string) string {
	if jobID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(jobNamespace, []byte(jobID)).String()
}

func extraMap(fields []models.Field) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}
