package messaging

import (
	"context"
	"encoding/json"
	"time"

	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/config"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobharvest/harvester/messaging")

const DefaultSubject = "jobs.harvested"

type Publisher interface {
	PublishRecord(ctx context.Context, record models.NormalizedRecord) error
	Subject() string
	Close()
}

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

type natsPublisher struct {
	conn    conn
	subject string
	logger  *zap.Logger
}

func NewPublisher(logger *zap.Logger, config *config.Config) (Publisher, error) {
	opts := []nats.Option{
		nats.Name("jobharvest-harvester"),
		nats.Timeout(config.NATSConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	nc, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}

	return newPublisher(nc, config.NATSSubject, logger), nil
}

func newPublisher(c conn, subject string, logger *zap.Logger) *natsPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &natsPublisher{conn: c, subject: subject, logger: logger}
}

func (p *natsPublisher) Subject() string {
	return p.subject
}

func (p *natsPublisher) PublishRecord(ctx context.Context, record models.NormalizedRecord) error {
	_, span := tracer.Start(ctx, "PublishRecord")
	defer span.End()

	data, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling job record", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", p.subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(p.subject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish job record",
			zap.String("job_id", record.JobID),
			zap.Error(err))
		return errors.Internal("publishing to NATS", err)
	}

	p.logger.Debug("published job record",
		zap.String("job_id", record.JobID),
		zap.String("subject", p.subject))
	return nil
}

// Close flushes buffered messages before closing the connection.
func (p *natsPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("failed to flush NATS connection", zap.Error(err))
	}
	p.conn.Close()
}
