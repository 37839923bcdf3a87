package sink

import (
	"context"
	"fmt"

	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"
)

// RecordPublisher is satisfied by messaging.Publisher.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, record models.NormalizedRecord) error
	Subject() string
}

// NATSSink publishes every record as its own message. It stops at the first
// failed publish and reports how many went out.
type NATSSink struct {
	publisher RecordPublisher
}

func NewNATSSink(publisher RecordPublisher) *NATSSink {
	return &NATSSink{publisher: publisher}
}

func (s *NATSSink) Name() string {
	return "nats"
}

func (s *NATSSink) Persist(ctx context.Context, records []models.NormalizedRecord) (PersistResult, error) {
	if len(records) == 0 {
		return nothingToSave(s.Name(), s.publisher.Subject()), nil
	}
	for i, rec := range records {
		if err := s.publisher.PublishRecord(ctx, rec); err != nil {
			return PersistResult{Sink: s.Name(), Destination: s.publisher.Subject(), Saved: i},
				errors.Persist(fmt.Sprintf("publishing job %q", rec.JobID), err)
		}
	}
	return PersistResult{Sink: s.Name(), Destination: s.publisher.Subject(), Saved: len(records)}, nil
}
