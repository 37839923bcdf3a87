package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"
)

// CSVSink writes one CSV file per batch. The first record's columns become
// the header and the column order for every row.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) Path() string {
	return s.path
}

func (s *CSVSink) Persist(ctx context.Context, records []models.NormalizedRecord) (PersistResult, error) {
	_, span := tracer.Start(ctx, "CSVSink.Persist")
	defer span.End()
	span.SetAttributes(telemetry.String("csv.path", s.path), telemetry.Int("records", len(records)))

	if len(records) == 0 {
		return nothingToSave(s.Name(), s.path), nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			span.RecordError(err)
			return PersistResult{}, errors.Persist("creating output directory", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		span.RecordError(err)
		return PersistResult{}, errors.Persist(fmt.Sprintf("creating %s", s.path), err)
	}

	if err := writeRecords(csv.NewWriter(f), records); err != nil {
		_ = f.Close()
		span.RecordError(err)
		return PersistResult{}, errors.Persist(fmt.Sprintf("writing %s", s.path), err)
	}
	if err := f.Close(); err != nil {
		span.RecordError(err)
		return PersistResult{}, errors.Persist(fmt.Sprintf("closing %s", s.path), err)
	}

	return PersistResult{Sink: s.Name(), Destination: s.path, Saved: len(records)}, nil
}

func writeRecords(w *csv.Writer, records []models.NormalizedRecord) error {
	columns := records[0].Columns()
	if err := w.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i], _ = rec.Value(col)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
