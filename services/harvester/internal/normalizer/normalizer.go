// Package normalizer flattens raw listing entries into output records.
package normalizer

import (
	"strings"

	"jobharvest/services/harvester/internal/models"
)

const locationSeparator = ", "

// Normalizer maps a RawListing to a NormalizedRecord. It holds only the job
// URL prefix, fixed at construction, so Normalize is pure.
type Normalizer struct {
	jobURLPrefix string
}

func New(jobURLPrefix string) *Normalizer {
	return &Normalizer{jobURLPrefix: jobURLPrefix}
}

// Normalize never fails: missing fields become empty strings.
func (n *Normalizer) Normalize(raw models.RawListing) models.NormalizedRecord {
	jobID := JobID(raw.ExternalPath)

	location := strings.Join(raw.LocationNames(), locationSeparator)
	if location == "" && len(raw.Locations) == 0 {
		location = raw.LocationsText
	}

	return models.NormalizedRecord{
		Title:      raw.Title,
		Location:   location,
		PostedDate: raw.PostedOn,
		JobID:      jobID,
		URL:        n.jobURLPrefix + jobID,
	}
}

// NormalizeAll normalizes entries in order.
func (n *Normalizer) NormalizeAll(entries []models.RawListing) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, n.Normalize(e))
	}
	return out
}

// JobID returns the last "/"-separated segment of an externalPath.
func JobID(externalPath string) string {
	if i := strings.LastIndex(externalPath, "/"); i >= 0 {
		return externalPath[i+1:]
	}
	return externalPath
}
