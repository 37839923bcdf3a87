package models

import "encoding/json"

const (
	ColumnTitle      = "title"
	ColumnLocation   = "location"
	ColumnPostedDate = "posted_date"
	ColumnJobID      = "job_id"
	ColumnURL        = "url"
)

// BaseColumns is the fixed column order of a normalized record.
var BaseColumns = []string{ColumnTitle, ColumnLocation, ColumnPostedDate, ColumnJobID, ColumnURL}

// Field is an optional named value attached to a record after normalization.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NormalizedRecord is the flat output shape of one listing.
type NormalizedRecord struct {
	Title      string  `json:"title"`
	Location   string  `json:"location"`
	PostedDate string  `json:"posted_date"`
	JobID      string  `json:"job_id"`
	URL        string  `json:"url"`
	Extra      []Field `json:"extra,omitempty"`
}

// Columns returns the record's keys: the base columns followed by any extra
// fields in the order they were attached.
func (r NormalizedRecord) Columns() []string {
	cols := make([]string, 0, len(BaseColumns)+len(r.Extra))
	cols = append(cols, BaseColumns...)
	for _, f := range r.Extra {
		cols = append(cols, f.Key)
	}
	return cols
}

// Value looks up a column. ok is false when the record has no such key.
func (r NormalizedRecord) Value(column string) (value string, ok bool) {
	switch column {
	case ColumnTitle:
		return r.Title, true
	case ColumnLocation:
		return r.Location, true
	case ColumnPostedDate:
		return r.PostedDate, true
	case ColumnJobID:
		return r.JobID, true
	case ColumnURL:
		return r.URL, true
	}
	for _, f := range r.Extra {
		if f.Key == column {
			return f.Value, true
		}
	}
	return "", false
}

// WithExtra returns a copy of r with the given fields appended.
func (r NormalizedRecord) WithExtra(fields ...Field) NormalizedRecord {
	extra := make([]Field, 0, len(r.Extra)+len(fields))
	extra = append(extra, r.Extra...)
	extra = append(extra, fields...)
	r.Extra = extra
	return r
}

func (r NormalizedRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

func (r *NormalizedRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, r)
}
