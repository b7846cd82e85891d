package database

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by readers when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Record is a single monitoring measurement as stored by the data-entry forms.
// ImageField keeps whatever the store handed back: a decoded JSON list, a
// JSON-encoded string, a comma-separated string or nil.
type Record struct {
	ID                  string     `json:"id"`
	ProjectID           string     `json:"project_id"`
	MonitoringType      string     `json:"monitoring_type"`
	Area                string     `json:"area"`
	Workstation         string     `json:"workstation"`
	MeasuredAt          *time.Time `json:"measured_at,omitempty"`
	ImageField          any        `json:"image_field"`
	PreferredImageIndex *int       `json:"preferred_image_index,omitempty"`
}

// Project is the header information printed on every report page.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Client   string `json:"client"`
	Location string `json:"location"`
}

// RecordFilter narrows ListRecords to one project and monitoring type.
type RecordFilter struct {
	ProjectID      string
	MonitoringType string // empty = all types
}

// RecordReader provides read-only access to monitoring records
type RecordReader interface {
	// ListRecords returns records ordered by measurement time, then ID
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	// GetRecord returns a single record or ErrNotFound
	GetRecord(ctx context.Context, id string) (*Record, error)
	// GetProject returns project header data or ErrNotFound
	GetProject(ctx context.Context, id string) (*Project, error)
}

// RecordWriter persists the per-record preferred image choice
type RecordWriter interface {
	RecordReader

	// SetPreferredImageIndex stores the image index the user last picked for a record
	SetPreferredImageIndex(ctx context.Context, recordID string, index int) error
}
