package nwb

import (
	"github.com/robert-malhotra/nwb-merge/hdf5"
)

// Stimulus is a series that can be registered under
// /stimulus/presentation.
type Stimulus interface {
	stimulusName() string
}

// TimeSeries is a sampled measurement with explicit timestamps.
type TimeSeries struct {
	Name        string
	Data        []float64
	Timestamps  []float64
	Unit        string
	Description string
	Comments    string
}

// OpticalSeries is a stimulus image stack. The pixel payload is carried
// as a raw dataset snapshot from the source file so it round-trips byte
// for byte regardless of its element type.
type OpticalSeries struct {
	Name        string
	Data        *hdf5.RawDataset
	Dimension   []int64
	FieldOfView []float64
	Format      string
	Description string
	Comments    string

	// Placeholder values: the legacy format does not record these, and
	// time is meaningless for a template stack.
	Distance     float64
	Orientation  string
	Unit         string
	StartingTime float64
	Rate         float64
}

// IndexSeries presents frames of a template stack at recorded times.
type IndexSeries struct {
	Name        string
	Data        []uint32
	Timestamps  []float64
	Description string
	Comments    string

	// IndexedTimeseries names the stimulus template this series indexes
	// into. Serialized as a link.
	IndexedTimeseries string
}

func (s *IndexSeries) stimulusName() string { return s.Name }

// IntervalSeries marks epochs with start/stop events. Used for stimuli
// that have no image stack.
type IntervalSeries struct {
	Name        string
	Data        []float64
	Timestamps  []float64
	Description string
	Comments    string
}

func (s *IntervalSeries) stimulusName() string { return s.Name }