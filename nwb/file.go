package nwb

import (
	"fmt"
	"time"
)

// File is an in-memory NWB file under construction. The four identity
// fields (identifier, session description, session start time, create
// date history) are fixed at construction time, mirroring the schema's
// rule that they cannot change once a file exists.
type File struct {
	identifier         string
	sessionDescription string
	sessionStartTime   time.Time
	fileCreateDate     []time.Time

	// General metadata, optional.
	Institution string
	SessionID   string
	Subject     *Subject

	devices       []string
	modules       []*ProcessingModule
	templates     []*OpticalSeries
	presentations []Stimulus
}

// NewFile creates a file shell with its immutable identity fields.
// createDates is the file creation history, oldest first, and must have
// at least one entry.
func NewFile(identifier, sessionDescription string, sessionStartTime time.Time, createDates []time.Time) (*File, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}
	if sessionDescription == "" {
		return nil, fmt.Errorf("session description cannot be empty")
	}
	if sessionStartTime.IsZero() {
		return nil, fmt.Errorf("session start time cannot be zero")
	}
	if len(createDates) == 0 {
		return nil, fmt.Errorf("create date history cannot be empty")
	}
	dates := make([]time.Time, len(createDates))
	copy(dates, createDates)
	return &File{
		identifier:         identifier,
		sessionDescription: sessionDescription,
		sessionStartTime:   sessionStartTime,
		fileCreateDate:     dates,
	}, nil
}

// Identifier returns the file identifier.
func (f *File) Identifier() string { return f.identifier }

// SessionDescription returns the session description.
func (f *File) SessionDescription() string { return f.sessionDescription }

// SessionStartTime returns the session start time.
func (f *File) SessionStartTime() time.Time { return f.sessionStartTime }

// FileCreateDate returns the creation history, oldest first.
func (f *File) FileCreateDate() []time.Time { return f.fileCreateDate }

// CreateDevice registers a recording device by name.
func (f *File) CreateDevice(name string) error {
	if name == "" {
		return fmt.Errorf("device name cannot be empty")
	}
	for _, d := range f.devices {
		if d == name {
			return fmt.Errorf("device %q: %w", name, ErrDuplicate)
		}
	}
	f.devices = append(f.devices, name)
	return nil
}

// Devices returns the registered device names.
func (f *File) Devices() []string { return f.devices }

// CreateProcessingModule adds a named processing module.
func (f *File) CreateProcessingModule(name, description string) (*ProcessingModule, error) {
	if name == "" {
		return nil, fmt.Errorf("module name cannot be empty")
	}
	for _, m := range f.modules {
		if m.Name == name {
			return nil, fmt.Errorf("processing module %q: %w", name, ErrDuplicate)
		}
	}
	mod := &ProcessingModule{Name: name, Description: description}
	f.modules = append(f.modules, mod)
	return mod, nil
}

// AddStimulusTemplate registers a stimulus template series.
func (f *File) AddStimulusTemplate(t *OpticalSeries) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("stimulus template needs a name")
	}
	for _, existing := range f.templates {
		if existing.Name == t.Name {
			return fmt.Errorf("stimulus template %q: %w", t.Name, ErrDuplicate)
		}
	}
	f.templates = append(f.templates, t)
	return nil
}

// AddStimulus registers a presented stimulus series.
func (f *File) AddStimulus(s Stimulus) error {
	if s == nil || s.stimulusName() == "" {
		return fmt.Errorf("stimulus needs a name")
	}
	for _, existing := range f.presentations {
		if existing.stimulusName() == s.stimulusName() {
			return fmt.Errorf("stimulus %q: %w", s.stimulusName(), ErrDuplicate)
		}
	}
	f.presentations = append(f.presentations, s)
	return nil
}

// Subject holds the demographic fields carried over from the legacy
// file. Sex must already be a normalized single-letter code.
type Subject struct {
	Age         string
	Description string
	Genotype    string
	Sex         string
	Species     string
	SubjectID   string
}

// ProcessingModule is a named grouping of processed data. The merge only
// ever fills the behavioral container.
type ProcessingModule struct {
	Name        string
	Description string

	behavioral []*TimeSeries
}

// AddBehavioralTimeSeries adds a series to the module's behavioral
// time-series container, creating the container on first use.
func (m *ProcessingModule) AddBehavioralTimeSeries(ts *TimeSeries) error {
	if ts == nil || ts.Name == "" {
		return fmt.Errorf("time series needs a name")
	}
	for _, existing := range m.behavioral {
		if existing.Name == ts.Name {
			return fmt.Errorf("behavioral series %q: %w", ts.Name, ErrDuplicate)
		}
	}
	m.behavioral = append(m.behavioral, ts)
	return nil
}