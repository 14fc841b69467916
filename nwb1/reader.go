// Package nwb1 reads the fixed on-disk layout of legacy NWB 1.0 files.
// The legacy library cannot be relied on, so access goes through the
// generic HDF5 engine at known key paths and only those paths.
package nwb1

import (
	"fmt"
	"time"

	"github.com/robert-malhotra/nwb-merge/hdf5"
)

// Fixed key paths of the legacy layout.
const (
	pathIdentifier         = "/identifier"
	pathSessionDescription = "/session_description"
	pathSessionStartTime   = "/session_start_time"
	pathFileCreateDate     = "/file_create_date"
	pathRunningSpeed       = "/processing/brain_observatory_pipeline/BehavioralTimeSeries/running_speed"
	pathTemplates          = "/stimulus/templates"
	pathPresentations      = "/stimulus/presentation"
	pathSubject            = "/general/subject"
	pathInstitution        = "/general/institution"
	pathSessionID          = "/general/session_id"
	pathDevices            = "/general/devices"
	pathGeneral            = "/general"
)

// sessionTimeLayout is the textual timestamp form legacy files store,
// e.g. "Tue Jan 26 12:28:49 2016". It carries no zone.
const sessionTimeLayout = "Mon Jan 2 15:04:05 2006"

// unmappedGeneralFields are legacy /general datasets with no place in
// the NWB 2 core schema. They are reported so callers can log the loss.
var unmappedGeneralFields = []string{
	"experiment_container_id",
	"fov",
	"generated_by",
	"ophys_experiment_id",
	"ophys_experiment_name",
	"pixel_size",
	"session_type",
	"specimen_name",
	"targeted_structure",
}

// File is an open legacy NWB 1.0 file.
type File struct {
	h *hdf5.File
}

// Open opens a legacy file for reading.
func Open(path string) (*File, error) {
	h, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening legacy file: %w", err)
	}
	return &File{h: h}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.h.Close()
}

// ParseSessionTime parses a legacy textual timestamp in the given zone.
func ParseSessionTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(sessionTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing legacy time %q: %w", s, err)
	}
	return t, nil
}

// Identity holds the immutable identity fields of the legacy file.
// Times are the raw stored strings; parse them with ParseSessionTime.
type Identity struct {
	Identifier         string
	SessionDescription string
	SessionStartTime   string
	FileCreateDate     string
}

// Identity reads the identity fields from their fixed paths.
func (f *File) Identity() (*Identity, error) {
	id := &Identity{}
	fields := []struct {
		path string
		dest *string
	}{
		{pathIdentifier, &id.Identifier},
		{pathSessionDescription, &id.SessionDescription},
		{pathSessionStartTime, &id.SessionStartTime},
		{pathFileCreateDate, &id.FileCreateDate},
	}
	for _, field := range fields {
		v, err := f.scalarString(field.path)
		if err != nil {
			return nil, err
		}
		*field.dest = v
	}
	return id, nil
}

// Series is a timeseries read from the legacy file.
type Series struct {
	Data        []float64
	Timestamps  []float64
	Description string
	Comments    string
}

// RunningSpeed reads the behavioral running-speed series.
func (f *File) RunningSpeed() (*Series, error) {
	g, err := f.h.OpenGroup(pathRunningSpeed)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pathRunningSpeed, err)
	}

	s := &Series{}
	if s.Data, err = f.float64Dataset(g, "data"); err != nil {
		return nil, err
	}
	if s.Timestamps, err = f.float64Dataset(g, "timestamps"); err != nil {
		return nil, err
	}
	s.Description = attrString(g, "description")
	s.Comments = attrString(g, "comments")
	return s, nil
}

// Template is a stimulus image stack read from the legacy file. The
// pixel payload stays raw so it can be rewritten byte for byte.
type Template struct {
	Name        string
	Data        *hdf5.RawDataset
	Dimension   []int64
	FieldOfView []float64
	Format      string
	Description string
	Comments    string
}

// StimulusTemplate reads a named template under /stimulus/templates.
func (f *File) StimulusTemplate(name string) (*Template, error) {
	g, err := f.h.OpenGroup(pathTemplates + "/" + name)
	if err != nil {
		return nil, fmt.Errorf("opening template %q: %w", name, err)
	}

	t := &Template{Name: name}

	data, err := g.OpenDataset("data")
	if err != nil {
		return nil, fmt.Errorf("opening template %q data: %w", name, err)
	}
	if t.Data, err = data.Snapshot(); err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}

	dim, err := g.OpenDataset("dimension")
	if err != nil {
		return nil, fmt.Errorf("opening template %q dimension: %w", name, err)
	}
	if t.Dimension, err = dim.ReadInt64(); err != nil {
		return nil, fmt.Errorf("reading template %q dimension: %w", name, err)
	}

	fov, err := g.OpenDataset("field_of_view")
	if err != nil {
		return nil, fmt.Errorf("opening template %q field_of_view: %w", name, err)
	}
	if t.FieldOfView, err = fov.ReadFloat64(); err != nil {
		return nil, fmt.Errorf("reading template %q field_of_view: %w", name, err)
	}

	if t.Format, err = f.scalarString(pathTemplates + "/" + name + "/format"); err != nil {
		return nil, err
	}

	t.Description = attrString(g, "description")
	t.Comments = attrString(g, "comments")
	return t, nil
}

// IndexedStimulus is a presentation whose data indexes into a template.
type IndexedStimulus struct {
	Name        string
	Data        []uint32
	Timestamps  []float64
	Description string
	Comments    string
}

// IndexedStimulus reads a named presentation as frame indices.
func (f *File) IndexedStimulus(name string) (*IndexedStimulus, error) {
	g, err := f.presentationGroup(name)
	if err != nil {
		return nil, err
	}

	s := &IndexedStimulus{Name: name}
	data, err := g.OpenDataset("data")
	if err != nil {
		return nil, fmt.Errorf("opening presentation %q data: %w", name, err)
	}
	if s.Data, err = data.ReadUint32(); err != nil {
		return nil, fmt.Errorf("reading presentation %q data: %w", name, err)
	}
	if s.Timestamps, err = f.float64Dataset(g, "timestamps"); err != nil {
		return nil, err
	}
	s.Description = attrString(g, "description")
	s.Comments = attrString(g, "comments")
	return s, nil
}

// IntervalStimulus is a presentation without a template, stored as
// interval events.
type IntervalStimulus struct {
	Name        string
	Data        []float64
	Timestamps  []float64
	Description string
	Comments    string
}

// IntervalStimulus reads a named presentation as interval data.
func (f *File) IntervalStimulus(name string) (*IntervalStimulus, error) {
	g, err := f.presentationGroup(name)
	if err != nil {
		return nil, err
	}

	s := &IntervalStimulus{Name: name}
	if s.Data, err = f.float64Dataset(g, "data"); err != nil {
		return nil, err
	}
	if s.Timestamps, err = f.float64Dataset(g, "timestamps"); err != nil {
		return nil, err
	}
	s.Description = attrString(g, "description")
	s.Comments = attrString(g, "comments")
	return s, nil
}

// Subject holds the raw demographic fields. Sex is the stored free-text
// value, not a normalized code.
type Subject struct {
	Age         string
	Description string
	Genotype    string
	Sex         string
	Species     string
	SubjectID   string
}

// Subject reads /general/subject.
func (f *File) Subject() (*Subject, error) {
	s := &Subject{}
	fields := []struct {
		name string
		dest *string
	}{
		{"age", &s.Age},
		{"description", &s.Description},
		{"genotype", &s.Genotype},
		{"sex", &s.Sex},
		{"species", &s.Species},
		{"subject_id", &s.SubjectID},
	}
	for _, field := range fields {
		v, err := f.scalarString(pathSubject + "/" + field.name)
		if err != nil {
			return nil, err
		}
		*field.dest = v
	}
	return s, nil
}

// Institution reads /general/institution.
func (f *File) Institution() (string, error) {
	return f.scalarString(pathInstitution)
}

// SessionID reads /general/session_id.
func (f *File) SessionID() (string, error) {
	return f.scalarString(pathSessionID)
}

// DeviceNames returns the member names of /general/devices.
func (f *File) DeviceNames() ([]string, error) {
	g, err := f.h.OpenGroup(pathDevices)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pathDevices, err)
	}
	names, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return names, nil
}

// UnmappedGeneral returns the names of /general datasets present in the
// file that have no NWB 2 core home and will not be migrated.
func (f *File) UnmappedGeneral() ([]string, error) {
	g, err := f.h.OpenGroup(pathGeneral)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pathGeneral, err)
	}
	members, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("listing general: %w", err)
	}
	present := make(map[string]bool, len(members))
	for _, m := range members {
		present[m] = true
	}
	var unmapped []string
	for _, name := range unmappedGeneralFields {
		if present[name] {
			unmapped = append(unmapped, name)
		}
	}
	return unmapped, nil
}

func (f *File) presentationGroup(name string) (*hdf5.Group, error) {
	g, err := f.h.OpenGroup(pathPresentations + "/" + name)
	if err != nil {
		return nil, fmt.Errorf("opening presentation %q: %w", name, err)
	}
	return g, nil
}

// scalarString reads a string dataset stored either as a scalar or a
// 1-element array, fixed- or variable-length.
func (f *File) scalarString(path string) (string, error) {
	ds, err := f.h.OpenDataset(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	vals, err := ds.ReadString()
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if len(vals) == 0 {
		return "", fmt.Errorf("reading %s: empty dataset", path)
	}
	return vals[0], nil
}

func (f *File) float64Dataset(g *hdf5.Group, name string) ([]float64, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s/%s: %w", g.Path(), name, err)
	}
	vals, err := ds.ReadFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", g.Path(), name, err)
	}
	return vals, nil
}

// attrString reads a scalar string attribute, or "" when absent.
func attrString(g *hdf5.Group, name string) string {
	attr := g.Attr(name)
	if attr == nil {
		return ""
	}
	v, err := attr.ReadScalarString()
	if err != nil {
		return ""
	}
	return v
}