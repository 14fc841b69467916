package nwb

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/robert-malhotra/nwb-merge/hdf5"
)

// Defaults pynwb fills in when a series carries no annotation.
const (
	defaultDescription = "no description"
	defaultComments    = "no comments"
)

// Write serializes f into an open, writable HDF5 file. The standard
// NWB top-level groups are always created so downstream tools find the
// expected layout even when a section is empty.
func Write(dst *hdf5.File, f *File) error {
	root := dst.Root()

	for _, attr := range []struct {
		name  string
		value interface{}
	}{
		{"namespace", "core"},
		{"neurodata_type", "NWBFile"},
		{"nwb_version", Version},
		{"object_id", uuid.NewString()},
	} {
		if err := root.SetAttr(attr.name, attr.value); err != nil {
			return fmt.Errorf("setting root attribute %q: %w", attr.name, err)
		}
	}

	if err := writeIdentity(root, f); err != nil {
		return err
	}

	if _, err := root.CreateGroup("acquisition"); err != nil {
		return fmt.Errorf("creating acquisition: %w", err)
	}
	if _, err := root.CreateGroup("analysis"); err != nil {
		return fmt.Errorf("creating analysis: %w", err)
	}

	processing, err := root.CreateGroup("processing")
	if err != nil {
		return fmt.Errorf("creating processing: %w", err)
	}
	for _, mod := range f.modules {
		if err := writeProcessingModule(processing, mod); err != nil {
			return fmt.Errorf("writing processing module %q: %w", mod.Name, err)
		}
	}

	stimulus, err := root.CreateGroup("stimulus")
	if err != nil {
		return fmt.Errorf("creating stimulus: %w", err)
	}
	templates, err := stimulus.CreateGroup("templates")
	if err != nil {
		return fmt.Errorf("creating stimulus/templates: %w", err)
	}
	for _, t := range f.templates {
		if err := writeOpticalSeries(templates, t); err != nil {
			return fmt.Errorf("writing stimulus template %q: %w", t.Name, err)
		}
	}
	presentation, err := stimulus.CreateGroup("presentation")
	if err != nil {
		return fmt.Errorf("creating stimulus/presentation: %w", err)
	}
	for _, s := range f.presentations {
		var err error
		switch series := s.(type) {
		case *IndexSeries:
			err = writeIndexSeries(presentation, series)
		case *IntervalSeries:
			err = writeIntervalSeries(presentation, series)
		default:
			err = fmt.Errorf("unsupported stimulus type %T", s)
		}
		if err != nil {
			return fmt.Errorf("writing stimulus %q: %w", s.stimulusName(), err)
		}
	}

	general, err := root.CreateGroup("general")
	if err != nil {
		return fmt.Errorf("creating general: %w", err)
	}
	if err := writeGeneral(general, f); err != nil {
		return err
	}

	return nil
}

func writeIdentity(root *hdf5.Group, f *File) error {
	dates := make([]string, len(f.fileCreateDate))
	for i, d := range f.fileCreateDate {
		dates[i] = FormatTimestamp(d)
	}
	if _, err := root.CreateDataset("file_create_date", dates); err != nil {
		return fmt.Errorf("writing file_create_date: %w", err)
	}

	start := FormatTimestamp(f.sessionStartTime)
	scalars := []struct {
		name  string
		value string
	}{
		{"identifier", f.identifier},
		{"session_description", f.sessionDescription},
		{"session_start_time", start},
		{"timestamps_reference_time", start},
	}
	for _, s := range scalars {
		if _, err := root.CreateDataset(s.name, s.value, hdf5.WithScalarDataspace()); err != nil {
			return fmt.Errorf("writing %s: %w", s.name, err)
		}
	}
	return nil
}

func writeGeneral(general *hdf5.Group, f *File) error {
	devices, err := general.CreateGroup("devices")
	if err != nil {
		return fmt.Errorf("creating general/devices: %w", err)
	}
	for _, name := range f.devices {
		if _, err := createTyped(devices, name, "Device"); err != nil {
			return fmt.Errorf("writing device %q: %w", name, err)
		}
	}

	if f.Institution != "" {
		if _, err := general.CreateDataset("institution", f.Institution, hdf5.WithScalarDataspace()); err != nil {
			return fmt.Errorf("writing institution: %w", err)
		}
	}
	if f.SessionID != "" {
		if _, err := general.CreateDataset("session_id", f.SessionID, hdf5.WithScalarDataspace()); err != nil {
			return fmt.Errorf("writing session_id: %w", err)
		}
	}

	if f.Subject != nil {
		if err := writeSubject(general, f.Subject); err != nil {
			return fmt.Errorf("writing subject: %w", err)
		}
	}
	return nil
}

func writeSubject(general *hdf5.Group, s *Subject) error {
	g, err := createTyped(general, "subject", "Subject")
	if err != nil {
		return err
	}
	fields := []struct {
		name  string
		value string
	}{
		{"age", s.Age},
		{"description", s.Description},
		{"genotype", s.Genotype},
		{"sex", s.Sex},
		{"species", s.Species},
		{"subject_id", s.SubjectID},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if _, err := g.CreateDataset(field.name, field.value, hdf5.WithScalarDataspace()); err != nil {
			return fmt.Errorf("writing %s: %w", field.name, err)
		}
	}
	return nil
}

func writeProcessingModule(processing *hdf5.Group, mod *ProcessingModule) error {
	g, err := createTyped(processing, mod.Name, "ProcessingModule",
		hdf5.WithGroupAttribute("description", mod.Description))
	if err != nil {
		return err
	}

	if len(mod.behavioral) > 0 {
		container, err := createTyped(g, "BehavioralTimeSeries", "BehavioralTimeSeries")
		if err != nil {
			return err
		}
		for _, ts := range mod.behavioral {
			if err := writeTimeSeries(container, ts); err != nil {
				return fmt.Errorf("writing series %q: %w", ts.Name, err)
			}
		}
	}
	return nil
}

func writeTimeSeries(parent *hdf5.Group, ts *TimeSeries) error {
	g, err := createTyped(parent, ts.Name, "TimeSeries", annotationAttrs(ts.Description, ts.Comments)...)
	if err != nil {
		return err
	}
	if _, err := g.CreateDataset("data", ts.Data,
		hdf5.WithAttribute("conversion", float64(1.0)),
		hdf5.WithAttribute("resolution", float64(-1.0)),
		hdf5.WithAttribute("unit", ts.Unit),
	); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return writeTimestamps(g, ts.Timestamps)
}

func writeOpticalSeries(parent *hdf5.Group, t *OpticalSeries) error {
	g, err := createTyped(parent, t.Name, "OpticalSeries", annotationAttrs(t.Description, t.Comments)...)
	if err != nil {
		return err
	}
	if _, err := g.CreateDatasetFromRaw("data", t.Data,
		hdf5.WithAttribute("conversion", float64(1.0)),
		hdf5.WithAttribute("resolution", float64(-1.0)),
		hdf5.WithAttribute("unit", t.Unit),
	); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	if _, err := g.CreateDataset("dimension", t.Dimension); err != nil {
		return fmt.Errorf("writing dimension: %w", err)
	}
	if _, err := g.CreateDataset("field_of_view", t.FieldOfView); err != nil {
		return fmt.Errorf("writing field_of_view: %w", err)
	}
	if _, err := g.CreateDataset("format", t.Format, hdf5.WithScalarDataspace()); err != nil {
		return fmt.Errorf("writing format: %w", err)
	}
	if _, err := g.CreateDataset("distance", t.Distance, hdf5.WithScalarDataspace()); err != nil {
		return fmt.Errorf("writing distance: %w", err)
	}
	if _, err := g.CreateDataset("orientation", t.Orientation, hdf5.WithScalarDataspace()); err != nil {
		return fmt.Errorf("writing orientation: %w", err)
	}
	if _, err := g.CreateDataset("starting_time", t.StartingTime,
		hdf5.WithScalarDataspace(),
		hdf5.WithAttribute("rate", t.Rate),
		hdf5.WithAttribute("unit", "seconds"),
	); err != nil {
		return fmt.Errorf("writing starting_time: %w", err)
	}
	return nil
}

func writeIndexSeries(parent *hdf5.Group, s *IndexSeries) error {
	g, err := createTyped(parent, s.Name, "IndexSeries", annotationAttrs(s.Description, s.Comments)...)
	if err != nil {
		return err
	}
	if _, err := g.CreateDataset("data", s.Data,
		hdf5.WithAttribute("conversion", float64(1.0)),
		hdf5.WithAttribute("resolution", float64(-1.0)),
		hdf5.WithAttribute("unit", "N/A"),
	); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	if err := writeTimestamps(g, s.Timestamps); err != nil {
		return err
	}
	target := "/stimulus/templates/" + s.IndexedTimeseries
	if err := g.CreateSoftLink("indexed_timeseries", target); err != nil {
		return fmt.Errorf("linking indexed_timeseries: %w", err)
	}
	return nil
}

func writeIntervalSeries(parent *hdf5.Group, s *IntervalSeries) error {
	g, err := createTyped(parent, s.Name, "IntervalSeries", annotationAttrs(s.Description, s.Comments)...)
	if err != nil {
		return err
	}
	if _, err := g.CreateDataset("data", s.Data,
		hdf5.WithAttribute("conversion", float64(1.0)),
		hdf5.WithAttribute("resolution", float64(-1.0)),
		hdf5.WithAttribute("unit", "n/a"),
	); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return writeTimestamps(g, s.Timestamps)
}

func writeTimestamps(g *hdf5.Group, timestamps []float64) error {
	if _, err := g.CreateDataset("timestamps", timestamps,
		hdf5.WithAttribute("interval", int32(1)),
		hdf5.WithAttribute("unit", "seconds"),
	); err != nil {
		return fmt.Errorf("writing timestamps: %w", err)
	}
	return nil
}

// createTyped creates a group tagged with the NWB type attributes every
// typed object carries, plus a fresh object ID.
func createTyped(parent *hdf5.Group, name, neurodataType string, opts ...hdf5.GroupOption) (*hdf5.Group, error) {
	base := []hdf5.GroupOption{
		hdf5.WithGroupAttribute("namespace", "core"),
		hdf5.WithGroupAttribute("neurodata_type", neurodataType),
		hdf5.WithGroupAttribute("object_id", uuid.NewString()),
	}
	return parent.CreateGroup(name, append(base, opts...)...)
}

func annotationAttrs(description, comments string) []hdf5.GroupOption {
	if description == "" {
		description = defaultDescription
	}
	if comments == "" {
		comments = defaultComments
	}
	return []hdf5.GroupOption{
		hdf5.WithGroupAttribute("description", description),
		hdf5.WithGroupAttribute("comments", comments),
	}
}