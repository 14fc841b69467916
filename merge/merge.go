// Package merge implements the NWB 1.0 → NWB 2.0 consolidation pipeline:
// read identity and behavioral/stimulus data from a legacy file, build an
// NWB 2 shell around them, then graft the suite2p optical-physiology
// subtrees from a second file into the result.
package merge

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/robert-malhotra/nwb-merge/hdf5"
	"github.com/robert-malhotra/nwb-merge/nwb"
	"github.com/robert-malhotra/nwb-merge/nwb1"
)

// stimulusPairs are the legacy template stacks and the presentations
// that index into them.
var stimulusPairs = []struct {
	template     string
	presentation string
}{
	{"locally_sparse_noise_image_stack", "locally_sparse_noise_stimulus"},
	{"natural_movie_one_image_stack", "natural_movie_one_stimulus"},
	{"natural_movie_two_image_stack", "natural_movie_two_stimulus"},
}

// spontaneousStimulus is the one legacy presentation without a template.
const spontaneousStimulus = "spontaneous_stimulus"

// Placeholder values for fields the legacy format does not record.
const (
	placeholderDistance    = float64(-1.0)
	placeholderOrientation = "N/A"
	placeholderUnit        = "N/A"
)

// Suite2p source paths grafted into the output.
const (
	suite2pOphys        = "/processing/ophys"
	suite2pAcquisition  = "/acquisition/TwoPhotonSeries"
	suite2pImagingPlane = "/general/optophysiology/ImagingPlane"
	suite2pCreateDate   = "/file_create_date"

	// Children inside the grafted subtrees that get special handling.
	suite2pDeviceLink      = suite2pImagingPlane + "/device"
	suite2pPlaneLink       = suite2pAcquisition + "/imaging_plane"
	suite2pReferenceImages = suite2pOphys + "/ImageSegmentation/PlaneSegmentation/reference_images"
)

// Run executes the full merge. On failure the intermediate file, if one
// was written, is left behind for inspection.
func Run(cfg Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	legacy, err := nwb1.Open(cfg.NWB1Path)
	if err != nil {
		return err
	}
	defer legacy.Close()

	suite2p, err := hdf5.Open(cfg.NWB2Path)
	if err != nil {
		return fmt.Errorf("opening suite2p file: %w", err)
	}
	defer suite2p.Close()

	log.Info("inputs opened",
		zap.String("nwb1", cfg.NWB1Path),
		zap.String("nwb2", cfg.NWB2Path))

	out, err := buildShell(legacy, suite2p, loc, log)
	if err != nil {
		return err
	}

	tempPath := filepath.Join(filepath.Dir(cfg.OutputPath), tempFileName)
	if err := writeShell(tempPath, out); err != nil {
		return err
	}
	log.Info("intermediate file written", zap.String("path", tempPath))

	if err := export(tempPath, suite2p, cfg, log); err != nil {
		return err
	}
	log.Info("output written", zap.String("path", cfg.OutputPath))

	if cfg.KeepTemp {
		log.Info("keeping intermediate file", zap.String("path", tempPath))
		return nil
	}
	if err := os.Remove(tempPath); err != nil {
		return fmt.Errorf("removing intermediate file: %w", err)
	}
	return nil
}

// buildShell constructs the in-memory NWB 2 file from the legacy file's
// contents, plus the suite2p file's creation date for the history.
func buildShell(legacy *nwb1.File, suite2p *hdf5.File, loc *time.Location, log *zap.Logger) (*nwb.File, error) {
	id, err := legacy.Identity()
	if err != nil {
		return nil, err
	}

	start, err := nwb1.ParseSessionTime(id.SessionStartTime, loc)
	if err != nil {
		return nil, err
	}
	legacyCreated, err := nwb1.ParseSessionTime(id.FileCreateDate, loc)
	if err != nil {
		return nil, err
	}
	suiteCreated, err := suite2pCreated(suite2p)
	if err != nil {
		return nil, err
	}

	// Three-entry creation history: the legacy recording, the suite2p
	// processing run, and this merge.
	out, err := nwb.NewFile(id.Identifier, id.SessionDescription, start,
		[]time.Time{legacyCreated, suiteCreated, time.Now()})
	if err != nil {
		return nil, err
	}
	log.Info("shell created", zap.String("identifier", id.Identifier))

	if err := addRunningSpeed(out, legacy); err != nil {
		return nil, err
	}
	if err := addStimuli(out, legacy); err != nil {
		return nil, err
	}
	if err := addSubject(out, legacy); err != nil {
		return nil, err
	}
	if err := addGeneral(out, legacy, log); err != nil {
		return nil, err
	}
	return out, nil
}

// suite2pCreated reads the first creation date of the suite2p file.
func suite2pCreated(f *hdf5.File) (time.Time, error) {
	ds, err := f.OpenDataset(suite2pCreateDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("opening suite2p %s: %w", suite2pCreateDate, err)
	}
	dates, err := ds.ReadString()
	if err != nil {
		return time.Time{}, fmt.Errorf("reading suite2p %s: %w", suite2pCreateDate, err)
	}
	if len(dates) == 0 {
		return time.Time{}, fmt.Errorf("suite2p %s is empty", suite2pCreateDate)
	}
	t, err := nwb.ParseTimestamp(dates[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("suite2p create date: %w", err)
	}
	return t, nil
}

func addRunningSpeed(out *nwb.File, legacy *nwb1.File) error {
	rs, err := legacy.RunningSpeed()
	if err != nil {
		return err
	}
	mod, err := out.CreateProcessingModule("behavior", "processed behavioral data")
	if err != nil {
		return err
	}
	return mod.AddBehavioralTimeSeries(&nwb.TimeSeries{
		Name:        "running_speed",
		Data:        rs.Data,
		Timestamps:  rs.Timestamps,
		Unit:        "frame",
		Description: rs.Description,
		Comments:    rs.Comments,
	})
}

func addStimuli(out *nwb.File, legacy *nwb1.File) error {
	for _, pair := range stimulusPairs {
		tmpl, err := legacy.StimulusTemplate(pair.template)
		if err != nil {
			return err
		}
		if err := out.AddStimulusTemplate(&nwb.OpticalSeries{
			Name:         tmpl.Name,
			Data:         tmpl.Data,
			Dimension:    tmpl.Dimension,
			FieldOfView:  tmpl.FieldOfView,
			Format:       tmpl.Format,
			Description:  tmpl.Description,
			Comments:     tmpl.Comments,
			Distance:     placeholderDistance,
			Orientation:  placeholderOrientation,
			Unit:         placeholderUnit,
			StartingTime: 0,
			Rate:         0,
		}); err != nil {
			return err
		}

		pres, err := legacy.IndexedStimulus(pair.presentation)
		if err != nil {
			return err
		}
		if err := out.AddStimulus(&nwb.IndexSeries{
			Name:              pres.Name,
			Data:              pres.Data,
			Timestamps:        pres.Timestamps,
			Description:       pres.Description,
			Comments:          pres.Comments,
			IndexedTimeseries: tmpl.Name,
		}); err != nil {
			return err
		}
	}

	spont, err := legacy.IntervalStimulus(spontaneousStimulus)
	if err != nil {
		return err
	}
	return out.AddStimulus(&nwb.IntervalSeries{
		Name:        spont.Name,
		Data:        spont.Data,
		Timestamps:  spont.Timestamps,
		Description: spont.Description,
		Comments:    spont.Comments,
	})
}

func addSubject(out *nwb.File, legacy *nwb1.File) error {
	s, err := legacy.Subject()
	if err != nil {
		return err
	}
	sex, err := nwb.NormalizeSex(s.Sex)
	if err != nil {
		return err
	}
	out.Subject = &nwb.Subject{
		Age:         s.Age,
		Description: s.Description,
		Genotype:    s.Genotype,
		Sex:         sex,
		Species:     s.Species,
		SubjectID:   s.SubjectID,
	}
	return nil
}

func addGeneral(out *nwb.File, legacy *nwb1.File, log *zap.Logger) error {
	institution, err := legacy.Institution()
	if err != nil {
		return err
	}
	out.Institution = institution

	sessionID, err := legacy.SessionID()
	if err != nil {
		return err
	}
	out.SessionID = sessionID

	devices, err := legacy.DeviceNames()
	if err != nil {
		return err
	}
	for _, name := range devices {
		if err := out.CreateDevice(name); err != nil {
			return err
		}
	}

	unmapped, err := legacy.UnmappedGeneral()
	if err != nil {
		return err
	}
	if len(unmapped) > 0 {
		log.Info("legacy general fields with no destination, skipping",
			zap.Strings("fields", unmapped))
	}
	return nil
}

// writeShell serializes the shell to the intermediate file.
func writeShell(path string, out *nwb.File) error {
	f, err := hdf5.Create(path)
	if err != nil {
		return fmt.Errorf("creating intermediate file: %w", err)
	}
	if err := nwb.Write(f, out); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("finalizing intermediate file: %w", err)
	}
	return nil
}

// export copies the intermediate shell into the final output file and
// grafts the suite2p subtrees into it.
func export(tempPath string, suite2p *hdf5.File, cfg Config, log *zap.Logger) error {
	shell, err := hdf5.Open(tempPath)
	if err != nil {
		return fmt.Errorf("reopening intermediate file: %w", err)
	}
	defer shell.Close()

	dst, err := hdf5.Create(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err := doExport(dst, shell, suite2p, cfg, log); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("finalizing output file: %w", err)
	}
	return nil
}

func doExport(dst, shell, suite2p *hdf5.File, cfg Config, log *zap.Logger) error {
	shellCopy := newCopier(log)
	if err := shellCopy.copyGroup(dst.Root(), shell.Root()); err != nil {
		return err
	}

	processing := shellCopy.created["/processing"]
	acquisition := shellCopy.created["/acquisition"]
	general := shellCopy.created["/general"]
	if processing == nil || acquisition == nil || general == nil {
		return fmt.Errorf("intermediate file is missing a standard top-level group")
	}

	graft := newCopier(log)
	graft.skip[suite2pReferenceImages] = true
	graft.relink[suite2pDeviceLink] = "/general/devices/" + cfg.DeviceName
	graft.relink[suite2pPlaneLink] = suite2pImagingPlane

	// /general/optophysiology/ImagingPlane
	optophys, err := general.CreateGroup("optophysiology")
	if err != nil {
		return fmt.Errorf("creating general/optophysiology: %w", err)
	}
	if err := graftSubtree(graft, optophys, suite2p, suite2pImagingPlane); err != nil {
		return err
	}

	// /acquisition/TwoPhotonSeries
	if err := graftSubtree(graft, acquisition, suite2p, suite2pAcquisition); err != nil {
		return err
	}

	// /processing/ophys
	if err := graftSubtree(graft, processing, suite2p, suite2pOphys); err != nil {
		return err
	}
	return nil
}

// graftSubtree copies the group at srcPath in src under dst, keeping the
// source's base name.
func graftSubtree(c *copier, dst *hdf5.Group, src *hdf5.File, srcPath string) error {
	srcGroup, err := src.OpenGroup(srcPath)
	if err != nil {
		return fmt.Errorf("opening suite2p %s: %w", srcPath, err)
	}
	name := path.Base(srcPath)
	dstGroup, err := dst.CreateGroup(name)
	if err != nil {
		return fmt.Errorf("creating %s/%s: %w", dst.Path(), name, err)
	}
	c.log.Info("grafting subtree",
		zap.String("source", srcPath),
		zap.String("destination", dstGroup.Path()))
	return c.copyGroup(dstGroup, srcGroup)
}