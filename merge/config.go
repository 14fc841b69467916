package merge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for recordings from the legacy pipeline.
const (
	// DefaultTimezone is the zone legacy timestamps were recorded in.
	DefaultTimezone = "US/Pacific"

	// DefaultDeviceName is the legacy device that replaces the dummy
	// microscope the segmentation tool writes.
	DefaultDeviceName = "2-photon microscope"

	// tempFileName is the intermediate file written next to the output.
	tempFileName = "temp.nwb"
)

// Config controls a merge run.
type Config struct {
	// NWB1Path is the legacy NWB 1.0 source file.
	NWB1Path string `yaml:"nwb1"`

	// NWB2Path is the suite2p-produced NWB 2.0 source file.
	NWB2Path string `yaml:"nwb2"`

	// OutputPath is the consolidated NWB 2.0 output file.
	OutputPath string `yaml:"output"`

	// Timezone localizes the legacy file's zone-less timestamps.
	Timezone string `yaml:"timezone"`

	// DeviceName is the real device linked into the grafted imaging
	// plane in place of the segmentation tool's placeholder.
	DeviceName string `yaml:"device"`

	// KeepTemp leaves the intermediate file behind on success.
	KeepTemp bool `yaml:"keep_temp"`
}

// DefaultConfig returns a config with defaults filled in. Paths must
// still be provided.
func DefaultConfig() Config {
	return Config{
		Timezone:   DefaultTimezone,
		DeviceName: DefaultDeviceName,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the config names all three files and has no
// empty defaults.
func (c *Config) Validate() error {
	if c.NWB1Path == "" {
		return fmt.Errorf("legacy NWB 1.0 input path is required")
	}
	if c.NWB2Path == "" {
		return fmt.Errorf("suite2p NWB 2.0 input path is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if c.DeviceName == "" {
		return fmt.Errorf("device name is required")
	}
	return nil
}