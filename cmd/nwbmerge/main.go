// nwbmerge consolidates a legacy NWB 1.0 file and a suite2p NWB 2.0 file
// into a single NWB 2.0 file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/robert-malhotra/nwb-merge/hdf5"
	"github.com/robert-malhotra/nwb-merge/merge"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nwbmerge",
	Short: "Merge legacy NWB 1.0 recordings with suite2p NWB 2.0 output",
	Long: `nwbmerge reads a legacy NWB 1.0 file and a suite2p-produced NWB 2.0
file and writes one consolidated NWB 2.0 file: identity, behavioral and
stimulus data come from the legacy file, the optical-physiology subtrees
are grafted from the suite2p file.

All HDF5 access is pure Go; no libhdf5 is required.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Run the merge pipeline",
	Long: `Runs the full pipeline: build an NWB 2 shell from the legacy file,
write it to a temp file next to the output, then export the shell plus
the grafted suite2p subtrees to the output path. The temp file is removed
on success and left behind on failure.

Example:
  nwbmerge merge --nwb1 session.nwb --nwb2 suite2p.nwb -o merged.nwb`,
	RunE: runMerge,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file.nwb]",
	Short: "Print the group/dataset tree of an HDF5 file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var mergeFlags merge.Config

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	defaults := merge.DefaultConfig()
	mergeCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	mergeCmd.Flags().StringVar(&mergeFlags.NWB1Path, "nwb1", "", "legacy NWB 1.0 input file")
	mergeCmd.Flags().StringVar(&mergeFlags.NWB2Path, "nwb2", "", "suite2p NWB 2.0 input file")
	mergeCmd.Flags().StringVarP(&mergeFlags.OutputPath, "output", "o", "", "consolidated NWB 2.0 output file")
	mergeCmd.Flags().StringVar(&mergeFlags.Timezone, "timezone", defaults.Timezone, "zone of the legacy file's timestamps")
	mergeCmd.Flags().StringVar(&mergeFlags.DeviceName, "device", defaults.DeviceName, "device linked into the grafted imaging plane")
	mergeCmd.Flags().BoolVar(&mergeFlags.KeepTemp, "keep-temp", false, "keep the intermediate file on success")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(inspectCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg := mergeFlags
	if configPath != "" {
		loaded, err := merge.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		// Flags set explicitly win over the config file.
		overrides := map[string]*string{
			"nwb1":     &mergeFlags.NWB1Path,
			"nwb2":     &mergeFlags.NWB2Path,
			"output":   &mergeFlags.OutputPath,
			"timezone": &mergeFlags.Timezone,
			"device":   &mergeFlags.DeviceName,
		}
		targets := map[string]*string{
			"nwb1":     &cfg.NWB1Path,
			"nwb2":     &cfg.NWB2Path,
			"output":   &cfg.OutputPath,
			"timezone": &cfg.Timezone,
			"device":   &cfg.DeviceName,
		}
		for name, src := range overrides {
			if cmd.Flags().Changed(name) {
				*targets[name] = *src
			}
		}
		if cmd.Flags().Changed("keep-temp") {
			cfg.KeepTemp = mergeFlags.KeepTemp
		}
	}
	return merge.Run(cfg, logger)
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := hdf5.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	fmt.Printf("superblock version: %d\n", f.Version())
	inspectGroup(f.Root(), "", 0)
	return nil
}

func inspectGroup(g *hdf5.Group, indent string, depth int) {
	if depth > 20 {
		fmt.Printf("%s[max depth reached]\n", indent)
		return
	}

	fmt.Printf("%s%s  attrs=%v\n", indent, g.Path(), g.Attrs())

	links, err := g.Links()
	if err != nil {
		fmt.Printf("%s  error listing members: %v\n", indent, err)
		return
	}
	for _, link := range links {
		switch link.Kind {
		case hdf5.LinkSoft:
			fmt.Printf("%s  %s -> %s\n", indent, link.Name, link.Target)
			continue
		case hdf5.LinkExternal:
			fmt.Printf("%s  %s -> external %s\n", indent, link.Name, link.Target)
			continue
		}

		if sub, err := g.OpenGroup(link.Name); err == nil {
			inspectGroup(sub, indent+"  ", depth+1)
			continue
		}
		if ds, err := g.OpenDataset(link.Name); err == nil {
			fmt.Printf("%s  %s  shape=%v attrs=%v\n", indent, link.Name, ds.Shape(), ds.Attrs())
			continue
		}
		fmt.Printf("%s  %s: cannot open as group or dataset\n", indent, link.Name)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}