// Package config loads and validates pipeline configuration. Settings are
// read once at startup (YAML file plus SKYWATCH_ environment overrides) and
// the resulting struct is treated as immutable for the life of the run:
// stages receive copies or individual fields, never a pointer they could
// mutate through.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the full configuration surface of the pipeline.
type Settings struct {
	// ImageList is a plain-text file with one raw image path per line.
	ImageList string `mapstructure:"image_list"`

	// OutputDir receives all intermediate and final files.
	OutputDir string `mapstructure:"output_dir"`

	// Warp enables astrometric correction of every epoch image.
	Warp bool `mapstructure:"warp"`

	// RefCat configures the reference catalogue used when warping.
	RefCat RefCatSettings `mapstructure:"ref_cat"`

	// Region optionally restricts source finding to a region of interest.
	Region FileToggle `mapstructure:"region"`

	// Monitor optionally appends fixed positions to the master catalogue.
	Monitor FileToggle `mapstructure:"monitor"`

	// GroupPlotsByEpoch packs light-curve samples at consecutive epoch
	// positions; disabling it spreads them over the epoch identifiers so
	// dropped epochs show as gaps.
	GroupPlotsByEpoch bool `mapstructure:"group_plots_by_epoch"`

	// Tools locates the external collaborator programs.
	Tools ToolSettings `mapstructure:"tools"`

	// Temporal locates the workflow runtime.
	Temporal TemporalSettings `mapstructure:"temporal"`
}

// RefCatSettings names the reference catalogue file and its coordinate
// columns, which vary between survey catalogues.
type RefCatSettings struct {
	Path   string `mapstructure:"path"`
	RACol  string `mapstructure:"ra_col"`
	DecCol string `mapstructure:"dec_col"`
}

// FileToggle is an optional file input with an independent enable flag, so
// a configured path can be kept while switched off.
type FileToggle struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

// ToolSettings locates every external program the pipeline invokes. Bare
// names are resolved through PATH; the helper entries are resolved under
// HelperDir when they are not absolute.
type ToolSettings struct {
	// Background is the background/noise estimator (BANE-equivalent).
	Background string `mapstructure:"background"`
	// Finder is the source finder, also used in priorized mode.
	Finder string `mapstructure:"finder"`
	// Warp is the astrometric cross-match/resample tool.
	Warp string `mapstructure:"warp"`
	// Mask is the source subtraction/masking tool.
	Mask string `mapstructure:"mask"`
	// Table is the table-processing utility used for tagging, joins, and
	// concatenation.
	Table string `mapstructure:"table"`
	// HelperDir holds the small helper scripts shipped alongside the
	// pipeline deployment (statistics, candidate filtering).
	HelperDir string `mapstructure:"helper_dir"`
	// DOF estimates degrees of freedom from epoch autocorrelation.
	DOF string `mapstructure:"dof"`
	// Variability computes per-source variability statistics.
	Variability string `mapstructure:"variability"`
	// Filter screens artifact-like residual detections.
	Filter string `mapstructure:"filter"`
}

// Helper resolves a helper program name under HelperDir. Absolute paths and
// empty names pass through untouched.
func (t ToolSettings) Helper(name string) string {
	if name == "" || filepath.IsAbs(name) || t.HelperDir == "" {
		return name
	}
	return filepath.Join(t.HelperDir, name)
}

// TemporalSettings locates the workflow runtime serving the pipeline.
type TemporalSettings struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Defaults returns the settings applied before any file or environment
// override. Tool names default to the standard AegeanTools / STILTS
// programs found on PATH.
func Defaults() Settings {
	return Settings{
		OutputDir:         "results",
		Warp:              true,
		GroupPlotsByEpoch: true,
		RefCat: RefCatSettings{
			RACol:  "RAJ2000",
			DecCol: "DEJ2000",
		},
		Tools: ToolSettings{
			Background:  "BANE",
			Finder:      "aegean",
			Warp:        "fits_warp.py",
			Mask:        "AeRes",
			Table:       "stilts",
			HelperDir:   "helpers",
			DOF:         "auto_corr.py",
			Variability: "calc_var.py",
			Filter:      "filter_transients.py",
		},
		Temporal: TemporalSettings{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "skywatch-pipeline",
		},
	}
}

// Load reads settings from the given config file (optional) with SKYWATCH_
// environment variable overrides, on top of Defaults.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SKYWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	settings := Defaults()
	bindDefaults(v, settings)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return settings, nil
}

// bindDefaults registers defaults with viper so environment-only overrides
// work without a config file present.
func bindDefaults(v *viper.Viper, s Settings) {
	v.SetDefault("image_list", s.ImageList)
	v.SetDefault("output_dir", s.OutputDir)
	v.SetDefault("warp", s.Warp)
	v.SetDefault("ref_cat.path", s.RefCat.Path)
	v.SetDefault("ref_cat.ra_col", s.RefCat.RACol)
	v.SetDefault("ref_cat.dec_col", s.RefCat.DecCol)
	v.SetDefault("region.path", s.Region.Path)
	v.SetDefault("region.enabled", s.Region.Enabled)
	v.SetDefault("monitor.path", s.Monitor.Path)
	v.SetDefault("monitor.enabled", s.Monitor.Enabled)
	v.SetDefault("group_plots_by_epoch", s.GroupPlotsByEpoch)
	v.SetDefault("tools.background", s.Tools.Background)
	v.SetDefault("tools.finder", s.Tools.Finder)
	v.SetDefault("tools.warp", s.Tools.Warp)
	v.SetDefault("tools.mask", s.Tools.Mask)
	v.SetDefault("tools.table", s.Tools.Table)
	v.SetDefault("tools.helper_dir", s.Tools.HelperDir)
	v.SetDefault("tools.dof", s.Tools.DOF)
	v.SetDefault("tools.variability", s.Tools.Variability)
	v.SetDefault("tools.filter", s.Tools.Filter)
	v.SetDefault("temporal.host_port", s.Temporal.HostPort)
	v.SetDefault("temporal.namespace", s.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", s.Temporal.TaskQueue)
}

// Validate rejects settings no pipeline run could act on.
func (s *Settings) Validate() error {
	if s.ImageList == "" {
		return fmt.Errorf("config: image_list is required")
	}
	if s.OutputDir == "" {
		return fmt.Errorf("config: output_dir is required")
	}
	if s.Warp && s.RefCat.Path == "" {
		return fmt.Errorf("config: warp enabled but ref_cat.path is empty")
	}
	if s.Tools.Table == "" {
		return fmt.Errorf("config: tools.table is required")
	}
	if s.Temporal.TaskQueue == "" {
		return fmt.Errorf("config: temporal.task_queue is required")
	}
	return nil
}
