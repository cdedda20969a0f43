// Package config loads and validates pdfpress configuration from
// .pdfpress/config.yaml, merged over built-in defaults and under CLI
// flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/pdfpress/internal/engine"
	"github.com/harrison/pdfpress/internal/timeout"
)

// Preset bundles the Ghostscript knobs for one quality level.
type Preset struct {
	DPI         int
	JPEGQuality int
	PDFSettings string
}

// presets maps the quality names users pick to engine settings.
var presets = map[string]Preset{
	"high":     {DPI: 300, JPEGQuality: 85, PDFSettings: "/prepress"},
	"balanced": {DPI: 200, JPEGQuality: 70, PDFSettings: "/ebook"},
	"compact":  {DPI: 150, JPEGQuality: 60, PDFSettings: "/screen"},
}

// PaperSize is a page size in PostScript points (1/72 inch).
type PaperSize struct {
	WidthPts  int
	HeightPts int
}

var paperSizes = map[string]PaperSize{
	"a4":     {WidthPts: 595, HeightPts: 842},
	"letter": {WidthPts: 612, HeightPts: 792},
	"legal":  {WidthPts: 612, HeightPts: 1008},
	"a3":     {WidthPts: 842, HeightPts: 1191},
}

// TimeoutConfig configures the size-tiered timeout policy. Each field is
// a duration string in the YAML file (e.g. "3m").
type TimeoutConfig struct {
	Base   time.Duration `yaml:"base"`
	Small  time.Duration `yaml:"small"`
	Medium time.Duration `yaml:"medium"`
	Large  time.Duration `yaml:"large"`
	XLarge time.Duration `yaml:"xlarge"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	// Enabled enables recording each run to the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`
}

// Config represents pdfpress configuration options
type Config struct {
	// Quality selects the compression preset (high, balanced, compact)
	Quality string `yaml:"quality"`

	// DPI overrides the preset's color/gray image resolution (0 = use preset)
	DPI int `yaml:"dpi"`

	// Paper selects the output page size (a4, letter, legal, a3)
	Paper string `yaml:"paper"`

	// OutputSuffix is appended to the input directory name to form the
	// batch output directory
	OutputSuffix string `yaml:"output_suffix"`

	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// Timeouts configures the size-tiered timeout policy
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`

	// TimeoutOverride replaces the tiered policy for every item when
	// set via the --timeout flag. Zero or negative disables timeouts
	// entirely. Never read from YAML.
	TimeoutOverride *time.Duration `yaml:"-"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	policy := timeout.DefaultPolicy()
	return &Config{
		Quality:      "balanced",
		DPI:          0, // use preset
		Paper:        "a4",
		OutputSuffix: "_optimized_bw",
		LogLevel:     "info",
		LogDir:       ".pdfpress/logs",
		Timeouts: TimeoutConfig{
			Base:   policy.Base,
			Small:  policy.Small,
			Medium: policy.Medium,
			Large:  policy.Large,
			XLarge: policy.XLarge,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".pdfpress/history.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings in YAML, so unmarshal into a shadow
	// struct first.
	type yamlTimeouts struct {
		Base   string `yaml:"base"`
		Small  string `yaml:"small"`
		Medium string `yaml:"medium"`
		Large  string `yaml:"large"`
		XLarge string `yaml:"xlarge"`
	}
	type yamlConfig struct {
		Quality      string        `yaml:"quality"`
		DPI          int           `yaml:"dpi"`
		Paper        string        `yaml:"paper"`
		OutputSuffix string        `yaml:"output_suffix"`
		LogLevel     string        `yaml:"log_level"`
		LogDir       string        `yaml:"log_dir"`
		Timeouts     yamlTimeouts  `yaml:"timeouts"`
		History      HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.Quality != "" {
		cfg.Quality = yamlCfg.Quality
	}
	if yamlCfg.DPI != 0 {
		cfg.DPI = yamlCfg.DPI
	}
	if yamlCfg.Paper != "" {
		cfg.Paper = yamlCfg.Paper
	}
	if yamlCfg.OutputSuffix != "" {
		cfg.OutputSuffix = yamlCfg.OutputSuffix
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}

	tiers := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{yamlCfg.Timeouts.Base, &cfg.Timeouts.Base, "base"},
		{yamlCfg.Timeouts.Small, &cfg.Timeouts.Small, "small"},
		{yamlCfg.Timeouts.Medium, &cfg.Timeouts.Medium, "medium"},
		{yamlCfg.Timeouts.Large, &cfg.Timeouts.Large, "large"},
		{yamlCfg.Timeouts.XLarge, &cfg.Timeouts.XLarge, "xlarge"},
	}
	for _, tier := range tiers {
		if tier.raw == "" {
			continue
		}
		d, err := time.ParseDuration(tier.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeouts.%s format %q: %w", tier.name, tier.raw, err)
		}
		*tier.dst = d
	}

	// The history section needs presence detection so an explicit
	// "enabled: false" is not clobbered by the default.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if historySection, exists := rawMap["history"]; exists && historySection != nil {
			historyMap, _ := historySection.(map[string]interface{})
			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .pdfpress/config.yaml in the
// specified directory. If the directory or file doesn't exist, returns
// default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".pdfpress", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(quality *string, dpi *int, paper *string, timeoutOverride *time.Duration, logDir *string) {
	if quality != nil {
		c.Quality = *quality
	}
	if dpi != nil {
		c.DPI = *dpi
	}
	if paper != nil {
		c.Paper = *paper
	}
	if timeoutOverride != nil {
		c.TimeoutOverride = timeoutOverride
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if _, ok := presets[c.Quality]; !ok {
		return fmt.Errorf("invalid quality %q, must be one of: %s", c.Quality, sortedKeys(presets))
	}

	if _, ok := paperSizes[c.Paper]; !ok {
		return fmt.Errorf("invalid paper %q, must be one of: %s", c.Paper, sortedKeys(paperSizes))
	}

	// DPI 0 means the preset value; explicit values must be practical
	// for Ghostscript downsampling.
	if c.DPI != 0 && (c.DPI < 72 || c.DPI > 600) {
		return fmt.Errorf("dpi must be between 72 and 600, got %d", c.DPI)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	for name, d := range map[string]time.Duration{
		"base":   c.Timeouts.Base,
		"small":  c.Timeouts.Small,
		"medium": c.Timeouts.Medium,
		"large":  c.Timeouts.Large,
		"xlarge": c.Timeouts.XLarge,
	} {
		if d < 0 {
			return fmt.Errorf("timeouts.%s must be >= 0, got %v", name, d)
		}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// EngineSettings resolves the quality preset, DPI override and paper
// size into concrete engine settings. Validate must have passed.
func (c *Config) EngineSettings() engine.Settings {
	preset := presets[c.Quality]
	paper := paperSizes[c.Paper]

	dpi := preset.DPI
	if c.DPI != 0 {
		dpi = c.DPI
	}

	return engine.Settings{
		DPI:            dpi,
		JPEGQuality:    preset.JPEGQuality,
		PDFSettings:    preset.PDFSettings,
		PaperWidthPts:  paper.WidthPts,
		PaperHeightPts: paper.HeightPts,
	}
}

// TimeoutPolicy returns the size-tiered timeout policy from the config.
func (c *Config) TimeoutPolicy() timeout.Policy {
	return timeout.Policy{
		Base:   c.Timeouts.Base,
		Small:  c.Timeouts.Small,
		Medium: c.Timeouts.Medium,
		Large:  c.Timeouts.Large,
		XLarge: c.Timeouts.XLarge,
	}
}

// QualityNames returns the valid quality preset names, sorted.
func QualityNames() []string {
	return strings.Split(sortedKeys(presets), ", ")
}

// PaperNames returns the valid paper size names, sorted.
func PaperNames() []string {
	return strings.Split(sortedKeys(paperSizes), ", ")
}

func sortedKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
