package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configDir := filepath.Join(dir, ".pdfpress")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Quality != "balanced" {
		t.Errorf("Quality = %q, want balanced", cfg.Quality)
	}
	if cfg.Paper != "a4" {
		t.Errorf("Paper = %q, want a4", cfg.Paper)
	}
	if cfg.Timeouts.Base != 2*time.Minute {
		t.Errorf("Timeouts.Base = %v, want 2m", cfg.Timeouts.Base)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfigFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.Quality != "balanced" {
		t.Errorf("Quality = %q, want default", cfg.Quality)
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
quality: compact
dpi: 120
log_level: debug
timeouts:
  base: 30s
  large: 15m
`)

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}

	if cfg.Quality != "compact" {
		t.Errorf("Quality = %q, want compact", cfg.Quality)
	}
	if cfg.DPI != 120 {
		t.Errorf("DPI = %d, want 120", cfg.DPI)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Timeouts.Base != 30*time.Second {
		t.Errorf("Timeouts.Base = %v, want 30s", cfg.Timeouts.Base)
	}
	if cfg.Timeouts.Large != 15*time.Minute {
		t.Errorf("Timeouts.Large = %v, want 15m", cfg.Timeouts.Large)
	}
	// Unset fields keep defaults.
	if cfg.Paper != "a4" {
		t.Errorf("Paper = %q, want default a4", cfg.Paper)
	}
	if cfg.Timeouts.Small != 1*time.Minute {
		t.Errorf("Timeouts.Small = %v, want default 1m", cfg.Timeouts.Small)
	}
}

func TestLoadConfigExplicitHistoryDisable(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
history:
  enabled: false
`)

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want explicit false preserved")
	}
	if cfg.History.DBPath != ".pdfpress/history.db" {
		t.Errorf("History.DBPath = %q, want default", cfg.History.DBPath)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "quality: [broken")

	if _, err := LoadConfigFromDir(dir); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfigBadTimeoutDuration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
timeouts:
  base: fast
`)

	if _, err := LoadConfigFromDir(dir); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()

	quality := "high"
	dpi := 300
	override := 5 * time.Minute
	cfg.MergeWithFlags(&quality, &dpi, nil, &override, nil)

	if cfg.Quality != "high" {
		t.Errorf("Quality = %q, want high", cfg.Quality)
	}
	if cfg.DPI != 300 {
		t.Errorf("DPI = %d, want 300", cfg.DPI)
	}
	if cfg.Paper != "a4" {
		t.Errorf("Paper = %q, nil flag must not override", cfg.Paper)
	}
	if cfg.TimeoutOverride == nil || *cfg.TimeoutOverride != 5*time.Minute {
		t.Errorf("TimeoutOverride = %v, want 5m", cfg.TimeoutOverride)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad quality", func(c *Config) { c.Quality = "ultra" }, true},
		{"bad paper", func(c *Config) { c.Paper = "tabloid" }, true},
		{"dpi too low", func(c *Config) { c.DPI = 50 }, true},
		{"dpi too high", func(c *Config) { c.DPI = 1200 }, true},
		{"dpi zero uses preset", func(c *Config) { c.DPI = 0 }, false},
		{"dpi in range", func(c *Config) { c.DPI = 150 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"negative timeout", func(c *Config) { c.Timeouts.Medium = -time.Second }, true},
		{"history enabled without path", func(c *Config) { c.History.DBPath = "" }, true},
		{"history disabled without path", func(c *Config) {
			c.History.Enabled = false
			c.History.DBPath = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = "compact"
	cfg.Paper = "letter"

	s := cfg.EngineSettings()
	if s.DPI != 150 || s.JPEGQuality != 60 || s.PDFSettings != "/screen" {
		t.Errorf("compact preset = %+v", s)
	}
	if s.PaperWidthPts != 612 || s.PaperHeightPts != 792 {
		t.Errorf("letter size = %dx%d", s.PaperWidthPts, s.PaperHeightPts)
	}

	cfg.DPI = 240
	if got := cfg.EngineSettings().DPI; got != 240 {
		t.Errorf("DPI override = %d, want 240", got)
	}
}

func TestTimeoutPolicyRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeouts.Base = 45 * time.Second

	policy := cfg.TimeoutPolicy()
	if budget := policy.ForSize(1000); budget.Duration() != 45*time.Second+time.Minute {
		t.Errorf("small file budget = %v", budget.Duration())
	}
}
