// Package tod stands in for the external preprocessing/demodulation stack:
// it resolves per-observation detector metadata, injects a simulated sky
// signal into demodulated timestreams, and bins them into weighted maps
// under a unit noise model. The math is deliberately minimal; everything
// beyond coordination is delegated territory.
package tod

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the preprocessing configuration consumed by the filter driver.
type Config struct {
	// ContextFile points at the metadata context (see Context).
	ContextFile string `yaml:"context_file"`
	// Site of the observations, e.g. "so_sat1".
	Site string `yaml:"site"`
	// SiteLatDeg is the site latitude used for the az/el to sky rotation.
	SiteLatDeg float64 `yaml:"site_lat_deg"`
	// Samples per detector timestream.
	Samples int `yaml:"n_samples"`
	// ScanAzThrowDeg is the full azimuth throw of the boresight scan.
	ScanAzThrowDeg float64 `yaml:"scan_az_throw_deg"`
	// SampleRateHz paces the scan across the timestream.
	SampleRateHz float64 `yaml:"sample_rate_hz"`
}

// LoadConfig reads and validates a preprocessing config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preprocess config: %w", err)
	}
	cfg := &Config{
		Site:           "so_sat1",
		SiteLatDeg:     -22.96,
		Samples:        2048,
		ScanAzThrowDeg: 40,
		SampleRateHz:   4,
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing preprocess config %s: %w", path, err)
	}
	if cfg.ContextFile == "" {
		return nil, fmt.Errorf("preprocess config %s: context_file is required", path)
	}
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("preprocess config %s: n_samples must be positive", path)
	}
	return cfg, nil
}
