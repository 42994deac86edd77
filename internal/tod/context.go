package tod

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrMissingMetadata marks an observation whose preprocessing metadata is
// not archived. The driver skips such tasks and keeps going.
var ErrMissingMetadata = errors.New("preprocessing metadata not found")

// Context resolves per-observation detector metadata. The context file is a
// small YAML document naming the directory of per-observation metadata
// files (<obs_id>.yaml), resolved relative to the context file itself.
type Context struct {
	dir string
}

type contextFile struct {
	MetadataDir string `yaml:"metadata_dir"`
}

// NewContext opens the metadata context named by cfg.ContextFile.
func NewContext(cfg *Config) (*Context, error) {
	raw, err := os.ReadFile(cfg.ContextFile)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}
	var cf contextFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parsing context file %s: %w", cfg.ContextFile, err)
	}
	if cf.MetadataDir == "" {
		return nil, fmt.Errorf("context file %s: metadata_dir is required", cfg.ContextFile)
	}
	dir := cf.MetadataDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(cfg.ContextFile), dir)
	}
	return &Context{dir: dir}, nil
}

// Detector is one focal-plane element. Gamma is the polarization angle;
// NaN marks undefined pointing (not cut during preprocessing).
type Detector struct {
	Name  string  `yaml:"name"`
	Gamma float64 `yaml:"gamma_deg"`
	Xi    float64 `yaml:"xi_deg"`
	Eta   float64 `yaml:"eta_deg"`
}

// Meta is the detector-level metadata of one (observation, wafer,
// frequency-channel) unit.
type Meta struct {
	ObsID string
	Wafer string
	Freq  string
	ElDeg float64
	AzDeg float64
	Ctime int64
	Dets  []Detector
}

type obsFile struct {
	ObsID  string                           `yaml:"obs_id"`
	ElDeg  float64                          `yaml:"el_deg"`
	AzDeg  float64                          `yaml:"az_deg"`
	Ctime  int64                            `yaml:"ctime"`
	Wafers map[string]map[string][]Detector `yaml:"wafers"`
}

// Meta loads the metadata for one observation restricted to a wafer slot
// and frequency channel. A missing observation file, wafer or channel
// reports ErrMissingMetadata.
func (c *Context) Meta(obsID, wafer, freq string) (*Meta, error) {
	raw, err := os.ReadFile(filepath.Join(c.dir, obsID+".yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, obsID)
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", obsID, err)
	}
	var of obsFile
	if err := yaml.Unmarshal(raw, &of); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", obsID, err)
	}
	byFreq, ok := of.Wafers[wafer]
	if !ok {
		return nil, fmt.Errorf("%w: %s wafer %s", ErrMissingMetadata, obsID, wafer)
	}
	dets, ok := byFreq[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %s wafer %s channel %s", ErrMissingMetadata, obsID, wafer, freq)
	}
	return &Meta{
		ObsID: obsID,
		Wafer: wafer,
		Freq:  freq,
		ElDeg: of.ElDeg,
		AzDeg: of.AzDeg,
		Ctime: of.Ctime,
		Dets:  append([]Detector(nil), dets...),
	}, nil
}

// Thin keeps every stride-th detector (focal-plane thinning). Stride <= 1
// keeps everything.
func (m *Meta) Thin(stride int) {
	if stride <= 1 {
		return
	}
	kept := m.Dets[:0]
	for i, d := range m.Dets {
		if i%stride == 0 {
			kept = append(kept, d)
		}
	}
	m.Dets = kept
}

// DropUndefinedPointing removes detectors whose polarization angle is NaN.
func (m *Meta) DropUndefinedPointing() {
	kept := m.Dets[:0]
	for _, d := range m.Dets {
		if !math.IsNaN(d.Gamma) {
			kept = append(kept, d)
		}
	}
	m.Dets = kept
}
