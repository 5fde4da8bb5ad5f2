package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Feature names in the fixed order the bundle's linear models expect.
var featureOrder = []string{
	"effective_time_ms",
	"has_plus2",
	"ao5_ms",
	"ao12_ms",
	"baseline50_ms",
	"std10_ms",
	"ratio_vs_baseline",
	"delta_vs_baseline_ms",
	"skill_prior_ms",
	"num_moves",
	"solve_index",
}

// linearModel is a logistic regression head stored in the bundle.
type linearModel struct {
	Weights map[string]float64 `json:"weights"`
	Bias    float64            `json:"bias"`
}

// predictProba applies the logistic head to a named feature vector.
func (m *linearModel) predictProba(features map[string]float64) float64 {
	z := m.Bias
	for name, w := range m.Weights {
		z += w * features[name]
	}
	return 1 / (1 + math.Exp(-z))
}

// Bundle is a versioned, on-disk scoring model: feature scaling, two risk
// heads, and the score curve shape.
type Bundle struct {
	Version    string             `json:"version"`
	Means      map[string]float64 `json:"means"`
	Scales     map[string]float64 `json:"scales"`
	DNFModel   linearModel        `json:"dnf_model"`
	Plus2Model linearModel        `json:"plus2_model"`
	Curve      struct {
		Steepness float64 `json:"steepness"`
	} `json:"curve"`
}

// scale standardizes raw features with the bundle's means and scales.
// Features without recorded scaling pass through unchanged.
func (b *Bundle) scale(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for name, v := range raw {
		if s, ok := b.Scales[name]; ok && s != 0 {
			out[name] = (v - b.Means[name]) / s
		} else {
			out[name] = v
		}
	}
	return out
}

// SaveBundle writes the bundle to <dir>/<version>.json. The write goes
// through a temp file and rename so a concurrent LoadBundle never sees a
// partial document.
func SaveBundle(dir string, b *Bundle) error {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bundle %s: %w", b.Version, err)
	}
	tmp, err := os.CreateTemp(dir, b.Version+".*.tmp")
	if err != nil {
		return fmt.Errorf("write bundle %s: %w", b.Version, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle %s: %w", b.Version, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write bundle %s: %w", b.Version, err)
	}
	path := filepath.Join(dir, b.Version+".json")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write bundle %s: %w", b.Version, err)
	}
	return nil
}

// LoadBundle reads and validates the bundle for version from dir. The file
// layout is one JSON document per version at <dir>/<version>.json.
func LoadBundle(dir, version string) (*Bundle, error) {
	path := filepath.Join(dir, version+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrModelLoad, path, err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrModelLoad, path, err)
	}
	if b.Version == "" {
		b.Version = version
	}
	if b.Version != version {
		return nil, fmt.Errorf("%w: bundle %s declares version %q", ErrModelLoad, path, b.Version)
	}
	if b.Curve.Steepness <= 0 {
		b.Curve.Steepness = defaultSteepness
	}
	return &b, nil
}
