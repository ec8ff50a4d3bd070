package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/atsdesk/atsdesk/app/api"
)

// Manifest describes a bulk match job in yaml
type Manifest struct {
	Label   string             `yaml:"label,omitempty" json:"label,omitempty" jsonschema:"description=Run label shown in history and reports"`
	JD      string             `yaml:"jd" json:"jd" jsonschema:"required,description=Job description file (pdf, docx or txt)"`
	CVs     []string           `yaml:"cvs" json:"cvs" jsonschema:"required,minItems=1,description=CV files or glob patterns"`
	Weights map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty" jsonschema:"description=Matching weights by component (title, skills, certifications, experience, location)"`
	Export  string             `yaml:"export,omitempty" json:"export,omitempty" jsonschema:"description=Write xlsx report to this path"`
}

// LoadManifest reads manifest and resolves its paths relative to the manifest location.
// CV globs are expanded, sorted and de-duplicated.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // manifest path is user input by design
	if err != nil {
		return Manifest{}, fmt.Errorf("can't read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("can't parse manifest %s: %w", path, err)
	}
	if m.JD == "" {
		return Manifest{}, errors.New("manifest has no jd")
	}

	base := filepath.Dir(path)
	m.JD = resolve(base, m.JD)
	if m.Export != "" {
		m.Export = resolve(base, m.Export)
	}
	cvs, err := ExpandPaths(base, m.CVs)
	if err != nil {
		return Manifest{}, err
	}
	m.CVs = cvs
	if len(m.CVs) == 0 {
		return Manifest{}, api.ErrNoCVs
	}
	return m, nil
}

// Request makes job request from manifest
func (m Manifest) Request() Request {
	req := Request{Label: m.Label, JD: m.JD, CVs: m.CVs}
	if len(m.Weights) > 0 {
		req.Weights = api.Weights(m.Weights)
	}
	return req
}

// ExpandPaths resolves patterns relative to base and expands globs. Patterns without glob
// characters are kept as is even if the file is missing, so the error surfaces when the file is opened.
func ExpandPaths(base string, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var res []string
	for _, p := range patterns {
		p = resolve(base, p)
		matches := []string{p}
		if hasMeta(p) {
			m, err := filepath.Glob(p)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", p, err)
			}
			sort.Strings(m)
			matches = m
		}
		for _, f := range matches {
			if seen[f] {
				continue
			}
			seen[f] = true
			res = append(res, f)
		}
	}
	return res, nil
}

func resolve(base, p string) string {
	if base == "" || filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func hasMeta(p string) bool {
	for _, c := range p {
		switch c {
		case '*', '?', '[':
			return true
		}
	}
	return false
}
