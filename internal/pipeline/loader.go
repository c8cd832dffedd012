package pipeline

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
)

// DefaultMaxBundleBytes caps how much of a bundle file is read.
const DefaultMaxBundleBytes = 32 << 20

// Loader reads patient bundles from disk
type Loader struct {
	maxBytes int64
}

// NewLoader creates a loader that reads at most maxBytes per file
func NewLoader(maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBundleBytes
	}
	return &Loader{maxBytes: maxBytes}
}

// Load reads a .json, .yaml or .yml bundle.
func (l *Loader) Load(path string) (*model.PatientBundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open bundle")
	}
	defer func() { _ = f.Close() }()

	// Read with size limit
	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, errors.Newf("%s exceeds %d bytes", path, l.maxBytes)
	}

	bundle, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if bundle.PatientID == "" {
		bundle.PatientID = bundleName(path)
	}
	return bundle, nil
}

// Decode parses bundle data. YAML is normalised to JSON first so that both
// formats share one set of decoding rules for facts, details and dates.
func Decode(data []byte, ext string) (*model.PatientBundle, error) {
	switch strings.ToLower(ext) {
	case ".json":
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse yaml")
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "normalise yaml")
		}
		data = converted
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported bundle format %q", ext),
			"use .json, .yaml or .yml",
		)
	}

	var bundle model.PatientBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// IsBundle reports whether a path has a bundle extension.
func IsBundle(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Discover expands directories into the bundle files they contain (not
// recursive) and returns all paths sorted and de-duplicated.
func Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrap(err, "stat input")
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read dir %s", p)
		}
		for _, e := range entries {
			if !e.IsDir() && IsBundle(e.Name()) {
				add(filepath.Join(p, e.Name()))
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

// bundleName derives a patient id from a file name
func bundleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
