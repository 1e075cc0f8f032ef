package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// LoadFiles reads every listing feed matched by patterns. Patterns may use
// ** for recursive matching. Files are read in sorted order and each must
// hold a JSON or YAML array of listings. A glob that matches nothing is
// not an error; a plain path that does not exist is.
func LoadFiles(patterns []string) ([]map[string]any, error) {
	var out []map[string]any
	for _, pattern := range patterns {
		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			return nil, fmt.Errorf("seed file %s: %w", pattern, os.ErrNotExist)
		}
		sort.Strings(matches)

		for _, path := range matches {
			listings, err := ReadFile(path)
			if err != nil {
				return nil, err
			}
			out = append(out, listings...)
		}
	}
	return out, nil
}

// ReadFile reads one feed file. The format follows the extension.
func ReadFile(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var listings []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &listings)
	default:
		err = json.Unmarshal(data, &listings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return listings, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return doublestar.FilepathGlob(pattern)
	}
	return filepath.Glob(pattern)
}
