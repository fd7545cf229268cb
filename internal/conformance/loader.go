package conformance

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed testdata/*.yaml
var suites embed.FS

// LoadedCase is a case together with the file and suite it came from.
type LoadedCase struct {
	File  string
	Suite string
	Case  Case
}

// LoadAll loads every embedded suite, sorted by file name.
func LoadAll() ([]LoadedCase, error) {
	return Load(suites, "testdata")
}

// Load reads every .yaml file in dir of fsys.
func Load(fsys fs.FS, dir string) ([]LoadedCase, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var loaded []LoadedCase
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		suite, err := loadSuite(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		for _, c := range suite.Cases {
			loaded = append(loaded, LoadedCase{File: entry.Name(), Suite: suite.Name, Case: c})
		}
	}
	return loaded, nil
}

// loadSuite parses a single YAML file
func loadSuite(fsys fs.FS, name string) (*Suite, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	for i, c := range suite.Cases {
		if c.Name == "" {
			return nil, fmt.Errorf("case %d has no name", i)
		}
		if c.Expect.Error != "" && c.Expect.Error != ErrExtraClose && c.Expect.Error != ErrMissingClose {
			return nil, fmt.Errorf("case %s: unknown error %q", c.Name, c.Expect.Error)
		}
	}
	return &suite, nil
}
