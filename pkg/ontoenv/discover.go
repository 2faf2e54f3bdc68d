// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/ontology"
)

// FindRoot locates the environment root. ONTOENV_DIR overrides the search;
// otherwise the directories from start upward are checked for a .ontoenv
// child. Returns the directory containing .ontoenv.
func FindRoot(start string) (string, bool) {
	if dir := os.Getenv("ONTOENV_DIR"); dir != "" {
		// pointing at .ontoenv itself means its parent is the root
		if filepath.Base(dir) == envDirName {
			return filepath.Dir(dir), true
		}
		return dir, true
	}
	cur := start
	for {
		info, err := os.Stat(filepath.Join(cur, envDirName))
		if err == nil && info.IsDir() {
			return cur, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}

// findFiles walks the configured locations and returns every file passing
// the include/exclude globs, sorted for determinism.
func (e *OntoEnv) findFiles() ([]ontology.Location, error) {
	if e.cfg.NoSearch {
		return nil, nil
	}
	seen := make(map[string]ontology.Location)
	for _, root := range e.cfg.Locations {
		info, err := os.Stat(root)
		if err != nil {
			log.Warnf("location does not exist: %s", root)
			continue
		}
		if !info.IsDir() {
			if e.cfg.IsIncluded(root) {
				loc, err := ontology.FileLocation(root)
				if err != nil {
					return nil, err
				}
				seen[loc.Key()] = loc
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warnf("skipping %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				// never descend into the environment directory itself
				if d.Name() == envDirName {
					return filepath.SkipDir
				}
				return nil
			}
			if !e.cfg.IsIncluded(path) {
				return nil
			}
			loc, err := ontology.FileLocation(path)
			if err != nil {
				return err
			}
			seen[loc.Key()] = loc
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ontology.Location, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out, nil
}
