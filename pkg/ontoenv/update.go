// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/internetofwater/ontoenv/internal/ontology"
)

// UpdateReport summarizes what a refresh changed.
type UpdateReport struct {
	Added   []ontology.GraphIdentifier
	Removed []ontology.GraphIdentifier
	Failed  []string
}

// Update rediscovers files under the configured locations and refreshes the
// environment. Entries whose source disappeared are removed. When all is
// set every known entry is re-ingested; otherwise only new files, files
// whose mtime advanced, and remote entries past their TTL are.
func (e *OntoEnv) Update(all bool) error {
	_, err := e.UpdateWithReport(all)
	return err
}

// UpdateWithReport is Update returning the change summary.
func (e *OntoEnv) UpdateWithReport(all bool) (*UpdateReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardWrite("update"); err != nil {
		return nil, err
	}
	report := &UpdateReport{}

	// drop entries whose source file is gone
	for _, key := range e.staleEntryKeys() {
		ont := e.entries[key]
		log.Infof("removing %s: source no longer present", ont.ID)
		report.Removed = append(report.Removed, ont.ID)
		e.removeEntryLocked(key)
	}

	locations, err := e.refreshCandidates(all)
	if err != nil {
		return nil, err
	}

	// local files are opened in parallel to check readability before the
	// serial ingest below; failures surface per-location
	readable := e.checkReadable(locations)

	e.failedResolutions = make(map[string]struct{})
	opts := DefaultAddOptions()
	opts.Overwrite = true
	opts.Force = true
	// every candidate is ingested before imports are followed, so an import
	// of another candidate resolves locally instead of being fetched
	opts.NoImports = true
	var ingested []ontology.Location
	for _, loc := range locations {
		if msg, bad := readable[loc.Key()]; bad {
			if e.cfg.Strict {
				return nil, msg
			}
			log.Warnf("failed to read ontology %s: %v", loc, msg)
			report.Failed = append(report.Failed, loc.String())
			continue
		}
		id, err := e.addLocked(loc, opts)
		if err != nil {
			if e.cfg.Strict {
				return nil, err
			}
			log.Warnf("failed to ingest %s: %v", loc, err)
			report.Failed = append(report.Failed, loc.String())
			continue
		}
		if ont := e.entries[id.Key()]; ont != nil && !e.cfg.OntologyAllowed(ont.ID.Name) {
			log.Infof("dropping %s: filtered by ontology patterns", ont.ID.Name)
			e.removeEntryLocked(id.Key())
			continue
		}
		report.Added = append(report.Added, id)
		ingested = append(ingested, loc)
	}

	for _, loc := range ingested {
		if _, err := e.addLocked(loc, DefaultAddOptions()); err != nil {
			if e.cfg.Strict {
				return nil, err
			}
			log.Warnf("failed to ingest imports of %s: %v", loc, err)
		}
	}

	if err := e.flushLocked(); err != nil {
		return nil, err
	}
	return report, nil
}

// staleEntryKeys lists entries whose file location no longer exists.
func (e *OntoEnv) staleEntryKeys() []string {
	var out []string
	for key, ont := range e.entries {
		loc := ont.ID.Location
		if !loc.IsFile() {
			continue
		}
		if _, err := os.Stat(loc.Path()); os.IsNotExist(err) {
			out = append(out, key)
		}
	}
	return out
}

// refreshCandidates returns the locations to (re-)ingest.
func (e *OntoEnv) refreshCandidates(all bool) ([]ontology.Location, error) {
	discovered, err := e.findFiles()
	if err != nil {
		return nil, err
	}

	candidates := make(map[string]ontology.Location)
	for _, loc := range discovered {
		if _, known := e.byLocation[loc.Key()]; !known {
			candidates[loc.Key()] = loc
		}
	}

	for _, ont := range e.entries {
		loc := ont.ID.Location
		if _, ok := candidates[loc.Key()]; ok {
			continue
		}
		switch {
		case all:
			candidates[loc.Key()] = loc
		case loc.IsFile():
			info, err := os.Stat(loc.Path())
			if err != nil {
				continue
			}
			if info.ModTime().After(ont.Fetch.SourceMtime) {
				candidates[loc.Key()] = loc
			}
		case loc.IsURL():
			if e.cfg.Offline {
				continue
			}
			if time.Since(ont.Fetch.LastFetched) >= e.cfg.RemoteTTL() {
				candidates[loc.Key()] = loc
			}
		}
	}

	out := make([]ontology.Location, 0, len(candidates))
	for _, loc := range discovered {
		if l, ok := candidates[loc.Key()]; ok {
			out = append(out, l)
			delete(candidates, loc.Key())
		}
	}
	for _, loc := range candidates {
		out = append(out, loc)
	}
	return out, nil
}

// checkReadable opens the candidate files concurrently and reports the ones
// that cannot be read. Network locations are left for the serial ingest.
func (e *OntoEnv) checkReadable(locations []ontology.Location) map[string]error {
	var group errgroup.Group
	group.SetLimit(8)
	type result struct {
		key string
		err error
	}
	results := make(chan result, len(locations))
	for _, loc := range locations {
		if !loc.IsFile() {
			continue
		}
		group.Go(func() error {
			f, err := os.Open(loc.Path())
			if err == nil {
				_ = f.Close()
			}
			results <- result{key: loc.Key(), err: err}
			return nil
		})
	}
	_ = group.Wait()
	close(results)

	out := make(map[string]error)
	for r := range results {
		if r.err != nil {
			out[r.key] = r.err
		}
	}
	return out
}
