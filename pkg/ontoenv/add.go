// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/depgraph"
	"github.com/internetofwater/ontoenv/internal/fetch"
	"github.com/internetofwater/ontoenv/internal/graph"
	"github.com/internetofwater/ontoenv/internal/ontology"
	"github.com/internetofwater/ontoenv/internal/parse"
)

// AddOptions controls one ingestion.
type AddOptions struct {
	// Overwrite allows replacing an entry whose content hash changed.
	Overwrite bool
	// Force refetches even when a cached entry exists for the location.
	Force bool
	// NoImports skips the transitive fetch of owl:imports.
	NoImports bool
	// Depth bounds the import recursion; negative means unbounded.
	Depth int
	// Format overrides the detected serialization.
	Format parse.Format
}

// DefaultAddOptions returns the options used by a plain add.
func DefaultAddOptions() AddOptions {
	return AddOptions{Depth: -1}
}

// Add ingests the ontology at the location (file path or URL) and, unless
// NoImports is set, its transitive imports breadth-first.
func (e *OntoEnv) Add(location string, opts AddOptions) (ontology.GraphIdentifier, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardWrite("add"); err != nil {
		return ontology.GraphIdentifier{}, err
	}
	loc, err := ontology.ParseLocation(location)
	if err != nil {
		return ontology.GraphIdentifier{}, err
	}
	e.failedResolutions = make(map[string]struct{})
	id, err := e.addLocked(loc, opts)
	if err != nil {
		return ontology.GraphIdentifier{}, err
	}
	if err := e.flushLocked(); err != nil {
		return ontology.GraphIdentifier{}, err
	}
	return id, nil
}

// AddNoImports ingests a single graph, leaving its imports dangling unless
// they already resolve.
func (e *OntoEnv) AddNoImports(location string, overwrite bool) (ontology.GraphIdentifier, error) {
	opts := DefaultAddOptions()
	opts.Overwrite = overwrite
	opts.NoImports = true
	return e.Add(location, opts)
}

type queueItem struct {
	loc   ontology.Location
	depth int
	// path holds the raw import IRIs that led here, for error reporting
	path []string
}

// addLocked runs the ingestion work queue under the writer lock.
func (e *OntoEnv) addLocked(root ontology.Location, opts AddOptions) (ontology.GraphIdentifier, error) {
	queue := []queueItem{{loc: root, path: []string{root.String()}}}
	visited := map[string]struct{}{root.Key(): {}}
	var rootID ontology.GraphIdentifier

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		isRoot := item.depth == 0

		// imports never inherit the caller's overwrite or force flags
		itemOpts := opts
		if !isRoot {
			itemOpts.Overwrite = false
			itemOpts.Force = false
			itemOpts.Format = parse.Unknown
		}
		ont, err := e.ingestOne(item.loc, itemOpts)
		if err != nil {
			if isRoot || e.cfg.Strict {
				return ontology.GraphIdentifier{}, annotateImport(err, item.path)
			}
			log.Warnf("failed to ingest %s: %v", item.loc, err)
			e.failedResolutions[item.loc.IRI()] = struct{}{}
			continue
		}
		if isRoot {
			rootID = ont.ID
		}
		if opts.NoImports {
			break
		}
		if opts.Depth >= 0 && item.depth >= opts.Depth {
			continue
		}

		for _, raw := range ont.Imports {
			if _, failed := e.failedResolutions[raw]; failed {
				continue
			}
			if target, _ := e.resolveIRI(raw); target != nil {
				continue
			}
			loc, err := ontology.ParseLocation(raw)
			if err != nil {
				if e.cfg.Strict {
					return ontology.GraphIdentifier{}, annotateImport(err, append(item.path, raw))
				}
				log.Warnf("cannot treat import %s as a location: %v", raw, err)
				e.failedResolutions[raw] = struct{}{}
				continue
			}
			if _, ok := visited[loc.Key()]; ok {
				continue
			}
			visited[loc.Key()] = struct{}{}
			queue = append(queue, queueItem{
				loc:   loc,
				depth: item.depth + 1,
				path:  append(append([]string(nil), item.path...), raw),
			})
		}
	}
	return rootID, nil
}

// ingestOne runs the single-graph pipeline: fetch, parse, identify, store,
// wire into the dependency graph.
func (e *OntoEnv) ingestOne(loc ontology.Location, opts AddOptions) (*ontology.Ontology, error) {
	var existing *ontology.Ontology
	if key, ok := e.byLocation[loc.Key()]; ok {
		existing = e.entries[key]
	}
	// a cached URL is a hit unless the caller forces a refresh; files get a
	// conditional fetch below so an advanced mtime is noticed
	if existing != nil && !opts.Force && loc.IsURL() {
		return existing, nil
	}

	var prev *ontology.FetchMetadata
	if existing != nil {
		prev = &existing.Fetch
	}

	res, err := e.fetchBytes(loc, prev)
	if err != nil {
		return nil, err
	}
	if res.NotModified && existing != nil {
		touchEntry(existing)
		existing.Fetch = res.Meta
		return existing, nil
	}

	format := res.Format
	if opts.Format != parse.Unknown {
		format = opts.Format
	}
	start := time.Now()
	g, err := parse.Parse(res.Bytes, format, loc.IRI())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", loc, err)
	}
	log.Infof("parsed %s: %d triples in %s", loc, g.Len(), time.Since(start))

	decls := parse.Extract(g)
	name := decls.Ontology
	if !decls.HasOntology {
		if e.cfg.RequireOntologyNames {
			return nil, fmt.Errorf("%w in %s", ErrMissingOntologyDeclaration, loc)
		}
		log.Warnf("no ontology declaration found in %s, using the location as the name", loc)
		name = loc.IRI()
	}

	hash := g.ContentHash()
	id := ontology.NewIdentifier(name, decls.Version, loc)
	key := id.Key()

	if cur, ok := e.entries[key]; ok {
		if cur.Hash == hash {
			touchEntry(cur)
			cur.Fetch = res.Meta
			return cur, nil
		}
		if !opts.Overwrite && !opts.Force {
			return nil, fmt.Errorf("%w: %s", ErrHashMismatch, id)
		}
	}

	ont := &ontology.Ontology{
		ID:                id,
		Hash:              hash,
		Imports:           decls.Imports,
		VersionProperties: decls.VersionProperties,
		NamespaceMap:      decls.NamespaceMap,
		Fetch:             res.Meta,
		TripleCount:       g.Len(),
		Generation:        e.nowGeneration(),
	}
	e.setEntry(ont, g)
	return ont, nil
}

// fetchBytes retrieves the location, falling back to the raw byte cache for
// URLs that cannot be fetched (offline mode or network failure).
func (e *OntoEnv) fetchBytes(loc ontology.Location, prev *ontology.FetchMetadata) (*fetch.Result, error) {
	res, err := e.fetcher.Fetch(loc, prev)
	if err == nil {
		if loc.IsURL() && e.cache != nil && len(res.Bytes) > 0 {
			e.cache.Store(loc.Key(), res.Bytes)
		}
		return res, nil
	}
	if loc.IsURL() && e.cache != nil {
		if b, ok := e.cache.Get(loc.Key()); ok {
			log.Warnf("using cached bytes for %s: %v", loc, err)
			format := parse.FromPath(loc.String())
			if format == parse.Unknown {
				format = parse.Sniff(b)
			}
			return &fetch.Result{
				Bytes:  b,
				Format: format,
				Meta:   ontology.FetchMetadata{LastFetched: time.Now()},
				Origin: fetch.OriginURL,
			}, nil
		}
	}
	return nil, err
}

// setEntry installs or replaces an entry and its graph, maintaining the
// secondary indexes, aliases, and the dependency graph.
func (e *OntoEnv) setEntry(ont *ontology.Ontology, g *graph.Graph) {
	key := ont.ID.Key()
	locKey := ont.ID.Location.Key()

	// a location maps to at most one identifier; re-ingesting a file whose
	// declared name changed replaces the old entry
	if oldKey, ok := e.byLocation[locKey]; ok && oldKey != key {
		e.removeEntryLocked(oldKey)
	}

	if _, replacing := e.entries[key]; !replacing {
		e.byName[ont.ID.Name] = append(e.byName[ont.ID.Name], key)
	}
	e.entries[key] = ont
	e.graphs[key] = g
	e.byLocation[locKey] = key
	touchEntry(ont)

	locIRI := ont.ID.Location.IRI()
	if locIRI != ont.ID.Name {
		// aliases always point at a concrete identifier, so chains collapse
		// at insert time by construction
		e.aliases[locIRI] = key
	}

	node := e.deps.AddNode(key)
	e.deps.RemoveEdges(node)
	for _, raw := range ont.Imports {
		to := depgraph.Unresolved
		if target := e.lookupByIRI(raw); target != nil {
			if idx, ok := e.deps.Lookup(target.ID.Key()); ok {
				to = idx
			}
		}
		e.deps.AddEdge(node, raw, to)
	}
	// imports that were dangling on this name or its aliases now resolve
	e.deps.ResolveDangling(ont.ID.Name, node)
	e.deps.ResolveDangling(locIRI, node)
	if !ont.ID.Unversioned() {
		e.deps.ResolveDangling(ont.ID.Version, node)
	}
}

// Remove deletes the graph for the resolved target from the environment.
// Incoming imports become dangling; aliases pointing at it are dropped.
func (e *OntoEnv) Remove(target ResolveTarget) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardWrite("remove"); err != nil {
		return err
	}
	ont, err := e.resolveLocked(target)
	if err != nil {
		return err
	}
	e.removeEntryLocked(ont.ID.Key())
	return e.flushLocked()
}

func (e *OntoEnv) removeEntryLocked(key string) {
	ont, ok := e.entries[key]
	if !ok {
		return
	}
	delete(e.entries, key)
	delete(e.graphs, key)

	keys := e.byName[ont.ID.Name]
	for i, k := range keys {
		if k == key {
			keys = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	if len(keys) == 0 {
		delete(e.byName, ont.ID.Name)
	} else {
		e.byName[ont.ID.Name] = keys
	}
	if cur, ok := e.byLocation[ont.ID.Location.Key()]; ok && cur == key {
		delete(e.byLocation, ont.ID.Location.Key())
	}
	for from, target := range e.aliases {
		if target == key {
			delete(e.aliases, from)
		}
	}
	if node, ok := e.deps.Lookup(key); ok {
		e.deps.RemoveNode(node)
	}
}

