// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package ontoenv is the environment facade: a lightweight package manager
// for RDF ontologies and their transitive owl:imports closures.
package ontoenv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/depgraph"
	"github.com/internetofwater/ontoenv/internal/fetch"
	"github.com/internetofwater/ontoenv/internal/graph"
	"github.com/internetofwater/ontoenv/internal/lockfile"
	"github.com/internetofwater/ontoenv/internal/ontology"
	"github.com/internetofwater/ontoenv/internal/policy"
	"github.com/internetofwater/ontoenv/internal/store/r5tu"
)

const (
	envDirName    = ".ontoenv"
	storeFileName = "store.r5tu"
	lockFileName  = "store.lock"
	configName    = "config.json"
	envStateName  = "environment.json"
	cacheDirName  = "cache"
)

// OntoEnv composes the fetcher, parser adapter, runtime and persistent
// stores, dependency graph, and resolver behind one facade. An instance may
// be shared across goroutines: reads run concurrently, mutating operations
// take the writer side of the internal lock.
type OntoEnv struct {
	mu sync.RWMutex

	cfg      *Config
	root     string
	dir      string
	readOnly bool
	closed   bool

	lock    *lockfile.Lock
	fetcher *fetch.Fetcher
	pol     policy.Policy
	cache   *byteCache

	// entries and graphs mirror the persistent store by identifier key
	entries map[string]*ontology.Ontology
	graphs  map[string]*graph.Graph

	byName     map[string][]string
	byLocation map[string]string
	aliases    map[string]string

	deps *depgraph.Graph
	// failedResolutions suppresses repeated fetch attempts within one
	// operation
	failedResolutions map[string]struct{}
	generation        uint64
}

func newEnv(cfg *Config) (*OntoEnv, error) {
	pol, err := policy.FromName(cfg.ResolutionPolicy)
	if err != nil {
		return nil, err
	}
	if err := cfg.compileOntologyFilters(); err != nil {
		return nil, err
	}
	e := &OntoEnv{
		cfg:               cfg,
		root:              cfg.Root,
		dir:               filepath.Join(cfg.Root, envDirName),
		fetcher:           fetch.NewFetcher(cfg.Offline, cfg.RemoteTTL()),
		pol:               pol,
		entries:           make(map[string]*ontology.Ontology),
		graphs:            make(map[string]*graph.Graph),
		byName:            make(map[string][]string),
		byLocation:        make(map[string]string),
		aliases:           make(map[string]string),
		deps:              depgraph.New(),
		failedResolutions: make(map[string]struct{}),
	}
	if !cfg.Temporary {
		e.cache = newByteCache(filepath.Join(e.dir, cacheDirName))
	}
	return e, nil
}

// Init creates a new environment under cfg.Root. An existing environment
// fails with ErrExists unless overwrite is set. Unless configured otherwise,
// the configured locations are scanned and ingested immediately.
func Init(cfg *Config, overwrite bool) (*OntoEnv, error) {
	cfg.applyDefaults()
	dir := filepath.Join(cfg.Root, envDirName)

	if !cfg.Temporary {
		if _, err := os.Stat(dir); err == nil {
			if !overwrite {
				return nil, fmt.Errorf("%w at %s, use overwrite to reinitialize", ErrExists, dir)
			}
			log.Infof("overwriting existing environment at %s", dir)
			if err := os.RemoveAll(dir); err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	e, err := newEnv(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Temporary {
		e.lock, err = lockfile.Acquire(filepath.Join(dir, lockFileName), lockfile.Exclusive, lockfile.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		if err := r5tu.NewWriter(filepath.Join(dir, storeFileName)).Finalize(); err != nil {
			_ = e.lock.Release()
			return nil, err
		}
		if err := cfg.Save(filepath.Join(dir, configName)); err != nil {
			_ = e.lock.Release()
			return nil, err
		}
	}

	if !cfg.UseCachedOntologies {
		if err := e.Update(false); err != nil {
			_ = e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Load opens an existing environment rooted at root, holding a shared lock
// when readOnly and an exclusive lock otherwise.
func Load(root string, readOnly bool) (*OntoEnv, error) {
	dir := filepath.Join(root, envDirName)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w at %s", ErrNoEnvironment, dir)
	}

	cfg, err := LoadConfig(filepath.Join(dir, configName))
	if err != nil {
		return nil, err
	}
	cfg.Root = root

	e, err := newEnv(cfg)
	if err != nil {
		return nil, err
	}
	e.readOnly = readOnly

	mode := lockfile.Exclusive
	if readOnly {
		mode = lockfile.Shared
	}
	e.lock, err = lockfile.Acquire(filepath.Join(dir, lockFileName), mode, lockfile.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	if err := e.loadState(); err != nil {
		_ = e.lock.Release()
		return nil, err
	}
	return e, nil
}

// LoadFromNearest discovers the nearest environment walking up from start.
func LoadFromNearest(start string, readOnly bool) (*OntoEnv, error) {
	root, ok := FindRoot(start)
	if !ok {
		return nil, ErrNoEnvironment
	}
	return Load(root, readOnly)
}

// envState is the persisted metadata snapshot next to the store file.
type envState struct {
	Ontologies []*ontology.Ontology `json:"ontologies"`
	Aliases    map[string]string    `json:"aliases,omitempty"`
	Generation uint64               `json:"generation"`
}

func (e *OntoEnv) loadState() error {
	stateBytes, err := os.ReadFile(filepath.Join(e.dir, envStateName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var state envState
	if err := json.Unmarshal(stateBytes, &state); err != nil {
		return fmt.Errorf("reading %s: %w", envStateName, err)
	}

	storePath := filepath.Join(e.dir, storeFileName)
	var file *r5tu.File
	if _, err := os.Stat(storePath); err == nil {
		file, err = r5tu.Open(storePath)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
	}

	for _, ont := range state.Ontologies {
		key := ont.ID.Key()
		e.entries[key] = ont
		e.byName[ont.ID.Name] = append(e.byName[ont.ID.Name], key)
		e.byLocation[ont.ID.Location.Key()] = key

		if file != nil && ont.Persisted {
			ref, ok := file.Lookup(ont.ID.Location.String(), ont.ID.Name)
			if !ok {
				return fmt.Errorf("%w: %s is marked persisted but missing from the store", r5tu.ErrCorrupt, ont.ID)
			}
			triples, err := file.Triples(ref)
			if err != nil {
				return err
			}
			g := graph.NewGraph()
			g.Insert(triples...)
			e.graphs[key] = g
		}
	}
	for from, key := range state.Aliases {
		if _, ok := e.entries[key]; ok {
			e.aliases[from] = key
		}
	}
	e.generation = state.Generation
	e.rebuildDependencyGraph()
	return nil
}

// rebuildDependencyGraph reconstructs nodes and edges from the entry table.
func (e *OntoEnv) rebuildDependencyGraph() {
	e.deps = depgraph.New()
	for key := range e.entries {
		e.deps.AddNode(key)
	}
	for key, ont := range e.entries {
		from, _ := e.deps.Lookup(key)
		for _, raw := range ont.Imports {
			to := depgraph.Unresolved
			if target := e.lookupByIRI(raw); target != nil {
				if id, ok := e.deps.Lookup(target.ID.Key()); ok {
					to = id
				}
			}
			e.deps.AddEdge(from, raw, to)
		}
	}
}

// Flush persists the runtime state: the store file is rewritten atomically,
// then the metadata and config snapshots.
func (e *OntoEnv) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *OntoEnv) flushLocked() error {
	if e.closed {
		return ErrClosed
	}
	if e.readOnly {
		return fmt.Errorf("%w: flush", ErrReadOnly)
	}
	if e.cfg.Temporary {
		return nil
	}

	w := r5tu.NewWriter(filepath.Join(e.dir, storeFileName))
	for key, ont := range e.entries {
		g, ok := e.graphs[key]
		if !ok {
			continue
		}
		w.AddGraph(ont.ID.Location.String(), ont.ID.Name, g.Triples())
		ont.Persisted = true
	}
	if err := w.Finalize(); err != nil {
		return err
	}

	state := envState{Aliases: e.aliases, Generation: e.generation}
	for _, ont := range e.entries {
		state.Ontologies = append(state.Ontologies, ont)
	}
	b, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(e.dir, envStateName), append(b, '\n'), 0644); err != nil {
		return err
	}
	return e.cfg.Save(filepath.Join(e.dir, configName))
}

// Close flushes writable environments, releases the lock, and marks the
// facade unusable. Closing twice is an error of kind Closed.
func (e *OntoEnv) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	var flushErr error
	if !e.readOnly && !e.cfg.Temporary {
		flushErr = e.flushLocked()
	}
	e.closed = true
	if err := e.lock.Release(); err != nil && flushErr == nil {
		flushErr = err
	}
	e.lock = nil
	return flushErr
}

// Reset removes the nearest environment directory entirely.
func Reset(start string) error {
	root, ok := FindRoot(start)
	if !ok {
		return nil
	}
	dir := filepath.Join(root, envDirName)
	log.Infof("removing ontology environment at %s", dir)
	return os.RemoveAll(dir)
}

func (e *OntoEnv) guardRead() error {
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *OntoEnv) guardWrite(op string) error {
	if e.closed {
		return ErrClosed
	}
	if e.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, op)
	}
	return nil
}

// Root returns the directory containing .ontoenv.
func (e *OntoEnv) Root() string { return e.root }

// Config returns the active configuration.
func (e *OntoEnv) Config() *Config { return e.cfg }

// StorePath returns the persistent store path, or "" for temporary
// environments.
func (e *OntoEnv) StorePath() string {
	if e.cfg.Temporary {
		return ""
	}
	return filepath.Join(e.dir, storeFileName)
}

// SetResolutionPolicy switches the active policy.
func (e *OntoEnv) SetResolutionPolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	pol, err := policy.FromName(name)
	if err != nil {
		return err
	}
	e.pol = pol
	e.cfg.ResolutionPolicy = name
	return nil
}

// SetOffline toggles offline mode for subsequent fetches.
func (e *OntoEnv) SetOffline(offline bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Offline = offline
	e.fetcher.Offline = offline
}

// SetStrict toggles strict mode.
func (e *OntoEnv) SetStrict(strict bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Strict = strict
}

func (e *OntoEnv) nowGeneration() uint64 {
	e.generation++
	return e.generation
}

// touchEntry refreshes the fetch timestamp on a cache hit.
func touchEntry(ont *ontology.Ontology) {
	ont.Touch(time.Now())
}
