// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/fetch"
	"github.com/internetofwater/ontoenv/internal/lockfile"
	"github.com/internetofwater/ontoenv/internal/store/r5tu"
	"github.com/internetofwater/ontoenv/pkg/ontoenv"
)

type InitCmd struct {
	Locations            []string `arg:"positional" help:"directories to scan for ontology files"`
	Overwrite            bool     `arg:"--overwrite" help:"replace an existing environment"`
	Offline              bool     `arg:"--offline" help:"never fetch remote ontologies"`
	Strict               bool     `arg:"--strict" help:"fail on any resolution or fetch error"`
	Policy               string   `arg:"--policy" default:"default" help:"resolution policy: default, latest, or version"`
	RequireOntologyNames bool     `arg:"--require-ontology-names" help:"reject graphs without an owl:Ontology declaration"`
	Includes             []string `arg:"--includes" help:"glob patterns for files to scan"`
	Excludes             []string `arg:"--excludes" help:"glob patterns for files to skip"`
	IncludeOntology      []string `arg:"--include-ontology" help:"regexes whitelisting ontology IRIs"`
	ExcludeOntology      []string `arg:"--exclude-ontology" help:"regexes blacklisting ontology IRIs"`
	NoSearch             bool     `arg:"--no-search" help:"do not scan any directories"`
	RemoteCacheTTLSecs   int      `arg:"--remote-cache-ttl-secs" default:"86400" help:"seconds before remote ontologies are refetched"`
	Temporary            bool     `arg:"--temporary" help:"keep the environment in memory only"`
}

type AddCmd struct {
	Location  string `arg:"positional,required" help:"file path or URL of the ontology"`
	NoImports bool   `arg:"--no-imports" help:"do not fetch the transitive imports"`
	Overwrite bool   `arg:"--overwrite" help:"replace the entry if the content changed"`
}

type UpdateCmd struct {
	All                bool `arg:"--all" help:"re-ingest every known entry"`
	RemoteCacheTTLSecs int  `arg:"--remote-cache-ttl-secs" default:"-1" help:"override the remote cache TTL for this run"`
}

type ClosureCmd struct {
	IRI               string `arg:"positional,required" help:"ontology IRI to compute the closure of"`
	Destination       string `arg:"positional" help:"output file, defaults to stdout"`
	RewriteSHPrefixes bool   `arg:"--rewrite-sh-prefixes" default:"true" help:"retarget sh:prefixes at the root ontology"`
	RemoveOwlImports  bool   `arg:"--remove-owl-imports" default:"true" help:"drop owl:imports from the merged graph"`
	Format            string `arg:"--format" default:"turtle" help:"output format: turtle, ntriples, or jsonld"`
}

type GetCmd struct {
	IRI      string `arg:"positional,required" help:"ontology IRI to print"`
	Format   string `arg:"--format" default:"turtle" help:"output format: turtle, ntriples, or jsonld"`
	Output   string `arg:"--output" help:"output file, defaults to stdout"`
	Location string `arg:"--location" help:"disambiguate by source location"`
}

type ListCmd struct {
	What string `arg:"positional" default:"ontologies" help:"what to list: ontologies or missing"`
	JSON bool   `arg:"--json" help:"emit JSON"`
}

type WhyCmd struct {
	IRIs []string `arg:"positional,required" help:"ontology IRIs to explain"`
	JSON bool     `arg:"--json" help:"emit JSON"`
}

type DumpCmd struct {
	Contains string `arg:"positional" help:"only show ontologies whose name contains this string"`
	JSON     bool   `arg:"--json" help:"emit JSON"`
}

type StatusCmd struct {
	JSON bool `arg:"--json" help:"emit JSON"`
}

type DepGraphCmd struct{}

type DoctorCmd struct{}

type ResetCmd struct{}

type ConfigCmd struct {
	Action string `arg:"positional,required" help:"list, get, set, add, or remove"`
	Key    string `arg:"positional" help:"config key"`
	Value  string `arg:"positional" help:"value for set/add/remove"`
}

type args struct {
	Init     *InitCmd     `arg:"subcommand:init" help:"create a new ontology environment"`
	Add      *AddCmd      `arg:"subcommand:add" help:"add an ontology and its imports"`
	Update   *UpdateCmd   `arg:"subcommand:update" help:"refresh the environment from its sources"`
	Closure  *ClosureCmd  `arg:"subcommand:closure" help:"materialize the imports closure of an ontology"`
	Get      *GetCmd      `arg:"subcommand:get" help:"print a single cached graph"`
	List     *ListCmd     `arg:"subcommand:list" help:"list ontologies or missing imports"`
	Why      *WhyCmd      `arg:"subcommand:why" help:"show the import chains that reach an ontology"`
	Dump     *DumpCmd     `arg:"subcommand:dump" help:"print the full environment state"`
	Status   *StatusCmd   `arg:"subcommand:status" help:"print environment status"`
	DepGraph *DepGraphCmd `arg:"subcommand:dep-graph" help:"print the dependency graph as GraphViz dot"`
	Doctor   *DoctorCmd   `arg:"subcommand:doctor" help:"check the environment for problems"`
	Reset    *ResetCmd    `arg:"subcommand:reset" help:"delete the environment directory"`
	Config   *ConfigCmd   `arg:"subcommand:config" help:"inspect or edit the persisted configuration"`

	LogLevel string `arg:"--log-level,env:ONTOENV_LOG" default:"WARN" help:"log level for the ontoenv logger"`
}

func (args) Description() string {
	return "ontoenv manages a local environment of RDF ontologies and their owl:imports closures"
}

// exit codes, stable for scripting
const (
	exitOK          = 0
	exitUserError   = 1
	exitNoEnv       = 2
	exitLockBusy    = 3
	exitCorrupt     = 4
	exitNetworkInfo = 5
)

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ontoenv.ErrNoEnvironment):
		return exitNoEnv
	case errors.Is(err, lockfile.ErrBusy):
		return exitLockBusy
	case errors.Is(err, r5tu.ErrCorrupt):
		return exitCorrupt
	}
	var offline *fetch.OfflineError
	if errors.As(err, &offline) {
		return exitNetworkInfo
	}
	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) {
		return exitNetworkInfo
	}
	return exitUserError
}

func main() {
	var cli args
	parser := arg.MustParse(&cli)

	if level, err := log.ParseLevel(cli.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", cli.LogLevel)
		os.Exit(exitUserError)
	}

	if parser.Subcommand() == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(exitUserError)
	}

	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "ontoenv: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(cli args) error {
	switch {
	case cli.Init != nil:
		return runInit(cli.Init)
	case cli.Reset != nil:
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		return ontoenv.Reset(cwd)
	case cli.Add != nil:
		return withEnv(false, func(env *ontoenv.OntoEnv) error { return runAdd(env, cli.Add) })
	case cli.Update != nil:
		return withEnv(false, func(env *ontoenv.OntoEnv) error { return runUpdate(env, cli.Update) })
	case cli.Closure != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error { return runClosure(env, cli.Closure) })
	case cli.Get != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error { return runGet(env, cli.Get) })
	case cli.List != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error { return runList(env, cli.List) })
	case cli.Why != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error { return runWhy(env, cli.Why) })
	case cli.Dump != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error { return runDump(env, cli.Dump) })
	case cli.Status != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error { return runStatus(env, cli.Status) })
	case cli.DepGraph != nil:
		return withEnv(true, func(env *ontoenv.OntoEnv) error {
			dot, err := env.DepGraphDot()
			if err != nil {
				return err
			}
			fmt.Print(dot)
			return nil
		})
	case cli.Doctor != nil:
		return withEnv(true, runDoctor)
	case cli.Config != nil:
		return runConfig(cli.Config)
	}
	return fmt.Errorf("no subcommand provided")
}

// withEnv loads the nearest environment, runs fn, and closes it.
func withEnv(readOnly bool, fn func(*ontoenv.OntoEnv) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	env, err := ontoenv.LoadFromNearest(cwd, readOnly)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()
	return fn(env)
}

func runInit(cmd *InitCmd) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg := ontoenv.NewConfig(cwd)
	if len(cmd.Locations) > 0 {
		cfg.Locations = cmd.Locations
	}
	if len(cmd.Includes) > 0 {
		cfg.Includes = cmd.Includes
	}
	cfg.Excludes = cmd.Excludes
	cfg.IncludeOntologies = cmd.IncludeOntology
	cfg.ExcludeOntologies = cmd.ExcludeOntology
	cfg.Offline = cmd.Offline
	cfg.Strict = cmd.Strict
	cfg.ResolutionPolicy = cmd.Policy
	cfg.RequireOntologyNames = cmd.RequireOntologyNames
	cfg.NoSearch = cmd.NoSearch
	cfg.RemoteCacheTTLSecs = cmd.RemoteCacheTTLSecs
	cfg.Temporary = cmd.Temporary
	if cfg.NoSearch {
		cfg.Locations = nil
	}

	env, err := ontoenv.Init(cfg, cmd.Overwrite)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	stats, err := env.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("initialized environment at %s: %d ontologies, %d triples\n",
		env.Root(), stats.NumOntologies, stats.NumTriples)
	return nil
}

func runAdd(env *ontoenv.OntoEnv, cmd *AddCmd) error {
	opts := ontoenv.DefaultAddOptions()
	opts.Overwrite = cmd.Overwrite
	opts.NoImports = cmd.NoImports
	id, err := env.Add(cmd.Location, opts)
	if err != nil {
		return err
	}
	fmt.Printf("added %s\n", id)
	return nil
}

func runUpdate(env *ontoenv.OntoEnv, cmd *UpdateCmd) error {
	if cmd.RemoteCacheTTLSecs >= 0 {
		env.Config().RemoteCacheTTLSecs = cmd.RemoteCacheTTLSecs
	}
	report, err := env.UpdateWithReport(cmd.All)
	if err != nil {
		return err
	}
	fmt.Printf("updated: %d refreshed, %d removed, %d failed\n",
		len(report.Added), len(report.Removed), len(report.Failed))
	return nil
}
