// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/internetofwater/ontoenv/internal/parse"
	"github.com/internetofwater/ontoenv/pkg/ontoenv"
)

func outputFormat(name string) (parse.Format, error) {
	switch strings.ToLower(name) {
	case "", "turtle", "ttl":
		return parse.Turtle, nil
	case "ntriples", "nt":
		return parse.NTriples, nil
	case "nquads", "nq":
		return parse.NQuads, nil
	case "jsonld", "json-ld":
		return parse.JSONLD, nil
	}
	return parse.Unknown, fmt.Errorf("unsupported output format %q", name)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func closeOutput(w io.WriteCloser) {
	if w != os.Stdout {
		_ = w.Close()
	}
}

func runClosure(env *ontoenv.OntoEnv, cmd *ClosureCmd) error {
	format, err := outputFormat(cmd.Format)
	if err != nil {
		return err
	}
	opts := ontoenv.UnionGraphOptions{
		RewriteSHPrefixes: cmd.RewriteSHPrefixes,
		RemoveOWLImports:  cmd.RemoveOwlImports,
	}
	union, err := env.GetClosureUnion(ontoenv.Graph{Name: cmd.IRI}, -1, opts)
	if err != nil {
		return err
	}

	out, err := openOutput(cmd.Destination)
	if err != nil {
		return err
	}
	defer closeOutput(out)
	if err := ontoenv.WriteGraph(out, union.Flattened(), format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "closure of %s: %d graphs, %d triples\n",
		cmd.IRI, len(union.GraphIDs), union.Len())
	return nil
}

func runGet(env *ontoenv.OntoEnv, cmd *GetCmd) error {
	format, err := outputFormat(cmd.Format)
	if err != nil {
		return err
	}
	var target ontoenv.ResolveTarget = ontoenv.Graph{Name: cmd.IRI}
	if cmd.Location != "" {
		target = ontoenv.Located{IRI: cmd.IRI, Location: cmd.Location}
	}
	g, _, err := env.GetGraph(target)
	if err != nil {
		return err
	}

	out, err := openOutput(cmd.Output)
	if err != nil {
		return err
	}
	defer closeOutput(out)
	return ontoenv.WriteGraph(out, g, format)
}

func runList(env *ontoenv.OntoEnv, cmd *ListCmd) error {
	switch cmd.What {
	case "", "ontologies":
		onts := env.Ontologies()
		if cmd.JSON {
			return json.NewEncoder(os.Stdout).Encode(onts)
		}
		for _, ont := range onts {
			fmt.Printf("%s\t%s\n", ont.ID.Name, ont.ID.Location)
		}
	case "missing":
		missing := env.MissingImports()
		if cmd.JSON {
			return json.NewEncoder(os.Stdout).Encode(missing)
		}
		for _, iri := range missing {
			fmt.Println(iri)
		}
	default:
		return fmt.Errorf("unknown list target %q, expected ontologies or missing", cmd.What)
	}
	return nil
}

func runWhy(env *ontoenv.OntoEnv, cmd *WhyCmd) error {
	all := make(map[string][][]string, len(cmd.IRIs))
	for _, iri := range cmd.IRIs {
		paths, err := env.Why(ontoenv.Graph{Name: iri})
		if err != nil {
			return err
		}
		all[iri] = paths
	}
	if cmd.JSON {
		return json.NewEncoder(os.Stdout).Encode(all)
	}
	for _, iri := range cmd.IRIs {
		fmt.Printf("%s:\n", iri)
		for _, path := range all[iri] {
			fmt.Printf("  %s\n", strings.Join(path, " -> "))
		}
	}
	return nil
}

func runDump(env *ontoenv.OntoEnv, cmd *DumpCmd) error {
	if cmd.JSON {
		return json.NewEncoder(os.Stdout).Encode(env.Ontologies())
	}
	out, err := env.Dump(cmd.Contains)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runStatus(env *ontoenv.OntoEnv, cmd *StatusCmd) error {
	status, err := env.Status()
	if err != nil {
		return err
	}
	if cmd.JSON {
		return json.NewEncoder(os.Stdout).Encode(status)
	}
	fmt.Printf("ontologies: %d\n", status.NumOntologies)
	fmt.Printf("store size: %d bytes\n", status.StoreSizeBytes)
	if !status.LastUpdated.IsZero() {
		fmt.Printf("last updated: %s\n", status.LastUpdated)
	}
	if len(status.MissingImports) > 0 {
		fmt.Printf("missing imports:\n")
		for _, iri := range status.MissingImports {
			fmt.Printf("  %s\n", iri)
		}
	}
	return nil
}

func runDoctor(env *ontoenv.OntoEnv) error {
	problems, err := env.Doctor()
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Println("no problems found")
		return nil
	}
	for _, p := range problems {
		fmt.Printf("[%s] %s\n", p.Check, p.Message)
		for _, loc := range p.Locations {
			fmt.Printf("    %s\n", loc)
		}
	}
	return nil
}

// runConfig edits config.json in place. Reads go through gjson paths so
// nested keys address naturally.
func runConfig(cmd *ConfigCmd) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, ok := ontoenv.FindRoot(cwd)
	if !ok {
		return ontoenv.ErrNoEnvironment
	}
	path := filepath.Join(root, ".ontoenv", "config.json")

	switch cmd.Action {
	case "list":
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		return nil

	case "get":
		if cmd.Key == "" {
			return fmt.Errorf("config get needs a key")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		result := gjson.GetBytes(b, cmd.Key)
		if !result.Exists() {
			return fmt.Errorf("%w: config key %q", ontoenv.ErrNotFound, cmd.Key)
		}
		fmt.Println(result.String())
		return nil

	case "set", "add", "remove":
		cfg, err := ontoenv.LoadConfig(path)
		if err != nil {
			return err
		}
		if err := editConfig(cfg, cmd.Action, cmd.Key, cmd.Value); err != nil {
			return err
		}
		return cfg.Save(path)
	}
	return fmt.Errorf("unknown config action %q", cmd.Action)
}

func editConfig(cfg *ontoenv.Config, action, key, value string) error {
	listFields := map[string]*[]string{
		"locations":          &cfg.Locations,
		"includes":           &cfg.Includes,
		"excludes":           &cfg.Excludes,
		"include_ontologies": &cfg.IncludeOntologies,
		"exclude_ontologies": &cfg.ExcludeOntologies,
	}
	if field, ok := listFields[key]; ok {
		switch action {
		case "add":
			*field = append(*field, value)
		case "remove":
			out := (*field)[:0]
			for _, v := range *field {
				if v != value {
					out = append(out, v)
				}
			}
			*field = out
		case "set":
			*field = strings.Split(value, ",")
		}
		return nil
	}

	if action != "set" {
		return fmt.Errorf("%q only supports set", key)
	}
	boolFields := map[string]*bool{
		"require_ontology_names": &cfg.RequireOntologyNames,
		"strict":                 &cfg.Strict,
		"offline":                &cfg.Offline,
		"no_search":              &cfg.NoSearch,
		"use_cached_ontologies":  &cfg.UseCachedOntologies,
	}
	if field, ok := boolFields[key]; ok {
		*field = value == "true"
		return nil
	}
	switch key {
	case "resolution_policy":
		cfg.ResolutionPolicy = value
	case "remote_cache_ttl_secs":
		var secs int
		if _, err := fmt.Sscanf(value, "%d", &secs); err != nil {
			return fmt.Errorf("remote_cache_ttl_secs must be an integer: %w", err)
		}
		cfg.RemoteCacheTTLSecs = secs
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
