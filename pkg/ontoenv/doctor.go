// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/internetofwater/ontoenv/internal/ontology"
)

// Problem is one finding from a doctor check.
type Problem struct {
	Check     string   `json:"check"`
	Locations []string `json:"locations,omitempty"`
	Message   string   `json:"message"`
}

// environmentCheck inspects the environment and appends findings.
type environmentCheck interface {
	name() string
	check(e *OntoEnv, problems *[]Problem) error
}

// Doctor runs every environment check and returns the findings. An error is
// returned only when a check itself could not run.
func (e *OntoEnv) Doctor() ([]Problem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}

	checks := []environmentCheck{
		duplicateOntologyCheck{},
		ontologyDeclarationCheck{},
		conflictingPrefixesCheck{},
		hashIntegrityCheck{},
		aliasTargetCheck{},
		danglingImportCheck{},
	}

	var problems []Problem
	var errs *multierror.Error
	for _, c := range checks {
		if err := c.check(e, &problems); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", c.name(), err))
		}
	}
	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Check != problems[j].Check {
			return problems[i].Check < problems[j].Check
		}
		return problems[i].Message < problems[j].Message
	})
	return problems, errs.ErrorOrNil()
}

// duplicateOntologyCheck flags names declared by more than one location.
type duplicateOntologyCheck struct{}

func (duplicateOntologyCheck) name() string { return "duplicate ontology" }

func (duplicateOntologyCheck) check(e *OntoEnv, problems *[]Problem) error {
	byName := make(map[string][]*ontology.Ontology)
	for _, ont := range e.entries {
		byName[ont.ID.Name] = append(byName[ont.ID.Name], ont)
	}
	for name, group := range byName {
		if len(group) < 2 {
			continue
		}
		locations := make([]string, 0, len(group))
		for _, ont := range group {
			locations = append(locations, ont.ID.Location.String())
		}
		sort.Strings(locations)
		*problems = append(*problems, Problem{
			Check:     "duplicate ontology",
			Locations: locations,
			Message:   fmt.Sprintf("%s is declared by %d locations", name, len(group)),
		})
	}
	return nil
}

// ontologyDeclarationCheck flags graphs whose name was synthesized from the
// location because no declaration was found.
type ontologyDeclarationCheck struct{}

func (ontologyDeclarationCheck) name() string { return "ontology declaration" }

func (ontologyDeclarationCheck) check(e *OntoEnv, problems *[]Problem) error {
	for _, ont := range e.entries {
		if ont.ID.Name == ont.ID.Location.IRI() {
			*problems = append(*problems, Problem{
				Check:     "ontology declaration",
				Locations: []string{ont.ID.Location.String()},
				Message:   fmt.Sprintf("no ontology declaration found; the location %s names the graph", ont.ID.Location),
			})
		}
	}
	return nil
}

// conflictingPrefixesCheck flags a prefix bound to different namespaces by
// different ontologies.
type conflictingPrefixesCheck struct{}

func (conflictingPrefixesCheck) name() string { return "conflicting prefixes" }

func (conflictingPrefixesCheck) check(e *OntoEnv, problems *[]Problem) error {
	type binding struct {
		namespace string
		location  string
	}
	bindings := make(map[string][]binding)
	for _, ont := range e.entries {
		for prefix, ns := range ont.NamespaceMap {
			bindings[prefix] = append(bindings[prefix], binding{ns, ont.ID.Location.String()})
		}
	}
	for prefix, group := range bindings {
		namespaces := make(map[string]struct{})
		var locations []string
		for _, b := range group {
			namespaces[b.namespace] = struct{}{}
			locations = append(locations, b.location)
		}
		if len(namespaces) > 1 {
			sort.Strings(locations)
			*problems = append(*problems, Problem{
				Check:     "conflicting prefixes",
				Locations: locations,
				Message:   fmt.Sprintf("prefix %q is bound to %d different namespaces", prefix, len(namespaces)),
			})
		}
	}
	return nil
}

// hashIntegrityCheck recomputes every content hash against the stored value.
type hashIntegrityCheck struct{}

func (hashIntegrityCheck) name() string { return "hash integrity" }

func (hashIntegrityCheck) check(e *OntoEnv, problems *[]Problem) error {
	for key, ont := range e.entries {
		g, ok := e.graphs[key]
		if !ok {
			*problems = append(*problems, Problem{
				Check:     "hash integrity",
				Locations: []string{ont.ID.Location.String()},
				Message:   fmt.Sprintf("%s has no graph in the runtime store", ont.ID),
			})
			continue
		}
		if got := g.ContentHash(); got != ont.Hash {
			*problems = append(*problems, Problem{
				Check:     "hash integrity",
				Locations: []string{ont.ID.Location.String()},
				Message:   fmt.Sprintf("%s: stored hash %.12s does not match recomputed %.12s", ont.ID, ont.Hash, got),
			})
		}
	}
	return nil
}

// aliasTargetCheck verifies every alias points at an existing identifier.
type aliasTargetCheck struct{}

func (aliasTargetCheck) name() string { return "alias targets" }

func (aliasTargetCheck) check(e *OntoEnv, problems *[]Problem) error {
	for from, key := range e.aliases {
		if _, ok := e.entries[key]; !ok {
			*problems = append(*problems, Problem{
				Check:   "alias targets",
				Message: fmt.Sprintf("alias %s points at a missing identifier", from),
			})
		}
	}
	return nil
}

// danglingImportCheck reports imports with no ingested target.
type danglingImportCheck struct{}

func (danglingImportCheck) name() string { return "dangling imports" }

func (danglingImportCheck) check(e *OntoEnv, problems *[]Problem) error {
	for _, missing := range e.missingLocked() {
		*problems = append(*problems, Problem{
			Check:   "dangling imports",
			Message: fmt.Sprintf("no ingested ontology satisfies the import %s", missing),
		})
	}
	return nil
}
