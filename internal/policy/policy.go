// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the resolution policies that pick a concrete
// graph when several cached ontologies share a name.
package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/internetofwater/ontoenv/internal/ontology"
)

// ErrAmbiguous is returned when a policy cannot pick a unique candidate.
var ErrAmbiguous = errors.New("ambiguous resolution")

// ErrExplicitRequired is returned by the version policy, which never guesses:
// callers must resolve by explicit (name, version) or (name, location).
var ErrExplicitRequired = errors.New("resolution requires an explicit version or location")

// Policy selects one ontology among candidates sharing the requested name.
// A nil result with a nil error means no candidate matched.
type Policy interface {
	Name() string
	Resolve(name string, candidates []*ontology.Ontology) (*ontology.Ontology, error)
}

// FromName returns the policy registered under the given name.
func FromName(name string) (Policy, error) {
	switch name {
	case "", "default":
		return DefaultPolicy{}, nil
	case "latest":
		return LatestPolicy{}, nil
	case "version":
		return VersionPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown resolution policy %q", name)
}

func matching(name string, candidates []*ontology.Ontology) []*ontology.Ontology {
	var out []*ontology.Ontology
	for _, c := range candidates {
		if c.ID.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// DefaultPolicy prefers the unversioned instance, then the most recently
// ingested one.
type DefaultPolicy struct{}

func (DefaultPolicy) Name() string { return "default" }

func (DefaultPolicy) Resolve(name string, candidates []*ontology.Ontology) (*ontology.Ontology, error) {
	match := matching(name, candidates)
	switch len(match) {
	case 0:
		return nil, nil
	case 1:
		return match[0], nil
	}

	var unversioned []*ontology.Ontology
	for _, c := range match {
		if c.ID.Unversioned() {
			unversioned = append(unversioned, c)
		}
	}
	if len(unversioned) == 1 {
		return unversioned[0], nil
	}
	if len(unversioned) > 1 {
		match = unversioned
	}

	sort.SliceStable(match, func(i, j int) bool {
		return match[i].Fetch.LastFetched.After(match[j].Fetch.LastFetched)
	})
	if match[0].Fetch.LastFetched.Equal(match[1].Fetch.LastFetched) {
		return nil, fmt.Errorf("%w: %d candidates for %s", ErrAmbiguous, len(match), name)
	}
	return match[0], nil
}

// LatestPolicy picks the lexicographically greatest version IRI; byte-wise
// comparison means a longer string wins over a shared prefix. Ties fall back
// to the most recent ingestion.
type LatestPolicy struct{}

func (LatestPolicy) Name() string { return "latest" }

func (LatestPolicy) Resolve(name string, candidates []*ontology.Ontology) (*ontology.Ontology, error) {
	match := matching(name, candidates)
	if len(match) == 0 {
		return nil, nil
	}
	best := match[0]
	for _, c := range match[1:] {
		switch {
		case c.ID.Version > best.ID.Version:
			best = c
		case c.ID.Version == best.ID.Version && c.Fetch.LastFetched.After(best.Fetch.LastFetched):
			best = c
		}
	}
	return best, nil
}

// VersionPolicy never guesses between instances.
type VersionPolicy struct{}

func (VersionPolicy) Name() string { return "version" }

func (VersionPolicy) Resolve(name string, candidates []*ontology.Ontology) (*ontology.Ontology, error) {
	match := matching(name, candidates)
	switch len(match) {
	case 0:
		return nil, nil
	case 1:
		return match[0], nil
	}
	return nil, fmt.Errorf("%w: %d candidates for %s", ErrExplicitRequired, len(match), name)
}
