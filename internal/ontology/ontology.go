// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontology

import (
	"fmt"
	"time"
)

// GraphIdentifier is the primary key for a cached graph: the declared
// ontology IRI, its version, and the location it was fetched from. Two
// ontologies sharing a name but differing in version or location coexist
// under distinct identifiers.
type GraphIdentifier struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Location Location `json:"location"`
}

// NewIdentifier builds a well-formed identifier. Version defaults to the
// name when the graph declares none.
func NewIdentifier(name, version string, location Location) GraphIdentifier {
	if version == "" {
		version = name
	}
	return GraphIdentifier{Name: name, Version: version, Location: location}
}

// Key returns the comparison key for the identifier.
func (id GraphIdentifier) Key() string {
	return id.Name + "\x00" + id.Version + "\x00" + id.Location.Key()
}

// Unversioned reports whether the identifier carries no version beyond its
// own name.
func (id GraphIdentifier) Unversioned() bool {
	return id.Version == "" || id.Version == id.Name
}

func (id GraphIdentifier) IsZero() bool { return id.Name == "" }

func (id GraphIdentifier) String() string {
	return fmt.Sprintf("%s @ %s", id.Name, id.Location)
}

// FetchMetadata is the freshness state captured for an entry's source.
type FetchMetadata struct {
	LastFetched  time.Time `json:"last_fetched"`
	SourceMtime  time.Time `json:"source_mtime,omitzero"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
}

// Ontology is the cache entry for one graph identifier.
type Ontology struct {
	ID GraphIdentifier `json:"id"`
	// Hash is the sha256 of the canonical serialization of the parsed graph.
	Hash string `json:"hash"`
	// Imports holds the raw owl:imports IRIs in declaration order.
	Imports []string `json:"imports,omitempty"`
	// VersionProperties maps version-describing predicate IRIs to values.
	VersionProperties map[string]string `json:"version_properties,omitempty"`
	// NamespaceMap maps sh:declare prefixes to namespaces.
	NamespaceMap map[string]string `json:"namespace_map,omitempty"`

	Fetch       FetchMetadata `json:"fetch"`
	TripleCount int           `json:"triple_count"`
	Persisted   bool          `json:"persisted"`
	// Generation increments every time the entry's content is replaced.
	Generation uint64 `json:"generation"`
}

func (o *Ontology) Name() string { return o.ID.Name }

// Touch marks the entry as freshly fetched.
func (o *Ontology) Touch(now time.Time) {
	o.Fetch.LastFetched = now
}

func (o *Ontology) String() string {
	return fmt.Sprintf("Ontology: %s\nLocation: %s\nTriples: %d", o.ID.Name, o.ID.Location, o.TripleCount)
}
