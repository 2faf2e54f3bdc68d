// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package parse wraps the RDF parsers behind a single adapter: bytes plus a
// format hint in, a graph plus the ontology declarations out.
package parse

import (
	"path"
	"strings"
)

// Format identifies an RDF serialization for the parser adapter.
type Format string

const (
	Unknown  Format = ""
	Turtle   Format = "turtle"
	NTriples Format = "ntriples"
	RDFXML   Format = "rdfxml"
	N3       Format = "n3"
	JSONLD   Format = "jsonld"
	TriG     Format = "trig"
	NQuads   Format = "nquads"
)

// FromMediaType maps an HTTP Content-Type value to a Format.
func FromMediaType(ct string) Format {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	switch mt {
	case "text/turtle", "application/x-turtle":
		return Turtle
	case "application/n-triples", "text/plain":
		return NTriples
	case "application/rdf+xml", "application/owl+xml", "application/xml", "text/xml":
		return RDFXML
	case "text/n3", "text/rdf+n3":
		return N3
	case "application/ld+json", "application/json":
		return JSONLD
	case "application/trig":
		return TriG
	case "application/n-quads":
		return NQuads
	}
	return Unknown
}

// FromPath maps a file path or URL path extension to a Format.
func FromPath(p string) Format {
	// strip URL fragment and query before looking at the extension
	if i := strings.IndexByte(p, '#'); i >= 0 {
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".ttl":
		return Turtle
	case ".nt":
		return NTriples
	case ".xml", ".owl", ".rdf":
		return RDFXML
	case ".n3":
		return N3
	case ".jsonld", ".json":
		return JSONLD
	case ".trig":
		return TriG
	case ".nq":
		return NQuads
	}
	return Unknown
}

// Sniff guesses the serialization from the payload itself. It is the last
// resort when servers misreport media types.
func Sniff(b []byte) Format {
	n := len(b)
	if n > 4096 {
		n = 4096
	}
	sample := string(b[:n])
	trimmed := strings.TrimLeft(sample, " \t\r\n")

	if strings.HasPrefix(trimmed, "{") && strings.Contains(sample, "\"@context\"") {
		return JSONLD
	}
	if strings.HasPrefix(trimmed, "<") {
		if strings.Contains(sample, "<rdf:RDF") || strings.Contains(sample, "xmlns:rdf") ||
			strings.Contains(sample, "<owl:") {
			return RDFXML
		}
	}
	if strings.Contains(sample, "@prefix") || strings.Contains(sample, "@base") ||
		strings.Contains(sample, "PREFIX ") {
		return Turtle
	}
	if strings.Contains(sample, "GRAPH") && strings.Contains(sample, "{") {
		return TriG
	}
	if strings.Contains(sample, "\n_:") {
		return NTriples
	}
	return Unknown
}

// MediaType returns the canonical media type for the format, for output.
func (f Format) MediaType() string {
	switch f {
	case Turtle:
		return "text/turtle"
	case NTriples:
		return "application/n-triples"
	case RDFXML:
		return "application/rdf+xml"
	case N3:
		return "text/n3"
	case JSONLD:
		return "application/ld+json"
	case TriG:
		return "application/trig"
	case NQuads:
		return "application/n-quads"
	}
	return "application/octet-stream"
}
