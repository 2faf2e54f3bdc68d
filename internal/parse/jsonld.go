// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"

	"github.com/internetofwater/ontoenv/internal/graph"
)

// parseJSONLD expands a JSON-LD document to N-Quads with json-gold and then
// decodes the quads. Remote context resolution is disabled; ontologies are
// expected to ship their contexts inline.
func parseJSONLD(b []byte) (*graph.Graph, error) {
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &Error{Format: JSONLD, Offset: -1, Err: err}
	}

	proc := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.ProcessingMode = ld.JsonLd_1_1
	options.Format = "application/n-quads"

	nquads, err := proc.ToRDF(doc, options)
	if err != nil {
		return nil, &Error{Format: JSONLD, Offset: -1, Err: err}
	}
	serialized, ok := nquads.(string)
	if !ok {
		return nil, &Error{Format: JSONLD, Offset: -1, Err: fmt.Errorf("unexpected ToRDF result type %T", nquads)}
	}
	return parseNQuads([]byte(serialized))
}

// SerializeJSONLD renders N-Quads as an expanded JSON-LD document.
func SerializeJSONLD(nquads string) ([]byte, error) {
	proc := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	doc, err := proc.FromRDF(nquads, options)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}
