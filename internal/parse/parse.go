// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/graph"
)

// Error is a parse failure. Offset is the byte offset of the failure when the
// underlying parser reports one, -1 otherwise.
type Error struct {
	Format Format
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse error (%s) at byte %d: %v", e.Format, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse error (%s): %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Parse decodes the payload into a graph. The base IRI is used to resolve
// relative IRIs where the serialization supports a base declaration. If the
// hinted format fails, the other triple serializations are tried in turn, the
// same ladder the update path uses when a source lies about its format. A
// fallback format that decodes no triples from a non-blank payload counts as
// a failure.
func Parse(b []byte, hint Format, base string) (*graph.Graph, error) {
	candidates := []Format{Turtle, RDFXML, NTriples}
	switch hint {
	case JSONLD:
		return parseJSONLD(b)
	case NQuads:
		return parseNQuads(b)
	case TriG:
		return nil, &Error{Format: TriG, Offset: -1, Err: fmt.Errorf("trig input is not supported by the parser stack")}
	case N3:
		hint = Turtle
	}
	if hint != Unknown {
		rest := candidates[:0:0]
		for _, f := range candidates {
			if f != hint {
				rest = append(rest, f)
			}
		}
		candidates = append([]Format{hint}, rest...)
	}

	var firstErr error
	for i, f := range candidates {
		g, err := parseTriples(b, f, base)
		if err == nil && (i == 0 || g.Len() > 0 || len(bytes.TrimSpace(b)) == 0) {
			return g, nil
		}
		if err == nil {
			err = &Error{Format: f, Offset: -1, Err: fmt.Errorf("no triples decoded")}
		}
		if firstErr == nil {
			firstErr = err
		}
		log.Debugf("parse as %s failed, trying next format: %v", f, err)
	}
	return nil, firstErr
}

func parseTriples(b []byte, f Format, base string) (*graph.Graph, error) {
	var knakkFormat rdf.Format
	switch f {
	case Turtle:
		knakkFormat = rdf.Turtle
		b = withBase(b, base)
	case NTriples:
		knakkFormat = rdf.NTriples
	case RDFXML:
		knakkFormat = rdf.RDFXML
	default:
		return nil, &Error{Format: f, Offset: -1, Err: fmt.Errorf("unsupported triple format")}
	}

	dec := rdf.NewTripleDecoder(bytes.NewReader(b), knakkFormat)
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, &Error{Format: f, Offset: -1, Err: err}
	}
	g := graph.NewGraph()
	g.Insert(triples...)
	return g, nil
}

func parseNQuads(b []byte) (*graph.Graph, error) {
	dec := rdf.NewQuadDecoder(bytes.NewReader(b), rdf.NQuads)
	quads, err := dec.DecodeAll()
	if err != nil {
		return nil, &Error{Format: NQuads, Offset: -1, Err: err}
	}
	g := graph.NewGraph()
	for _, q := range quads {
		g.Insert(q.Triple)
	}
	return g, nil
}

// withBase prepends a @base directive so relative IRIs resolve against the
// source location. Documents that carry their own base win.
func withBase(b []byte, base string) []byte {
	if base == "" {
		return b
	}
	head := b
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.Contains(head, []byte("@base")) || bytes.Contains(head, []byte("BASE ")) {
		return b
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "@base <%s> .\n", strings.TrimSpace(base))
	buf.Write(b)
	return buf.Bytes()
}
