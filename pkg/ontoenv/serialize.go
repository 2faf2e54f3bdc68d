// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"fmt"
	"io"
	"strings"

	"github.com/knakk/rdf"

	"github.com/internetofwater/ontoenv/internal/graph"
	"github.com/internetofwater/ontoenv/internal/parse"
)

// WriteGraph serializes a graph in the requested format. Supported output
// formats are turtle, ntriples, nquads (default graph), and jsonld.
func WriteGraph(w io.Writer, g *graph.Graph, format parse.Format) error {
	switch format {
	case parse.Turtle, parse.Unknown:
		enc := rdf.NewTripleEncoder(w, rdf.Turtle)
		if err := enc.EncodeAll(g.Triples()); err != nil {
			return err
		}
		return enc.Close()
	case parse.NTriples, parse.NQuads:
		for _, t := range g.Triples() {
			if _, err := io.WriteString(w, t.Serialize(rdf.NTriples)); err != nil {
				return err
			}
		}
		return nil
	case parse.JSONLD:
		var b strings.Builder
		for _, t := range g.Triples() {
			b.WriteString(t.Serialize(rdf.NTriples))
		}
		doc, err := parse.SerializeJSONLD(b.String())
		if err != nil {
			return err
		}
		_, err = w.Write(append(doc, '\n'))
		return err
	}
	return fmt.Errorf("unsupported output format %q", format)
}
