// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const simpleOntology = `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .

<http://example.org/b> a owl:Ontology ;
    owl:versionIRI <http://example.org/b/1.0> ;
    owl:imports <http://example.org/a> ;
    owl:imports <http://example.org/c> ;
    rdfs:label "B" .
`

func TestParseTurtleAndExtract(t *testing.T) {
	g, err := Parse([]byte(simpleOntology), Turtle, "http://example.org/b.ttl")
	require.NoError(t, err)
	require.Equal(t, 5, g.Len())

	decls := Extract(g)
	require.True(t, decls.HasOntology)
	require.Equal(t, "http://example.org/b", decls.Ontology)
	require.Equal(t, "http://example.org/b/1.0", decls.Version)
	// imports keep their document order
	require.Equal(t, []string{"http://example.org/a", "http://example.org/c"}, decls.Imports)
	require.Equal(t, "B", decls.VersionProperties["http://www.w3.org/2000/01/rdf-schema#label"])
}

func TestParseFallsBackAcrossFormats(t *testing.T) {
	nt := "<http://example.org/s> <http://example.org/p> <http://example.org/o> .\n"
	// wrong hint: payload is ntriples, hint claims rdfxml
	g, err := Parse([]byte(nt), RDFXML, "")
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
}

func TestParseErrorSurfacesKind(t *testing.T) {
	_, err := Parse([]byte("this is not rdf @@@"), Turtle, "")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func TestExtractNoDeclaration(t *testing.T) {
	nt := "<http://example.org/s> <http://example.org/p> <http://example.org/o> .\n"
	g, err := Parse([]byte(nt), NTriples, "")
	require.NoError(t, err)

	decls := Extract(g)
	require.False(t, decls.HasOntology)
}

func TestExtractMultipleDeclarationsIsDeterministic(t *testing.T) {
	ttl := `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://example.org/z> a owl:Ontology .
<http://example.org/a> a owl:Ontology .
`
	g, err := Parse([]byte(ttl), Turtle, "")
	require.NoError(t, err)

	decls := Extract(g)
	require.True(t, decls.HasOntology)
	require.Equal(t, "http://example.org/a", decls.Ontology)
}

func TestFormatDetection(t *testing.T) {
	require.Equal(t, Turtle, FromMediaType("text/turtle; charset=utf-8"))
	require.Equal(t, RDFXML, FromMediaType("application/rdf+xml"))
	require.Equal(t, JSONLD, FromMediaType("application/ld+json"))
	require.Equal(t, Unknown, FromMediaType("text/html"))

	require.Equal(t, Turtle, FromPath("/data/brick.ttl"))
	require.Equal(t, RDFXML, FromPath("https://example.org/onto.owl?raw=1"))
	require.Equal(t, NQuads, FromPath("dump.nq"))
	require.Equal(t, Unknown, FromPath("README"))

	require.Equal(t, Turtle, Sniff([]byte("@prefix ex: <http://ex/> .")))
	require.Equal(t, JSONLD, Sniff([]byte(`{"@context": {"ex": "http://ex/"}}`)))
	require.Equal(t, RDFXML, Sniff([]byte(`<?xml version="1.0"?><rdf:RDF xmlns:rdf="x">`)))
}

func TestParseJSONLD(t *testing.T) {
	doc := `{
  "@context": {"owl": "http://www.w3.org/2002/07/owl#"},
  "@id": "http://example.org/onto",
  "@type": "owl:Ontology"
}`
	g, err := Parse([]byte(doc), JSONLD, "")
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())

	decls := Extract(g)
	require.True(t, decls.HasOntology)
	require.Equal(t, "http://example.org/onto", decls.Ontology)
}
