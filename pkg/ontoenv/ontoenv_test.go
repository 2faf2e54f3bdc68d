// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/internetofwater/ontoenv/internal/fetch"
	"github.com/internetofwater/ontoenv/internal/graph"
	"github.com/internetofwater/ontoenv/internal/ontology"
	"github.com/internetofwater/ontoenv/internal/parse"
)

// parseExternal decodes a turtle document into a standalone graph, the way a
// caller embedding the library would hand one to ImportDependencies.
func parseExternal(ttl string) (*graph.Graph, error) {
	return parse.Parse([]byte(ttl), parse.Turtle, "")
}

const ontologyA = `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/a> a owl:Ontology .
`

const ontologyB = `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <http://ex/a> .
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestConfig(dir string) *Config {
	cfg := NewConfig(dir)
	cfg.Offline = true
	cfg.Strict = true
	return cfg
}

func initEnv(t *testing.T, cfg *Config) *OntoEnv {
	t.Helper()
	env, err := Init(cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestBasicClosure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	require.Len(t, env.Ontologies(), 2)

	ids, err := env.GetClosure(Graph{Name: "http://ex/b"}, -1)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Equal(t, "http://ex/b", ids[0].Name)
	require.Equal(t, "http://ex/a", ids[1].Name)

	union, err := env.GetUnionGraph(ids, UnionGraphOptions{RemoveOWLImports: true})
	require.NoError(t, err)
	require.Equal(t, 2, union.Len())
}

func TestClosureIdempotence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	first, err := env.GetClosure(Graph{Name: "http://ex/b"}, -1)
	require.NoError(t, err)

	// the closure of every member of the closure stays within the set
	members := make(map[string]struct{})
	for _, id := range first {
		members[id.Key()] = struct{}{}
	}
	for _, id := range first {
		again, err := env.GetClosure(Located{IRI: id.Name, Location: id.Location.String()}, -1)
		require.NoError(t, err)
		for _, inner := range again {
			_, ok := members[inner.Key()]
			require.True(t, ok)
		}
	}
}

func TestMergeCommutativity(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	ids, err := env.GetClosure(Graph{Name: "http://ex/b"}, -1)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	forward, err := env.GetUnionGraph(ids, UnionGraphOptions{})
	require.NoError(t, err)
	reversed, err := env.GetUnionGraph([]ontology.GraphIdentifier{ids[1], ids[0]}, UnionGraphOptions{})
	require.NoError(t, err)

	// as a set of triples the union is order-independent
	require.Equal(t, forward.Flattened().ContentHash(), reversed.Flattened().ContentHash())
}

func TestImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/a> a owl:Ontology ;
    owl:imports <http://ex/b> .
`)
	writeFile(t, dir, "b.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <http://ex/a> .
`)

	env := initEnv(t, newTestConfig(dir))

	fromA, err := env.GetClosure(Graph{Name: "http://ex/a"}, -1)
	require.NoError(t, err)
	require.Len(t, fromA, 2)
	require.Equal(t, "http://ex/a", fromA[0].Name)
	require.Equal(t, "http://ex/b", fromA[1].Name)

	fromB, err := env.GetClosure(Graph{Name: "http://ex/b"}, -1)
	require.NoError(t, err)
	require.Equal(t, "http://ex/b", fromB[0].Name)
	require.Equal(t, "http://ex/a", fromB[1].Name)

	union, err := env.GetUnionGraph(fromA, UnionGraphOptions{})
	require.NoError(t, err)
	// flattening dedupes; each graph contributes its two triples once
	require.Equal(t, 4, union.Flattened().Len())
}

func TestClosureDepthZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	ids, err := env.GetClosure(Graph{Name: "http://ex/b"}, 0)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Equal(t, "http://ex/b", ids[0].Name)
}

func TestReingestIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.ttl", ontologyA)

	cfg := newTestConfig(dir)
	cfg.NoSearch = true
	cfg.Locations = nil
	env := initEnv(t, cfg)

	id1, err := env.Add(path, DefaultAddOptions())
	require.NoError(t, err)
	ont1, err := env.GetOntology(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	hash := ont1.Hash
	gen := ont1.Generation

	id2, err := env.Add(path, DefaultAddOptions())
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	ont2, err := env.GetOntology(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	require.Equal(t, hash, ont2.Hash)
	require.Equal(t, gen, ont2.Generation)

	// no duplicate entry either
	require.Len(t, env.Ontologies(), 1)
}

func TestStrictMissingImportFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <http://ex/missing> .
`)

	cfg := newTestConfig(dir)
	_, err := Init(cfg, false)
	require.Error(t, err)

	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	require.NotEmpty(t, ie.Path)
	require.Equal(t, "http://ex/missing", ie.Path[len(ie.Path)-1])
}

func TestNonStrictMissingImportDangles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <http://ex/missing> .
`)

	cfg := newTestConfig(dir)
	cfg.Strict = false
	env := initEnv(t, cfg)

	require.Len(t, env.Ontologies(), 1)
	missing := env.MissingImports()
	require.Equal(t, []string{"http://ex/missing"}, missing)
}

func TestMissingDeclarationRequiredNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.ttl", "<http://ex/s> <http://ex/p> <http://ex/o> .\n")

	cfg := newTestConfig(dir)
	cfg.NoSearch = true
	cfg.Locations = nil
	cfg.RequireOntologyNames = true
	env := initEnv(t, cfg)

	_, err := env.Add(path, DefaultAddOptions())
	require.ErrorIs(t, err, ErrMissingOntologyDeclaration)
}

func TestMissingDeclarationSynthesizesName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.ttl", "<http://ex/s> <http://ex/p> <http://ex/o> .\n")

	cfg := newTestConfig(dir)
	cfg.NoSearch = true
	cfg.Locations = nil
	env := initEnv(t, cfg)

	id, err := env.Add(path, DefaultAddOptions())
	require.NoError(t, err)
	require.Equal(t, "file://"+path, id.Name)
}

func TestSameNameDifferentLocations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one/a.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/a> a owl:Ontology .
`)
	writeFile(t, dir, "two/a.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
<http://ex/a> a owl:Ontology ;
    rdfs:label "other" .
`)

	cfg := newTestConfig(dir)
	cfg.Strict = false
	env := initEnv(t, cfg)

	require.Len(t, env.Ontologies(), 2)

	// the default policy picks deterministically
	first, err := env.Resolve(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	second, err := env.Resolve(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	require.Equal(t, first, second)

	// both instances stay addressable by location
	_, err = env.Resolve(Located{IRI: "http://ex/a", Location: filepath.Join(dir, "one/a.ttl")})
	require.NoError(t, err)
	_, err = env.Resolve(Located{IRI: "http://ex/a", Location: filepath.Join(dir, "two/a.ttl")})
	require.NoError(t, err)
}

func TestVersionedAlias(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(dir)
	cfg.NoSearch = true
	cfg.Locations = nil
	env := initEnv(t, cfg)

	served := `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<https://example.org/onto/1.2> a owl:Ontology ;
    owl:versionIRI <https://example.org/onto/1.2> .
`
	env.fetcher.Client = fetch.NewMockedClient(&fetch.MockTransport{
		DenyUnmocked: true,
		Responses: map[string]fetch.MockResponse{
			"https://example.org/onto": {Body: served, StatusCode: 200, ContentType: "text/turtle"},
		},
	})

	id, err := env.Add("https://example.org/onto", DefaultAddOptions())
	require.NoError(t, err)
	require.Equal(t, "https://example.org/onto/1.2", id.Name)

	// both the URL and the declared IRI resolve to the same identifier
	byURL, err := env.Resolve(Graph{Name: "https://example.org/onto"})
	require.NoError(t, err)
	byName, err := env.Resolve(Graph{Name: "https://example.org/onto/1.2"})
	require.NoError(t, err)
	require.Equal(t, id, byURL)
	require.Equal(t, id, byName)
}

func TestOfflineRemoteImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <https://example.org/remote> .
`)

	strict := newTestConfig(dir)
	_, err := Init(strict, false)
	require.Error(t, err)
	var offline *fetch.OfflineError
	require.ErrorAs(t, err, &offline)

	laxDir := t.TempDir()
	writeFile(t, laxDir, "b.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <https://example.org/remote> .
`)
	lax := newTestConfig(laxDir)
	lax.Strict = false
	env := initEnv(t, lax)
	require.Equal(t, []string{"https://example.org/remote"}, env.MissingImports())
}

func TestRefreshByMtime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.ttl", ontologyA)

	env := initEnv(t, newTestConfig(dir))

	ont, err := env.GetOntology(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	h1 := ont.Hash
	gen1 := ont.Generation

	// rewrite the file with different content and a newer mtime
	writeFile(t, dir, "a.ttl", ontologyA+"\n<http://ex/a> <http://ex/p> <http://ex/o> .\n")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.NoError(t, env.Update(false))

	ont2, err := env.GetOntology(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	require.NotEqual(t, h1, ont2.Hash)
	require.Greater(t, ont2.Generation, gen1)
	// name and location unchanged, so the identifier is reused
	require.Equal(t, ont.ID, ont2.ID)
	require.Len(t, env.Ontologies(), 1)
}

func TestHashMismatchWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.ttl", ontologyA)

	cfg := newTestConfig(dir)
	cfg.NoSearch = true
	cfg.Locations = nil
	env := initEnv(t, cfg)

	_, err := env.Add(path, DefaultAddOptions())
	require.NoError(t, err)

	writeFile(t, dir, "a.ttl", ontologyA+"\n<http://ex/a> <http://ex/p> <http://ex/o> .\n")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	// a plain add notices the changed bytes and refuses to replace them
	_, err = env.Add(path, DefaultAddOptions())
	require.ErrorIs(t, err, ErrHashMismatch)

	// Force overrides the preserve check
	opts := DefaultAddOptions()
	opts.Force = true
	_, err = env.Add(path, opts)
	require.NoError(t, err)
	ont, err := env.GetOntology(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	require.Equal(t, 2, ont.TripleCount)
}

func TestSHACLPrefixRewriteEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "root.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix sh: <http://www.w3.org/ns/shacl#> .
<http://ex/root> a owl:Ontology ;
    owl:imports <http://ex/dep> ;
    sh:declare <http://ex/root/pfx> .
<http://ex/root/pfx> sh:prefix "root" ;
    sh:namespace "http://ex/root/" .
`)
	writeFile(t, dir, "dep.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix sh: <http://www.w3.org/ns/shacl#> .
<http://ex/dep> a owl:Ontology ;
    sh:declare <http://ex/dep/pfx> .
<http://ex/dep/pfx> sh:prefix "dep" ;
    sh:namespace "http://ex/dep/" .
<http://ex/dep/shape> sh:prefixes <http://ex/dep> .
`)

	env := initEnv(t, newTestConfig(dir))

	union, err := env.GetClosureUnion(Graph{Name: "http://ex/root"}, -1, DefaultUnionGraphOptions())
	require.NoError(t, err)

	flat := union.Flattened()
	for _, tr := range flat.ForPredicate(graph.SHPrefixes) {
		require.Equal(t, "http://ex/root", tr.Obj.String())
	}
	// the root's own declaration is untouched; the dep's moved onto the root
	rootDecls := 0
	for _, tr := range flat.ForPredicate(graph.SHDeclare) {
		require.Equal(t, "http://ex/root", tr.Subj.String())
		rootDecls++
	}
	require.Equal(t, 2, rootDecls)
	// the namespace map unions both declarations
	require.Equal(t, "http://ex/root/", union.NamespaceMap["root"])
	require.Equal(t, "http://ex/dep/", union.NamespaceMap["dep"])
}

func TestPersistenceRoundtrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	cfg := newTestConfig(dir)
	env, err := Init(cfg, false)
	require.NoError(t, err)
	require.NoError(t, env.Close())

	// reopen read-only and verify the state survived
	env2, err := Load(dir, true)
	require.NoError(t, err)
	defer func() { _ = env2.Close() }()

	require.Len(t, env2.Ontologies(), 2)
	g, _, err := env2.GetGraph(Graph{Name: "http://ex/b"})
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	ids, err := env2.GetClosure(Graph{Name: "http://ex/b"}, -1)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// mutating a read-only environment is rejected
	_, err = env2.Add(filepath.Join(dir, "a.ttl"), DefaultAddOptions())
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestClosedEnvironmentRejectsOperations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)

	env, err := Init(newTestConfig(dir), false)
	require.NoError(t, err)
	require.NoError(t, env.Close())

	_, err = env.Resolve(Graph{Name: "http://ex/a"})
	require.ErrorIs(t, err, ErrClosed)
	_, err = env.Add("/tmp/nope.ttl", DefaultAddOptions())
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, env.Close(), ErrClosed)
}

func TestInitTwiceNeedsOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)

	env, err := Init(newTestConfig(dir), false)
	require.NoError(t, err)
	require.NoError(t, env.Close())

	_, err = Init(newTestConfig(dir), false)
	require.ErrorIs(t, err, ErrExists)

	env2, err := Init(newTestConfig(dir), true)
	require.NoError(t, err)
	require.NoError(t, env2.Close())
}

func TestRemoveDropsAliasesAndDangles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	require.NoError(t, env.Remove(Graph{Name: "http://ex/a"}))
	require.Len(t, env.Ontologies(), 1)
	require.Equal(t, []string{"http://ex/a"}, env.MissingImports())
	// every surviving alias still points at a live entry
	for from := range env.Aliases() {
		_, err := env.Resolve(Graph{Name: from})
		require.NoError(t, err)
	}
}

func TestImportDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)

	env := initEnv(t, newTestConfig(dir))

	external, err := parseExternal(`
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/mine> a owl:Ontology ;
    owl:imports <http://ex/a> .
`)
	require.NoError(t, err)

	merged, err := env.ImportDependencies(external, false)
	require.NoError(t, err)
	require.Equal(t, []string{"http://ex/a"}, merged)
	// owl:imports is gone and a's declaration was merged in
	require.Empty(t, external.ForPredicate(graph.OWLImports))
	require.Equal(t, 2, external.Len())
}

func TestDoctorFindsDuplicatesAndDangling(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one/a.ttl", ontologyA)
	writeFile(t, dir, "two/a.ttl", ontologyA+"\n<http://ex/x> <http://ex/p> <http://ex/o> .\n")
	writeFile(t, dir, "b.ttl", `
@prefix owl: <http://www.w3.org/2002/07/owl#> .
<http://ex/b> a owl:Ontology ;
    owl:imports <http://ex/gone> .
`)

	cfg := newTestConfig(dir)
	cfg.Strict = false
	env := initEnv(t, cfg)

	problems, err := env.Doctor()
	require.NoError(t, err)

	checks := make(map[string]bool)
	for _, p := range problems {
		checks[p.Check] = true
	}
	require.True(t, checks["duplicate ontology"])
	require.True(t, checks["dangling imports"])
	require.False(t, checks["hash integrity"])
}

func TestUpdateRemovesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	path := writeFile(t, dir, "b.ttl", ontologyB)

	cfg := newTestConfig(dir)
	cfg.Strict = false
	env := initEnv(t, cfg)
	require.Len(t, env.Ontologies(), 2)

	require.NoError(t, os.Remove(path))
	require.NoError(t, env.Update(false))
	require.Len(t, env.Ontologies(), 1)
}

func TestDepGraphDot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	dot, err := env.DepGraphDot()
	require.NoError(t, err)
	require.Contains(t, dot, "digraph {")
	require.Contains(t, dot, "http://ex/a")
	require.Contains(t, dot, "->")
}

func TestImportersAndWhy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ttl", ontologyA)
	writeFile(t, dir, "b.ttl", ontologyB)

	env := initEnv(t, newTestConfig(dir))

	importers, err := env.Importers(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	require.Len(t, importers, 1)
	require.Equal(t, "http://ex/b", importers[0].Name)

	paths, err := env.Why(Graph{Name: "http://ex/a"})
	require.NoError(t, err)
	require.Contains(t, paths, []string{"http://ex/b", "http://ex/a"})
}
