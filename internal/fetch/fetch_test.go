// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/internetofwater/ontoenv/internal/ontology"
	"github.com/internetofwater/ontoenv/internal/parse"
)

func fileLoc(t *testing.T, path string) ontology.Location {
	t.Helper()
	loc, err := ontology.ParseLocation(path)
	require.NoError(t, err)
	return loc
}

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ttl")
	require.NoError(t, os.WriteFile(path, []byte("<http://ex/a> <http://ex/p> <http://ex/b> ."), 0644))

	f := NewFetcher(false, 0)
	res, err := f.Fetch(fileLoc(t, path), nil)
	require.NoError(t, err)
	require.False(t, res.NotModified)
	require.Equal(t, parse.Turtle, res.Format)
	require.Equal(t, OriginFile, res.Origin)
	require.False(t, res.Meta.SourceMtime.IsZero())
}

func TestFetchFileNotModifiedByMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ttl")
	require.NoError(t, os.WriteFile(path, []byte("<http://ex/a> <http://ex/p> <http://ex/b> ."), 0644))

	f := NewFetcher(false, 0)
	first, err := f.Fetch(fileLoc(t, path), nil)
	require.NoError(t, err)

	second, err := f.Fetch(fileLoc(t, path), &first.Meta)
	require.NoError(t, err)
	require.True(t, second.NotModified)

	// advancing the mtime invalidates the cache
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	third, err := f.Fetch(fileLoc(t, path), &first.Meta)
	require.NoError(t, err)
	require.False(t, third.NotModified)
}

func TestFetchURLOfflineBlocked(t *testing.T) {
	f := NewFetcher(true, 0)
	loc, err := ontology.ParseLocation("https://example.org/onto")
	require.NoError(t, err)

	_, err = f.Fetch(loc, nil)
	var offline *OfflineError
	require.ErrorAs(t, err, &offline)
}

func TestFetchURLUsesMock(t *testing.T) {
	transport := &MockTransport{
		DenyUnmocked: true,
		Responses: map[string]MockResponse{
			"https://example.org/onto": {
				Body:        "@prefix owl: <http://www.w3.org/2002/07/owl#> . <https://example.org/onto> a owl:Ontology .",
				StatusCode:  200,
				ContentType: "text/turtle",
				ETag:        `"v1"`,
			},
		},
	}
	f := NewFetcher(false, 0)
	f.Client = NewMockedClient(transport)

	loc, err := ontology.ParseLocation("https://example.org/onto")
	require.NoError(t, err)

	res, err := f.Fetch(loc, nil)
	require.NoError(t, err)
	require.Equal(t, parse.Turtle, res.Format)
	require.Equal(t, `"v1"`, res.Meta.ETag)

	// conditional refetch with the captured ETag comes back NotModified
	res2, err := f.Fetch(loc, &res.Meta)
	require.NoError(t, err)
	require.True(t, res2.NotModified)
}

func TestFetchURLHonorsTTL(t *testing.T) {
	transport := &MockTransport{DenyUnmocked: true}
	f := NewFetcher(false, time.Hour)
	f.Client = NewMockedClient(transport)

	loc, err := ontology.ParseLocation("https://example.org/onto")
	require.NoError(t, err)

	prev := &ontology.FetchMetadata{LastFetched: time.Now().Add(-time.Minute)}
	res, err := f.Fetch(loc, prev)
	require.NoError(t, err)
	require.True(t, res.NotModified)
	// no network request was made
	require.Empty(t, transport.Requests)
}

func TestFetchURLStatusError(t *testing.T) {
	transport := &MockTransport{
		DenyUnmocked: true,
		Responses: map[string]MockResponse{
			"https://example.org/missing": {StatusCode: 500, Body: "boom"},
		},
	}
	f := NewFetcher(false, 0)
	f.Client = NewMockedClient(transport)

	loc, err := ontology.ParseLocation("https://example.org/missing")
	require.NoError(t, err)

	_, err = f.Fetch(loc, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 500, httpErr.Status)
}
