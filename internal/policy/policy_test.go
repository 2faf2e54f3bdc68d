// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/internetofwater/ontoenv/internal/ontology"
)

func entry(t *testing.T, name, version, path string, fetched time.Time) *ontology.Ontology {
	t.Helper()
	loc, err := ontology.ParseLocation(path)
	require.NoError(t, err)
	return &ontology.Ontology{
		ID:    ontology.NewIdentifier(name, version, loc),
		Fetch: ontology.FetchMetadata{LastFetched: fetched},
	}
}

func TestFromName(t *testing.T) {
	for _, name := range []string{"default", "latest", "version"} {
		p, err := FromName(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name())
	}
	_, err := FromName("nope")
	require.Error(t, err)
}

func TestDefaultPolicyPrefersUnversioned(t *testing.T) {
	now := time.Now()
	unversioned := entry(t, "http://ex/a", "", "/data/a.ttl", now.Add(-time.Hour))
	versioned := entry(t, "http://ex/a", "http://ex/a/2.0", "/data/a2.ttl", now)

	got, err := DefaultPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{versioned, unversioned})
	require.NoError(t, err)
	require.Equal(t, unversioned.ID, got.ID)
}

func TestDefaultPolicyFallsBackToMostRecent(t *testing.T) {
	now := time.Now()
	older := entry(t, "http://ex/a", "http://ex/a/1.0", "/data/a1.ttl", now.Add(-time.Hour))
	newer := entry(t, "http://ex/a", "http://ex/a/2.0", "/data/a2.ttl", now)

	got, err := DefaultPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{older, newer})
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)
}

func TestDefaultPolicyAmbiguous(t *testing.T) {
	now := time.Now()
	a := entry(t, "http://ex/a", "http://ex/a/1.0", "/data/a1.ttl", now)
	b := entry(t, "http://ex/a", "http://ex/a/2.0", "/data/a2.ttl", now)

	_, err := DefaultPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{a, b})
	require.ErrorIs(t, err, ErrAmbiguous)
}

func TestDefaultPolicyNoMatch(t *testing.T) {
	got, err := DefaultPolicy{}.Resolve("http://ex/missing", nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLatestPolicyLexicographicMax(t *testing.T) {
	now := time.Now()
	v1 := entry(t, "http://ex/a", "http://ex/a/1.9", "/data/a1.ttl", now)
	v2 := entry(t, "http://ex/a", "http://ex/a/1.10", "/data/a2.ttl", now)

	// plain lexicographic compare: "1.9" > "1.10"
	got, err := LatestPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{v1, v2})
	require.NoError(t, err)
	require.Equal(t, v1.ID, got.ID)
}

func TestLatestPolicyLongerWinsOnSharedPrefix(t *testing.T) {
	now := time.Now()
	short := entry(t, "http://ex/a", "http://ex/a/1.0", "/data/a1.ttl", now)
	long := entry(t, "http://ex/a", "http://ex/a/1.0.1", "/data/a2.ttl", now)

	got, err := LatestPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{short, long})
	require.NoError(t, err)
	require.Equal(t, long.ID, got.ID)
}

func TestVersionPolicyNeverGuesses(t *testing.T) {
	now := time.Now()
	a := entry(t, "http://ex/a", "http://ex/a/1.0", "/data/a1.ttl", now)
	b := entry(t, "http://ex/a", "http://ex/a/2.0", "/data/a2.ttl", now)

	got, err := VersionPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{a})
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = VersionPolicy{}.Resolve("http://ex/a", []*ontology.Ontology{a, b})
	require.ErrorIs(t, err, ErrExplicitRequired)
}
