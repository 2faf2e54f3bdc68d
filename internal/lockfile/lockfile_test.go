// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSharedLocksCoexist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	a, err := Acquire(path, Shared, time.Second)
	require.NoError(t, err)
	defer func() { _ = a.Release() }()

	b, err := Acquire(path, Shared, time.Second)
	require.NoError(t, err)
	require.NoError(t, b.Release())
}

func TestExclusiveExcludesExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	w, err := Acquire(path, Exclusive, time.Second)
	require.NoError(t, err)
	defer func() { _ = w.Release() }()

	_, err = Acquire(path, Exclusive, 200*time.Millisecond)
	require.ErrorIs(t, err, ErrBusy)
}

func TestWriterWaitsForReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	r, err := Acquire(path, Shared, time.Second)
	require.NoError(t, err)

	_, err = Acquire(path, Exclusive, 200*time.Millisecond)
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, r.Release())
	w, err := Acquire(path, Exclusive, time.Second)
	require.NoError(t, err)
	require.NoError(t, w.Release())
}
