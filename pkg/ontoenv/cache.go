// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// byteCache keeps the raw bytes of remote ontologies under
// .ontoenv/cache/<sha256(normalized URL)> so offline sessions can still
// materialize graphs that were fetched before.
type byteCache struct {
	dir string
}

func newByteCache(dir string) *byteCache {
	return &byteCache{dir: dir}
}

func (c *byteCache) keyFor(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

func (c *byteCache) Store(normalizedURL string, b []byte) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		log.Warnf("cannot create byte cache dir: %v", err)
		return
	}
	path := filepath.Join(c.dir, c.keyFor(normalizedURL))
	if err := os.WriteFile(path, b, 0644); err != nil {
		log.Warnf("cannot cache bytes for %s: %v", normalizedURL, err)
	}
}

func (c *byteCache) Get(normalizedURL string) ([]byte, bool) {
	b, err := os.ReadFile(filepath.Join(c.dir, c.keyFor(normalizedURL)))
	if err != nil {
		return nil, false
	}
	return b, true
}
