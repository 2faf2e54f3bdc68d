// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package r5tu

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/knakk/rdf"
	log "github.com/sirupsen/logrus"
)

// Writer accumulates named graphs and serializes them in one atomic pass:
// the file is built next to the target and renamed over it on Finalize, so
// readers holding the previous mapping keep a consistent snapshot.
type Writer struct {
	path   string
	dict   []term
	dictID map[string]uint64
	graphs []*graphBlock
}

type graphBlock struct {
	source    string
	graphName string
	triples   [][3]uint64
}

func NewWriter(path string) *Writer {
	return &Writer{
		path:   path,
		dictID: make(map[string]uint64),
	}
}

func (w *Writer) intern(t rdf.Term) uint64 {
	entry := fromRDF(t)
	key := entry.key()
	if id, ok := w.dictID[key]; ok {
		return id
	}
	id := uint64(len(w.dict))
	w.dict = append(w.dict, entry)
	w.dictID[key] = id
	return id
}

// AddGraph stages a named graph under the two-level (source, graphName) key.
// Adding the same key twice replaces the earlier staging.
func (w *Writer) AddGraph(source, graphName string, triples []rdf.Triple) {
	block := &graphBlock{source: source, graphName: graphName}
	for _, t := range triples {
		block.triples = append(block.triples, [3]uint64{
			w.intern(t.Subj),
			w.intern(t.Pred),
			w.intern(t.Obj),
		})
	}
	sort.Slice(block.triples, func(i, j int) bool {
		a, b := block.triples[i], block.triples[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})
	for i, g := range w.graphs {
		if g.source == source && g.graphName == graphName {
			w.graphs[i] = block
			return
		}
	}
	w.graphs = append(w.graphs, block)
}

func (w *Writer) encodeDict() []byte {
	var b []byte
	head := make([]byte, 4)
	binary.LittleEndian.PutUint32(head, uint32(len(w.dict)))
	b = append(b, head...)
	for _, t := range w.dict {
		b = append(b, byte(t.kind))
		b = appendString(b, t.value)
		switch t.kind {
		case kindTypedLiteral, kindLangLiteral:
			b = appendString(b, t.extra)
		}
	}
	crc := make([]byte, 4)
	binary.LittleEndian.PutUint32(crc, crc32.Checksum(b, castagnoli))
	return append(b, crc...)
}

type dirEntry struct {
	source    string
	graphName string
	offset    uint64
	length    uint64
	count     uint64
	crc       uint32
}

func encodeDir(entries []dirEntry) []byte {
	var b []byte
	head := make([]byte, 4)
	binary.LittleEndian.PutUint32(head, uint32(len(entries)))
	b = append(b, head...)
	for _, e := range entries {
		b = appendString(b, e.source)
		b = appendString(b, e.graphName)
		var fixed [28]byte
		binary.LittleEndian.PutUint64(fixed[0:8], e.offset)
		binary.LittleEndian.PutUint64(fixed[8:16], e.length)
		binary.LittleEndian.PutUint64(fixed[16:24], e.count)
		binary.LittleEndian.PutUint32(fixed[24:28], e.crc)
		b = append(b, fixed[:]...)
	}
	crc := make([]byte, 4)
	binary.LittleEndian.PutUint32(crc, crc32.Checksum(b, castagnoli))
	return append(b, crc...)
}

func encodeTriples(triples [][3]uint64) []byte {
	var b []byte
	for _, t := range triples {
		b = appendUvarint(b, t[0])
		b = appendUvarint(b, t[1])
		b = appendUvarint(b, t[2])
	}
	return b
}

// Finalize writes the staged graphs to a temp file, fsyncs it, and renames it
// over the target path.
func (w *Writer) Finalize() error {
	// the directory must be sorted by (source, graphName) for binary search
	sort.Slice(w.graphs, func(i, j int) bool {
		if w.graphs[i].source != w.graphs[j].source {
			return w.graphs[i].source < w.graphs[j].source
		}
		return w.graphs[i].graphName < w.graphs[j].graphName
	})

	var data []byte
	entries := make([]dirEntry, 0, len(w.graphs))
	for _, g := range w.graphs {
		block := encodeTriples(g.triples)
		entries = append(entries, dirEntry{
			source:    g.source,
			graphName: g.graphName,
			offset:    uint64(len(data)),
			length:    uint64(len(block)),
			count:     uint64(len(g.triples)),
			crc:       crc32.Checksum(block, castagnoli),
		})
		data = append(data, block...)
	}

	dict := w.encodeDict()
	dir := encodeDir(entries)

	s := sections{
		dictOff: headerSize,
		dictLen: uint64(len(dict)),
	}
	s.dirOff = s.dictOff + s.dictLen
	s.dirLen = uint64(len(dir))
	s.dataOff = s.dirOff + s.dirLen
	s.dataLen = uint64(len(data))

	payload := encodeHeader(s)
	payload = append(payload, dict...)
	payload = append(payload, dir...)
	payload = append(payload, data...)

	trailer := make([]byte, trailerSize)
	binary.LittleEndian.PutUint64(trailer[0:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(trailer[8:12], crc32.Checksum(payload, castagnoli))
	payload = append(payload, trailer...)

	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("finalizing store: %w", err)
	}
	log.Debugf("wrote %d graphs (%d bytes) to %s", len(w.graphs), len(payload), w.path)
	return nil
}
