// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package r5tu

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	mmap "github.com/blevesearch/mmap-go"
	"github.com/knakk/rdf"
)

// GraphRef identifies one graph inside an open store file.
type GraphRef struct {
	Source      string
	GraphName   string
	TripleCount uint64

	offset uint64
	length uint64
	crc    uint32
}

// File is a read-only view of a store file. The mapping stays valid as a
// snapshot even if a writer renames a new file over the path; callers reopen
// to observe the new contents.
type File struct {
	f     *os.File
	m     mmap.MMap
	terms []term
	dir   []GraphRef // sorted by (Source, GraphName)
	// byName groups directory positions by graph name for O(log n) lookup
	byName map[string][]int
	data   []byte
}

// Open maps the file read-only and verifies the header, per-section, per
// graph, and global CRCs. Any mismatch fails with ErrCorrupt.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mapping store: %w", err)
	}
	file := &File{f: f, m: m}
	if err := file.load(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return file, nil
}

func (f *File) load() error {
	b := []byte(f.m)
	if len(b) < headerSize+trailerSize {
		return fmt.Errorf("%w: file too short", ErrCorrupt)
	}

	payloadLen := binary.LittleEndian.Uint64(b[len(b)-trailerSize : len(b)-4])
	globalCRC := binary.LittleEndian.Uint32(b[len(b)-4:])
	if payloadLen != uint64(len(b)-trailerSize) {
		return fmt.Errorf("%w: trailer length mismatch", ErrCorrupt)
	}
	if crc32.Checksum(b[:payloadLen], castagnoli) != globalCRC {
		return fmt.Errorf("%w: global crc mismatch", ErrCorrupt)
	}

	s, err := decodeHeader(b)
	if err != nil {
		return err
	}
	if s.dataOff+s.dataLen > payloadLen {
		return fmt.Errorf("%w: sections exceed file", ErrCorrupt)
	}

	if err := f.loadDict(b[s.dictOff : s.dictOff+s.dictLen]); err != nil {
		return err
	}
	if err := f.loadDir(b[s.dirOff : s.dirOff+s.dirLen]); err != nil {
		return err
	}
	f.data = b[s.dataOff : s.dataOff+s.dataLen]

	for i := range f.dir {
		ref := &f.dir[i]
		if ref.offset+ref.length > uint64(len(f.data)) {
			return fmt.Errorf("%w: graph block out of range", ErrCorrupt)
		}
		block := f.data[ref.offset : ref.offset+ref.length]
		if crc32.Checksum(block, castagnoli) != ref.crc {
			return fmt.Errorf("%w: graph %q crc mismatch", ErrCorrupt, ref.GraphName)
		}
	}
	return nil
}

func (f *File) loadDict(section []byte) error {
	if len(section) < 8 {
		return fmt.Errorf("%w: dict section too short", ErrCorrupt)
	}
	body, crcBytes := section[:len(section)-4], section[len(section)-4:]
	if crc32.Checksum(body, castagnoli) != binary.LittleEndian.Uint32(crcBytes) {
		return fmt.Errorf("%w: dict crc mismatch", ErrCorrupt)
	}
	r := &reader{b: body}
	count, err := r.uint32()
	if err != nil {
		return err
	}
	f.terms = make([]term, 0, count)
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.byte()
		if err != nil {
			return err
		}
		t := term{kind: termKind(kindByte)}
		if t.value, err = r.str(); err != nil {
			return err
		}
		switch t.kind {
		case kindTypedLiteral, kindLangLiteral:
			if t.extra, err = r.str(); err != nil {
				return err
			}
		case kindIRI, kindBlank, kindLiteral:
		default:
			return fmt.Errorf("%w: unknown term kind %d", ErrCorrupt, kindByte)
		}
		f.terms = append(f.terms, t)
	}
	return nil
}

func (f *File) loadDir(section []byte) error {
	if len(section) < 8 {
		return fmt.Errorf("%w: directory section too short", ErrCorrupt)
	}
	body, crcBytes := section[:len(section)-4], section[len(section)-4:]
	if crc32.Checksum(body, castagnoli) != binary.LittleEndian.Uint32(crcBytes) {
		return fmt.Errorf("%w: directory crc mismatch", ErrCorrupt)
	}
	r := &reader{b: body}
	count, err := r.uint32()
	if err != nil {
		return err
	}
	f.dir = make([]GraphRef, 0, count)
	f.byName = make(map[string][]int)
	for i := uint32(0); i < count; i++ {
		var ref GraphRef
		if ref.Source, err = r.str(); err != nil {
			return err
		}
		if ref.GraphName, err = r.str(); err != nil {
			return err
		}
		if r.pos+28 > len(r.b) {
			return fmt.Errorf("%w: truncated directory entry", ErrCorrupt)
		}
		ref.offset = binary.LittleEndian.Uint64(r.b[r.pos : r.pos+8])
		ref.length = binary.LittleEndian.Uint64(r.b[r.pos+8 : r.pos+16])
		ref.TripleCount = binary.LittleEndian.Uint64(r.b[r.pos+16 : r.pos+24])
		ref.crc = binary.LittleEndian.Uint32(r.b[r.pos+24 : r.pos+28])
		r.pos += 28
		f.byName[ref.GraphName] = append(f.byName[ref.GraphName], len(f.dir))
		f.dir = append(f.dir, ref)
	}
	return nil
}

// Graphs enumerates every graph in directory order.
func (f *File) Graphs() []GraphRef {
	out := make([]GraphRef, len(f.dir))
	copy(out, f.dir)
	return out
}

// NumGraphs returns the number of graphs in the file.
func (f *File) NumGraphs() int { return len(f.dir) }

// NumTriples returns the total triple count across graphs.
func (f *File) NumTriples() uint64 {
	var n uint64
	for _, ref := range f.dir {
		n += ref.TripleCount
	}
	return n
}

// BySource returns the graphs recorded under the given source, using binary
// search over the sorted directory.
func (f *File) BySource(source string) []GraphRef {
	lo := sort.Search(len(f.dir), func(i int) bool { return f.dir[i].Source >= source })
	var out []GraphRef
	for i := lo; i < len(f.dir) && f.dir[i].Source == source; i++ {
		out = append(out, f.dir[i])
	}
	return out
}

// ByName returns the graphs stored under the given graph name.
func (f *File) ByName(graphName string) []GraphRef {
	var out []GraphRef
	for _, i := range f.byName[graphName] {
		out = append(out, f.dir[i])
	}
	return out
}

// Lookup finds the graph under the exact (source, graphName) key.
func (f *File) Lookup(source, graphName string) (GraphRef, bool) {
	lo := sort.Search(len(f.dir), func(i int) bool {
		if f.dir[i].Source != source {
			return f.dir[i].Source > source
		}
		return f.dir[i].GraphName >= graphName
	})
	if lo < len(f.dir) && f.dir[lo].Source == source && f.dir[lo].GraphName == graphName {
		return f.dir[lo], true
	}
	return GraphRef{}, false
}

// Triples decodes the triples of a graph.
func (f *File) Triples(ref GraphRef) ([]rdf.Triple, error) {
	block := f.data[ref.offset : ref.offset+ref.length]
	r := &reader{b: block}
	out := make([]rdf.Triple, 0, ref.TripleCount)
	for i := uint64(0); i < ref.TripleCount; i++ {
		var ids [3]uint64
		for j := 0; j < 3; j++ {
			v, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			if v >= uint64(len(f.terms)) {
				return nil, fmt.Errorf("%w: term id out of range", ErrCorrupt)
			}
			ids[j] = v
		}
		s, err := f.terms[ids[0]].toRDF()
		if err != nil {
			return nil, err
		}
		p, err := f.terms[ids[1]].toRDF()
		if err != nil {
			return nil, err
		}
		o, err := f.terms[ids[2]].toRDF()
		if err != nil {
			return nil, err
		}
		subj, ok := s.(rdf.Subject)
		if !ok {
			return nil, fmt.Errorf("%w: subject is not IRI or blank", ErrCorrupt)
		}
		pred, ok := p.(rdf.Predicate)
		if !ok {
			return nil, fmt.Errorf("%w: predicate is not an IRI", ErrCorrupt)
		}
		obj, ok := o.(rdf.Object)
		if !ok {
			return nil, fmt.Errorf("%w: invalid object term", ErrCorrupt)
		}
		out = append(out, rdf.Triple{Subj: subj, Pred: pred, Obj: obj})
	}
	return out, nil
}

// Close unmaps the file and closes the handle.
func (f *File) Close() error {
	var first error
	if f.m != nil {
		if err := f.m.Unmap(); err != nil {
			first = err
		}
		f.m = nil
	}
	if f.f != nil {
		if err := f.f.Close(); err != nil && first == nil {
			first = err
		}
		f.f = nil
	}
	return first
}
