// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package r5tu implements the persistent store: a self-contained file with a
// global term dictionary, per-graph triple blocks, and a directory keyed by
// (source, graph name). Writers build a sibling temp file and finalize with a
// rename; readers map the file read-only and verify CRCs on open.
package r5tu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/knakk/rdf"
)

// ErrCorrupt is returned when a CRC or layout check fails on open.
var ErrCorrupt = errors.New("corrupt store")

var (
	magic = [4]byte{'R', '5', 'T', 'U'}

	formatVersion uint16 = 1

	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

// header layout, all little-endian:
//
//	[0:4]   magic "R5TU"
//	[4:6]   format version
//	[6:8]   flags (unused)
//	[8:16]  dict offset     [16:24] dict length
//	[24:32] dir offset      [32:40] dir length
//	[40:48] data offset     [48:56] data length
//	[56:60] header crc32c over [0:56]
//
// the file ends with a trailer: u64 payload length + u32 global crc32c over
// everything before the trailer.
const (
	headerSize  = 60
	trailerSize = 12
)

type sections struct {
	dictOff, dictLen uint64
	dirOff, dirLen   uint64
	dataOff, dataLen uint64
}

func encodeHeader(s sections) []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], magic[:])
	binary.LittleEndian.PutUint16(b[4:6], formatVersion)
	binary.LittleEndian.PutUint16(b[6:8], 0)
	binary.LittleEndian.PutUint64(b[8:16], s.dictOff)
	binary.LittleEndian.PutUint64(b[16:24], s.dictLen)
	binary.LittleEndian.PutUint64(b[24:32], s.dirOff)
	binary.LittleEndian.PutUint64(b[32:40], s.dirLen)
	binary.LittleEndian.PutUint64(b[40:48], s.dataOff)
	binary.LittleEndian.PutUint64(b[48:56], s.dataLen)
	binary.LittleEndian.PutUint32(b[56:60], crc32.Checksum(b[0:56], castagnoli))
	return b
}

func decodeHeader(b []byte) (sections, error) {
	var s sections
	if len(b) < headerSize {
		return s, fmt.Errorf("%w: file shorter than header", ErrCorrupt)
	}
	if [4]byte(b[0:4]) != magic {
		return s, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(b[4:6]); v != formatVersion {
		return s, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, v)
	}
	if crc := binary.LittleEndian.Uint32(b[56:60]); crc != crc32.Checksum(b[0:56], castagnoli) {
		return s, fmt.Errorf("%w: header crc mismatch", ErrCorrupt)
	}
	s.dictOff = binary.LittleEndian.Uint64(b[8:16])
	s.dictLen = binary.LittleEndian.Uint64(b[16:24])
	s.dirOff = binary.LittleEndian.Uint64(b[24:32])
	s.dirLen = binary.LittleEndian.Uint64(b[32:40])
	s.dataOff = binary.LittleEndian.Uint64(b[40:48])
	s.dataLen = binary.LittleEndian.Uint64(b[48:56])
	return s, nil
}

// termKind tags dictionary entries.
type termKind byte

const (
	kindIRI termKind = iota
	kindBlank
	kindLiteral
	kindTypedLiteral
	kindLangLiteral
)

// term is a dictionary entry. Extra holds the datatype IRI or language tag.
type term struct {
	kind  termKind
	value string
	extra string
}

const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// fromRDF flattens a knakk term into a dictionary entry.
func fromRDF(t rdf.Term) term {
	switch t.Type() {
	case rdf.TermIRI:
		return term{kind: kindIRI, value: t.String()}
	case rdf.TermBlank:
		label := t.Serialize(rdf.NTriples)
		if len(label) >= 2 && label[0] == '_' && label[1] == ':' {
			label = label[2:]
		}
		return term{kind: kindBlank, value: label}
	default:
		lit := t.(rdf.Literal)
		if lang := lit.Lang(); lang != "" {
			return term{kind: kindLangLiteral, value: lit.String(), extra: lang}
		}
		if dt := lit.DataType.String(); dt != "" && dt != xsdString {
			return term{kind: kindTypedLiteral, value: lit.String(), extra: dt}
		}
		return term{kind: kindLiteral, value: lit.String()}
	}
}

// toRDF rebuilds the knakk term.
func (t term) toRDF() (rdf.Term, error) {
	switch t.kind {
	case kindIRI:
		iri, err := rdf.NewIRI(t.value)
		if err != nil {
			return nil, err
		}
		return iri, nil
	case kindBlank:
		b, err := rdf.NewBlank(t.value)
		if err != nil {
			return nil, err
		}
		return b, nil
	case kindLiteral:
		l, err := rdf.NewLiteral(t.value)
		if err != nil {
			return nil, err
		}
		return l, nil
	case kindTypedLiteral:
		dt, err := rdf.NewIRI(t.extra)
		if err != nil {
			return nil, err
		}
		return rdf.NewTypedLiteral(t.value, dt), nil
	case kindLangLiteral:
		l, err := rdf.NewLangLiteral(t.value, t.extra)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: unknown term kind %d", ErrCorrupt, t.kind)
}

// key returns the dedup key for the dictionary.
func (t term) key() string {
	return string(rune(t.kind)) + "\x00" + t.value + "\x00" + t.extra
}

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

func appendString(b []byte, s string) []byte {
	b = appendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

// reader is a bounds-checked cursor over a byte section.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated varint", ErrCorrupt)
	}
	r.pos += n
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.b) {
		return "", fmt.Errorf("%w: truncated string", ErrCorrupt)
	}
	s := string(r.b[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("%w: truncated section", ErrCorrupt)
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, fmt.Errorf("%w: truncated section", ErrCorrupt)
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}
