// Package mobi implements the MOBI/AZW3 (PalmDOC/MOBI6 and KF8) pipeline:
// PalmDB framing, PalmDOC/MOBI header and EXTH parsing, PalmDOC LZ77 and
// HUFF-CDIC decompression, FDST flow assembly, skeleton/DIV/NCX index
// decoding, the KF8 and MOBI6 HTML link-rewriting transforms, resource
// detection, and the inverse writer path. There is no teacher equivalent
// (FB2 to MOBI was out of the source project's scope); the package follows
// the byte-cursor and error-wrapping idioms the rest of this module uses.
package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"bookforge/byteio"
)

// palmDBHeaderLen is the fixed size of the PalmDB database header.
const palmDBHeaderLen = 78

// TypeCreator identifies a PalmDB database's 4+4 byte type/creator pair.
type TypeCreator struct {
	Type    string
	Creator string
}

var (
	typeCreatorBookMobi = TypeCreator{Type: "BOOK", Creator: "MOBI"}
	typeCreatorTextRead = TypeCreator{Type: "TEXt", Creator: "REAd"}
)

// recordInfo is one 8-byte record-info-list entry: a file offset and a
// category/unique-id attribute byte group the format itself doesn't use.
type recordInfo struct {
	offset     uint32
	attributes uint32
}

// PalmDB is a parsed PalmDB container: the database name, type/creator, and
// the byte ranges of every record.
type PalmDB struct {
	Name        string
	TypeCreator TypeCreator
	records     []recordInfo
	src         byteio.Source
}

// ParsePalmDB reads the 78-byte database header and record-info list from
// src and returns a PalmDB ready to serve individual records by index.
func ParsePalmDB(src byteio.Source) (*PalmDB, error) {
	if src.Len() < palmDBHeaderLen {
		return nil, fmt.Errorf("mobi: source too short for PalmDB header (%d bytes)", src.Len())
	}
	hdr, err := src.ReadAt(0, palmDBHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("mobi: read PalmDB header: %w", err)
	}

	name := string(bytes.TrimRight(hdr[0:32], "\x00"))
	typeCreator := TypeCreator{
		Type:    string(hdr[60:64]),
		Creator: string(hdr[64:68]),
	}
	if typeCreator != typeCreatorBookMobi && typeCreator != typeCreatorTextRead {
		return nil, fmt.Errorf("mobi: unrecognized type/creator %q/%q", typeCreator.Type, typeCreator.Creator)
	}
	numRecords := binary.BigEndian.Uint16(hdr[76:78])

	infoBytes, err := src.ReadAt(palmDBHeaderLen, int(numRecords)*8)
	if err != nil {
		return nil, fmt.Errorf("mobi: read record info list: %w", err)
	}
	records := make([]recordInfo, numRecords)
	for i := range records {
		b := infoBytes[i*8 : i*8+8]
		records[i] = recordInfo{
			offset:     binary.BigEndian.Uint32(b[0:4]),
			attributes: binary.BigEndian.Uint32(b[4:8]),
		}
	}

	return &PalmDB{Name: name, TypeCreator: typeCreator, records: records, src: src}, nil
}

// NumRecords returns the number of records in the database.
func (p *PalmDB) NumRecords() int { return len(p.records) }

// Record returns the raw bytes of record n, spanning from its own offset to
// the next record's offset (or EOF for the last record).
func (p *PalmDB) Record(n int) ([]byte, error) {
	if n < 0 || n >= len(p.records) {
		return nil, fmt.Errorf("mobi: record index %d out of range [0,%d)", n, len(p.records))
	}
	start := int64(p.records[n].offset)
	var end int64
	if n+1 < len(p.records) {
		end = int64(p.records[n+1].offset)
	} else {
		end = p.src.Len()
	}
	if end < start {
		return nil, fmt.Errorf("mobi: record %d has negative length (offset %d > next %d)", n, start, end)
	}
	return p.src.ReadAt(start, int(end-start))
}

// palmDBWriter accumulates records and serializes a fresh PalmDB container
// on Bytes, recomputing the record-info offset table from each record's
// actual length.
type palmDBWriter struct {
	name        string
	typeCreator TypeCreator
	records     [][]byte
}

func newPalmDBWriter(name string, tc TypeCreator) *palmDBWriter {
	return &palmDBWriter{name: name, typeCreator: tc}
}

func (w *palmDBWriter) AddRecord(data []byte) int {
	w.records = append(w.records, data)
	return len(w.records) - 1
}

func (w *palmDBWriter) Bytes() []byte {
	var buf bytes.Buffer

	var nameField [32]byte
	copy(nameField[:], w.name)
	buf.Write(nameField[:])

	var attrsAndVersion [4]byte // attributes(2) + version(2), both zero
	buf.Write(attrsAndVersion[:])
	var dates [12]byte // creation/modification/backup date, unused on read
	buf.Write(dates[:])
	var modNum [4]byte
	buf.Write(modNum[:])
	var appInfoSortInfo [8]byte
	buf.Write(appInfoSortInfo[:])
	buf.WriteString(w.typeCreator.Type)
	buf.WriteString(w.typeCreator.Creator)
	var uniqueSeed [4]byte
	buf.Write(uniqueSeed[:])
	var nextRecordListID [4]byte
	buf.Write(nextRecordListID[:])

	var numRecords [2]byte
	binary.BigEndian.PutUint16(numRecords[:], uint16(len(w.records)))
	buf.Write(numRecords[:])

	headerLen := buf.Len()
	infoLen := len(w.records) * 8
	offset := uint32(headerLen + infoLen + 2) // +2 for the padding gap PDB readers expect
	infoTable := make([]byte, 0, infoLen)
	for i := range w.records {
		var entry [8]byte
		binary.BigEndian.PutUint32(entry[0:4], offset)
		binary.BigEndian.PutUint32(entry[4:8], uint32(i)<<3) // attributes: unique id ~ index
		infoTable = append(infoTable, entry[:]...)
		offset += uint32(len(w.records[i]))
	}
	buf.Write(infoTable)
	buf.Write([]byte{0, 0}) // two-byte padding gap

	for _, r := range w.records {
		buf.Write(r)
	}
	return buf.Bytes()
}
