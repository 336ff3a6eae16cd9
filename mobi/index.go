package mobi

import (
	"encoding/binary"
	"fmt"
)

// tagxEntry is one entry of a TAGX tag table: which tag id a value
// represents, how many values it carries, and which bitmask selects it from
// an entry's control byte(s).
type tagxEntry struct {
	tag      byte
	numValues byte
	bitmask  byte
	eof      bool
}

// parseTAGX parses the control-table block that precedes an INDX record's
// entries, shared by every index of the same kind (skeleton/DIV/NCX each
// have their own tag table, declared once before their first INDX record).
func parseTAGX(data []byte) ([]tagxEntry, int, error) {
	if len(data) < 12 || string(data[0:4]) != "TAGX" {
		return nil, 0, fmt.Errorf("mobi: missing TAGX magic")
	}
	tableLen := binary.BigEndian.Uint32(data[4:8])
	controlByteCount := int(binary.BigEndian.Uint32(data[8:12]))

	var entries []tagxEntry
	for off := 12; off+4 <= int(tableLen) && off+4 <= len(data); off += 4 {
		tag, numValues, bitmask, flags := data[off], data[off+1], data[off+2], data[off+3]
		entries = append(entries, tagxEntry{tag: tag, numValues: numValues, bitmask: bitmask, eof: flags&0x01 != 0})
	}
	return entries, controlByteCount, nil
}

// IndexEntry is one decoded INDX entry: its label (a length-prefixed string
// key) and the raw tag values present for it, keyed by tag id. Multi-value
// tags keep all their values in order.
type IndexEntry struct {
	Label  string
	Values map[byte][]uint32
}

// ParseINDX parses one INDX record's entries using a previously-parsed
// TAGX tag table. INDX records hold entries inline (ordinal position) and
// reference their entry count/offsets via a trailing IDXT block.
func ParseINDX(data []byte, tagTable []tagxEntry, controlByteCount int) ([]IndexEntry, error) {
	if len(data) < 192 || string(data[0:4]) != "INDX" {
		return nil, fmt.Errorf("mobi: missing INDX magic")
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	_ = headerLen
	idxtOffset := binary.BigEndian.Uint32(data[20:24])
	entryCount := binary.BigEndian.Uint32(data[24:28])

	if int(idxtOffset) >= len(data) || string(data[idxtOffset:idxtOffset+4]) != "IDXT" {
		return nil, fmt.Errorf("mobi: missing IDXT magic at offset %d", idxtOffset)
	}

	offsets := make([]int, 0, entryCount+1)
	off := int(idxtOffset) + 4
	for i := uint32(0); i < entryCount && off+2 <= len(data); i++ {
		offsets = append(offsets, int(binary.BigEndian.Uint16(data[off:off+2])))
		off += 2
	}
	offsets = append(offsets, int(idxtOffset))

	entries := make([]IndexEntry, 0, entryCount)
	for i := 0; i < len(offsets)-1; i++ {
		start, end := offsets[i], offsets[i+1]
		if start < 0 || end > len(data) || start > end {
			continue
		}
		entry, err := parseIndexEntry(data[start:end], tagTable, controlByteCount)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseIndexEntry decodes one entry: a length-prefixed label followed by a
// run of control bytes (one bit pattern per tag in the table, unless the
// tag's eof flag is set, which marks an end-of-entry-of-multi-byte-control
// sentinel) and then the tag values themselves as VarUint-encoded integers.
func parseIndexEntry(data []byte, tagTable []tagxEntry, controlByteCount int) (IndexEntry, error) {
	if len(data) < 1 {
		return IndexEntry{}, fmt.Errorf("mobi: empty index entry")
	}
	labelLen := int(data[0])
	if 1+labelLen > len(data) {
		return IndexEntry{}, fmt.Errorf("mobi: index entry label length out of bounds")
	}
	label := string(data[1 : 1+labelLen])
	pos := 1 + labelLen

	if pos+controlByteCount > len(data) {
		return IndexEntry{}, fmt.Errorf("mobi: index entry control bytes out of bounds")
	}
	controlBytes := data[pos : pos+controlByteCount]
	pos += controlByteCount

	values := make(map[byte][]uint32)
	for _, tag := range tagTable {
		if tag.eof {
			continue
		}
		byteIdx := 0 // TAGX entries all share the single leading control byte in this module's tag tables
		if byteIdx >= len(controlBytes) {
			continue
		}
		cb := controlBytes[byteIdx]
		if cb&tag.bitmask == 0 {
			continue
		}
		count := int(tag.numValues)
		vs := make([]uint32, 0, count)
		for i := 0; i < count; i++ {
			v, n := readForwardVarUint(data[pos:])
			if n == 0 {
				break
			}
			vs = append(vs, v)
			pos += n
		}
		values[tag.tag] = vs
	}

	return IndexEntry{Label: label, Values: values}, nil
}

// readForwardVarUint reads a VarUint the same way INDX entry tag values are
// stored: 7 bits per byte, most significant byte first, terminated by a byte
// with the top bit set.
func readForwardVarUint(data []byte) (value uint32, size int) {
	for i := 0; i < len(data) && i < 4; i++ {
		b := data[i]
		value = value<<7 | uint32(b&0x7F)
		size++
		if b&0x80 != 0 {
			return value, size
		}
	}
	return 0, 0
}

// SkeletonEntry is one chapter skeleton: its index into the flow's file
// records and where it sits in the assembled HTML stream.
type SkeletonEntry struct {
	FileNumber int
	InsertPos  int
	Length     int
}

// DivEntry ("fragment") names one element's position for href generation.
type DivEntry struct {
	FileNumber int
	InsertPos  int
}

// NcxEntry is one table-of-contents entry decoded from the NCX index.
type NcxEntry struct {
	Text   string
	Href   string
	Parent int // -1 for a top-level entry
}

// Tag ids used by the skeleton, fragment (DIV), and NCX indices, per the
// conventional MOBI KF8 tag table layout.
const (
	tagSkeletonChunkCount = 1
	tagSkeletonGeometry   = 6 // (startPos, length)

	tagFragInsertOffset = 2
	tagFragMidGeometry  = 6 // (insertPos, length) for a fragment entry

	tagNcxOffset       = 1
	tagNcxParentIndex  = 21
	tagNcxHeadingLevel = 4
)

// DecodeSkeletonIndex turns raw INDX entries into SkeletonEntry records.
func DecodeSkeletonIndex(entries []IndexEntry) []SkeletonEntry {
	out := make([]SkeletonEntry, 0, len(entries))
	for i, e := range entries {
		geo := e.Values[tagSkeletonGeometry]
		pos, length := 0, 0
		if len(geo) >= 2 {
			pos, length = int(geo[0]), int(geo[1])
		}
		out = append(out, SkeletonEntry{FileNumber: i, InsertPos: pos, Length: length})
	}
	return out
}

// DecodeDivIndex turns raw INDX entries into DivEntry records, one per
// named element in document order.
func DecodeDivIndex(entries []IndexEntry) []DivEntry {
	out := make([]DivEntry, 0, len(entries))
	for _, e := range entries {
		geo := e.Values[tagFragMidGeometry]
		insertPos := 0
		if len(geo) >= 1 {
			insertPos = int(geo[0])
		}
		fileNum := 0
		if off := e.Values[tagFragInsertOffset]; len(off) >= 1 {
			fileNum = int(off[0])
		}
		out = append(out, DivEntry{FileNumber: fileNum, InsertPos: insertPos})
	}
	return out
}

// DecodeNcxIndex turns raw INDX entries into NcxEntry records. hrefFor
// builds the href for an entry's offset using whichever transform (KF8 or
// MOBI6) produced the document.
func DecodeNcxIndex(entries []IndexEntry, hrefFor func(offset uint32) string) []NcxEntry {
	out := make([]NcxEntry, 0, len(entries))
	for _, e := range entries {
		parent := -1
		if p := e.Values[tagNcxParentIndex]; len(p) >= 1 {
			parent = int(p[0])
		}
		href := ""
		if off := e.Values[tagNcxOffset]; len(off) >= 1 && hrefFor != nil {
			href = hrefFor(off[0])
		}
		out = append(out, NcxEntry{Text: e.Label, Href: href, Parent: parent})
	}
	return out
}
