package mobi

import (
	"encoding/binary"
	"fmt"
)

// Compression identifies record 0's text compression scheme.
type Compression uint16

const (
	CompressionNone    Compression = 1
	CompressionPalmDOC Compression = 2
	CompressionHuffCDIC Compression = 17480
)

// Encoding identifies the MOBI header's declared text encoding.
type Encoding uint32

const (
	EncodingCP1252 Encoding = 1252
	EncodingUTF8   Encoding = 65001
)

const exthFlagPresent = 0x40

// PalmDOCHeader is the first 16 bytes of record 0.
type PalmDOCHeader struct {
	Compression   Compression
	TextLength    uint32
	TextRecords   uint16
	RecordSize    uint16
	EncryptionType uint16
}

// MobiHeader is the MOBI-specific header that follows the PalmDOC header in
// record 0, covering both MOBI6 and the KF8 extension fields.
type MobiHeader struct {
	HeaderLength    uint32
	MobiType        uint32
	TextEncoding    Encoding
	UniqueID        uint32
	FileVersion     uint32
	FirstNonBookRec uint32
	FullNameOffset  uint32
	FullNameLength  uint32
	Language        uint32
	MinVersion      uint32
	FirstImageRec   uint32
	HuffmanRecIndex uint32
	HuffmanRecCount uint32
	EXTHFlags       uint32
	FirstContentRec uint16
	LastContentRec  uint16
	FCISRecord      uint32
	FLISRecord      uint32
	ExtraFlags      uint16

	// KF8 extension fields, valid only when present (HeaderLength large
	// enough and FileVersion >= 8).
	FDSTRecord     uint32
	FDSTCount      uint32
	FragmentRecord uint32
	FragmentCount  uint32
	SkeletonRecord uint32
	SkeletonCount  uint32
	GuideRecord    uint32
	GuideCount     uint32
	NCXIndex       uint32
	KF8BoundaryRec uint32

	hasEXTH bool
}

// HasEXTH reports whether bit 0x40 of EXTHFlags is set, meaning an EXTH
// block immediately follows the MOBI header.
func (h *MobiHeader) HasEXTH() bool { return h.hasEXTH }

// IsKF8 reports whether this header carries KF8 index fields (fragment and
// skeleton records present).
func (h *MobiHeader) IsKF8() bool { return h.FragmentRecord != 0 && h.FragmentRecord != 0xFFFFFFFF }

// ParsePalmDOCHeader reads the fixed 16-byte PalmDOC header from the start
// of record 0.
func ParsePalmDOCHeader(record0 []byte) (PalmDOCHeader, error) {
	if len(record0) < 16 {
		return PalmDOCHeader{}, fmt.Errorf("mobi: record 0 too short for PalmDOC header (%d bytes)", len(record0))
	}
	h := PalmDOCHeader{
		Compression:    Compression(binary.BigEndian.Uint16(record0[0:2])),
		TextLength:     binary.BigEndian.Uint32(record0[4:8]),
		TextRecords:    binary.BigEndian.Uint16(record0[8:10]),
		RecordSize:     binary.BigEndian.Uint16(record0[10:12]),
		EncryptionType: binary.BigEndian.Uint16(record0[12:14]),
	}
	if h.EncryptionType != 0 {
		return h, fmt.Errorf("mobi: encrypted content (encryption type %d) is not supported", h.EncryptionType)
	}
	return h, nil
}

// ParseMobiHeader reads the MOBI header starting at byte 16 of record 0.
func ParseMobiHeader(record0 []byte) (MobiHeader, error) {
	if len(record0) < 16+4 {
		return MobiHeader{}, fmt.Errorf("mobi: record 0 too short for MOBI header")
	}
	b := record0[16:]
	if string(b[0:4]) != "MOBI" {
		return MobiHeader{}, fmt.Errorf("mobi: missing MOBI magic, got %q", b[0:4])
	}
	headerLen := binary.BigEndian.Uint32(b[4:8])
	if len(b) < int(headerLen) {
		return MobiHeader{}, fmt.Errorf("mobi: MOBI header length %d exceeds record 0 bounds", headerLen)
	}

	u32 := func(off int) uint32 {
		if off+4 > len(b) {
			return 0
		}
		return binary.BigEndian.Uint32(b[off : off+4])
	}
	u16 := func(off int) uint16 {
		if off+2 > len(b) {
			return 0
		}
		return binary.BigEndian.Uint16(b[off : off+2])
	}

	h := MobiHeader{
		HeaderLength:    headerLen,
		MobiType:        u32(8),
		TextEncoding:    Encoding(u32(12)),
		UniqueID:        u32(16),
		FileVersion:     u32(20),
		FirstNonBookRec: u32(24),
		FullNameOffset:  u32(28),
		FullNameLength:  u32(32),
		Language:        u32(36),
		MinVersion:      u32(48),
		FirstImageRec:   u32(52),
		HuffmanRecIndex: u32(68),
		HuffmanRecCount: u32(72),
		EXTHFlags:       u32(108),
		FirstContentRec: u16(114),
		LastContentRec:  u16(116),
		FCISRecord:      u32(148),
		FLISRecord:      u32(156),
		ExtraFlags:      u16(162),
	}
	h.hasEXTH = h.EXTHFlags&exthFlagPresent != 0

	if headerLen >= 232 {
		h.FDSTRecord = u32(192)
		h.FDSTCount = u32(196)
		h.FragmentRecord = u32(200)
		h.FragmentCount = u32(204)
		h.SkeletonRecord = u32(208)
		h.SkeletonCount = u32(212)
		h.GuideRecord = u32(216)
		h.GuideCount = u32(220)
		h.NCXIndex = u32(176)
		h.KF8BoundaryRec = u32(180)
	}

	return h, nil
}

// FullName returns the book's full name, stored in its own record area
// (usually record 0 beyond the header, at FullNameOffset).
func (h *MobiHeader) FullName(record0 []byte) string {
	start := int(h.FullNameOffset)
	end := start + int(h.FullNameLength)
	if start < 0 || end > len(record0) || start > end {
		return ""
	}
	return string(record0[start:end])
}

// TrailingEntryCount returns how many trailing data sections ExtraFlags
// declares are appended to each text record (not counting the multibyte
// overlap bit).
func (h *MobiHeader) TrailingEntryCount() int {
	n := 0
	flags := h.ExtraFlags >> 1
	for flags != 0 {
		if flags&1 != 0 {
			n++
		}
		flags >>= 1
	}
	return n
}

// HasOverlapFlag reports whether bit 0 of ExtraFlags (multibyte character
// overlap with the next record) is set.
func (h *MobiHeader) HasOverlapFlag() bool { return h.ExtraFlags&1 != 0 }
