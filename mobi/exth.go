package mobi

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"bookforge/book"
)

// EXTH record type codes recognized by spec 4.G.
const (
	exthAuthor       = 100
	exthPublisher    = 101
	exthDescription  = 103
	exthSubject      = 105
	exthDate         = 106
	exthISBN         = 104
	exthReviewText   = 107
	exthIdentifier   = 504 // ASIN
	exthCoverRecord  = 201
	exthThumbRecord  = 202
	exthKF8Boundary  = 121
	exthRights       = 109
	exthURI          = 113
)

// EXTHRecord is one raw EXTH record before type-specific decoding.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// ParseEXTH reads the EXTH header and its records from data, which must
// start at the "EXTH" magic.
func ParseEXTH(data []byte, enc Encoding) ([]EXTHRecord, error) {
	if len(data) < 12 || string(data[0:4]) != "EXTH" {
		return nil, fmt.Errorf("mobi: missing EXTH magic")
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	count := binary.BigEndian.Uint32(data[8:12])
	if int(headerLen) > len(data) {
		return nil, fmt.Errorf("mobi: EXTH header length %d exceeds available bytes %d", headerLen, len(data))
	}

	records := make([]EXTHRecord, 0, count)
	off := 12
	for i := uint32(0); i < count && off+8 <= len(data); i++ {
		typ := binary.BigEndian.Uint32(data[off : off+4])
		length := binary.BigEndian.Uint32(data[off+4 : off+8])
		if length < 8 || off+int(length) > len(data) {
			return nil, fmt.Errorf("mobi: EXTH record %d has invalid length %d", i, length)
		}
		records = append(records, EXTHRecord{Type: typ, Data: data[off+8 : off+int(length)]})
		off += int(length)
	}
	return records, nil
}

// decodeText decodes an EXTH text payload using the document's declared
// encoding (CP1252 or UTF-8).
func decodeText(raw []byte, enc Encoding) string {
	if enc == EncodingCP1252 {
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err == nil {
			return string(out)
		}
	}
	return string(raw)
}

// MetadataFromEXTH folds a record set into a book.Metadata, returning also
// the cover/thumbnail record indices (offsets from FirstImageRec) when
// present.
func MetadataFromEXTH(records []EXTHRecord, enc Encoding, fullName string) (book.Metadata, int, int, bool, bool) {
	md := book.Metadata{Title: fullName}
	coverRec, thumbRec := -1, -1
	haveCover, haveThumb := false, false

	for _, r := range records {
		switch r.Type {
		case exthAuthor:
			md.Authors = append(md.Authors, decodeText(r.Data, enc))
		case exthPublisher:
			md.Publisher = decodeText(r.Data, enc)
		case exthDescription:
			md.Description = decodeText(r.Data, enc)
		case exthSubject:
			md.Subjects = append(md.Subjects, decodeText(r.Data, enc))
		case exthDate:
			md.Date = decodeText(r.Data, enc)
		case exthRights:
			md.Rights = decodeText(r.Data, enc)
		case exthIdentifier:
			md.Identifier = NormalizeASIN(decodeText(r.Data, enc))
		case exthISBN:
			if md.Identifier == "" {
				md.Identifier = decodeText(r.Data, enc)
			}
		case exthURI:
			if md.Identifier == "" {
				md.Identifier = decodeText(r.Data, enc)
			}
		case exthCoverRecord:
			if len(r.Data) >= 4 {
				coverRec = int(binary.BigEndian.Uint32(r.Data))
				haveCover = true
			}
		case exthThumbRecord:
			if len(r.Data) >= 4 {
				thumbRec = int(binary.BigEndian.Uint32(r.Data))
				haveThumb = true
			}
		}
	}
	return md, coverRec, thumbRec, haveCover, haveThumb
}

// EncodeEXTH serializes md (plus optional cover/thumbnail record indices)
// into an EXTH block, padded to a multiple of 4 bytes as the format
// requires.
func EncodeEXTH(md book.Metadata, coverRecordIndex, thumbRecordIndex int) []byte {
	type rawRecord struct {
		typ  uint32
		data []byte
	}
	var recs []rawRecord
	add := func(typ uint32, s string) {
		if s != "" {
			recs = append(recs, rawRecord{typ, []byte(s)})
		}
	}
	add(exthPublisher, md.Publisher)
	add(exthDescription, md.Description)
	add(exthDate, md.Date)
	add(exthRights, md.Rights)
	add(exthIdentifier, md.Identifier)
	for _, a := range md.Authors {
		add(exthAuthor, a)
	}
	for _, s := range md.Subjects {
		add(exthSubject, s)
	}
	if coverRecordIndex >= 0 {
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], uint32(coverRecordIndex))
		recs = append(recs, rawRecord{exthCoverRecord, v[:]})
	}
	if thumbRecordIndex >= 0 {
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], uint32(thumbRecordIndex))
		recs = append(recs, rawRecord{exthThumbRecord, v[:]})
	}

	body := make([]byte, 0, 256)
	for _, r := range recs {
		var lenBuf [4]byte
		length := 8 + len(r.data)
		var typBuf [4]byte
		binary.BigEndian.PutUint32(typBuf[:], r.typ)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(length))
		body = append(body, typBuf[:]...)
		body = append(body, lenBuf[:]...)
		body = append(body, r.data...)
	}

	headerLen := 12 + len(body)
	padding := (4 - headerLen%4) % 4
	out := make([]byte, 0, headerLen+padding)
	out = append(out, "EXTH"...)
	var hl, cnt [4]byte
	binary.BigEndian.PutUint32(hl[:], uint32(headerLen+padding))
	binary.BigEndian.PutUint32(cnt[:], uint32(len(recs)))
	out = append(out, hl[:]...)
	out = append(out, cnt[:]...)
	out = append(out, body...)
	for i := 0; i < padding; i++ {
		out = append(out, 0)
	}
	return out
}
