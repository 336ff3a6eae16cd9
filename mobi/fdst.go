package mobi

import (
	"encoding/binary"
	"fmt"
)

// Flow is one (start, end) byte range into the assembled raw text buffer:
// flow 0 is always the primary HTML, later flows are auxiliary CSS/SVG/etc.
type Flow struct {
	Start, End int
}

// ParseFDST parses an FDST record (magic "FDST") into its flow list. For
// MOBI6 content (no FDST record present), callers should synthesize a
// single flow spanning the whole text buffer instead of calling this.
func ParseFDST(data []byte) ([]Flow, error) {
	if len(data) < 12 || string(data[0:4]) != "FDST" {
		return nil, fmt.Errorf("mobi: missing FDST magic")
	}
	dataStart := binary.BigEndian.Uint32(data[4:8])
	count := binary.BigEndian.Uint32(data[8:12])
	_ = dataStart

	flows := make([]Flow, 0, count)
	off := 12
	for i := uint32(0); i < count; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("mobi: FDST record truncated at entry %d", i)
		}
		start := binary.BigEndian.Uint32(data[off : off+4])
		end := binary.BigEndian.Uint32(data[off+4 : off+8])
		flows = append(flows, Flow{Start: int(start), End: int(end)})
		off += 8
	}
	return flows, nil
}

// SingleFlow returns the one-flow list MOBI6 content always uses: the whole
// decompressed text buffer as flow 0.
func SingleFlow(textLength int) []Flow {
	return []Flow{{Start: 0, End: textLength}}
}
