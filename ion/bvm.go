// Package ion wraps github.com/amazon-ion/ion-go with the binary-version-marker
// and symbol-table plumbing every format backend needs: reading/writing Ion
// values against a caller-supplied shared symbol table, stripping or
// prepending the prolog around a value so it can be stored standalone (as a
// KFX entity payload, say) and reattached to a document's symbol context
// later.
package ion

import "bytes"

// BVM is the four-byte Ion 1.0 Binary Version Marker.
var BVM = []byte{0xE0, 0x01, 0x00, 0xEA}

// HasBVM reports whether data starts with the Ion Binary Version Marker.
func HasBVM(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], BVM)
}

// StripBVM removes the BVM from the beginning of data if present.
func StripBVM(data []byte) []byte {
	if HasBVM(data) {
		return data[4:]
	}
	return data
}

// PrependBVM adds the BVM to the beginning of data if not already present.
func PrependBVM(data []byte) []byte {
	if HasBVM(data) {
		return data
	}
	result := make([]byte, len(data)+4)
	copy(result, BVM)
	copy(result[4:], data)
	return result
}
