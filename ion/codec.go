package ion

import (
	"bytes"
	"fmt"

	goion "github.com/amazon-ion/ion-go/ion"
)

// Decode decodes Ion binary data into v against the given shared symbol
// table. prolog is the BVM+symbol-table-import header that data's producer
// used (see Prolog); data may carry its own BVM, which is stripped and
// replaced by prolog before parsing. If v implements Validate() error, it is
// called after a successful decode.
func Decode(prolog, data []byte, table goion.SharedSymbolTable, v any) error {
	combined := spliceProlog(prolog, data)
	if err := goion.Unmarshal(combined, v, table); err != nil {
		return err
	}
	if val, ok := v.(interface{ Validate() error }); ok {
		return val.Validate()
	}
	return nil
}

// DecodeSymbolTable decodes the Ion symbol table present at the start of
// data, using table as the catalog's shared symbol table.
func DecodeSymbolTable(data []byte, table goion.SharedSymbolTable) (goion.SymbolTable, error) {
	r := goion.NewReaderCat(bytes.NewReader(data), goion.NewCatalog(table))
	r.Next()
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.SymbolTable(), nil
}

// Encode encodes v to Ion binary, with a prolog importing table.
func Encode(v any, table goion.SharedSymbolTable) ([]byte, error) {
	return goion.MarshalBinary(v, table)
}

// Prolog returns the BVM + shared-symbol-table-import bytes for table. This
// is the header every value encoded against table must be prefixed with
// before a standalone Ion reader can resolve its symbols.
func Prolog(table goion.SharedSymbolTable) []byte {
	buf := bytes.Buffer{}
	if err := goion.NewBinaryWriter(&buf, table).Finish(); err != nil {
		panic(fmt.Errorf("ion: build prolog for %s: %w", table.Name(), err))
	}
	return buf.Bytes()
}

// spliceProlog strips any existing BVM from data and prefixes prolog.
func spliceProlog(prolog, data []byte) []byte {
	body := data
	if HasBVM(data) {
		body = data[len(BVM):]
	}
	combined := make([]byte, 0, len(prolog)+len(body))
	combined = append(combined, prolog...)
	combined = append(combined, body...)
	return combined
}

// StripProlog removes a leading BVM and its symbol-table-import annotation
// wrapper, returning the raw value(s) that follow. Used to shrink a
// self-contained Ion document down to the bytes that belong in a
// payload slot whose container already carries the symbol context
// out-of-band (e.g. a KFX entity, which relies on its container's shared
// symbol table rather than repeating the import inline).
func StripProlog(data []byte) []byte {
	if len(data) < 4 || !HasBVM(data) {
		return data
	}
	pos := 4

	for pos < len(data) {
		typeByte := data[pos]
		typeCode := typeByte >> 4
		lenCode := typeByte & 0x0F

		if typeCode != 0xE {
			break
		}

		var totalLen, headerLen int
		if lenCode == 0xE {
			length, lenBytes := readVarUIntBytes(data[pos+1:])
			totalLen = int(length)
			headerLen = 1 + lenBytes
		} else {
			totalLen = int(lenCode)
			headerLen = 1
		}

		annotStart := pos + headerLen
		if annotStart >= len(data) {
			break
		}

		annotSymLen, annotSymLenBytes := readVarUIntBytes(data[annotStart:])
		firstAnnotPos := annotStart + annotSymLenBytes
		if firstAnnotPos >= len(data) {
			break
		}

		// $3 ($ion_symbol_table) is encoded as a single VarUInt symbol ID
		// byte 0x83 (high bit set, value 3).
		if annotSymLen >= 1 && data[firstAnnotPos] == 0x83 {
			pos += headerLen + totalLen
			continue
		}
		break
	}

	return data[pos:]
}
