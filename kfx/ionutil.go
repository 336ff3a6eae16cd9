package kfx

import (
	"fmt"

	goion "github.com/amazon-ion/ion-go/ion"

	"bookforge/ion"
)

// sharedSymbolTable is the YJ_symbols shared symbol table for KFX.
var sharedSymbolTable = createSharedSymbolTable(LargestKnownSymbol)

// ionProlog is the Ion binary prolog with YJ_symbols import.
var ionProlog = ion.Prolog(sharedSymbolTable)

// createSharedSymbolTable creates the YJ_symbols shared symbol table.
// Symbol names are $10, $11, etc. (after Ion system symbols which go 1-9).
func createSharedSymbolTable(maxID KFXSymbol) goion.SharedSymbolTable {
	systemSymCount := len(goion.V1SystemSymbolTable.Symbols())
	symbols := make([]string, 0, maxID)
	for i := systemSymCount + 1; i <= systemSymCount+int(maxID); i++ {
		symbols = append(symbols, fmt.Sprintf("$%d", i))
	}
	return goion.NewSharedSymbolTable("YJ_symbols", 10, symbols)
}

// GetIonProlog returns the Ion prolog bytes for writing.
func GetIonProlog() []byte { return ionProlog }

// GetSharedSymbolTable returns the YJ_symbols shared symbol table.
func GetSharedSymbolTable() goion.SharedSymbolTable { return sharedSymbolTable }

// DecodeIon decodes Ion binary data into a Go value using YJ_symbols.
// The prolog should be from GetIonProlog() or from the document's symbol table.
func DecodeIon(prolog, data []byte, v any) error {
	return ion.Decode(prolog, data, sharedSymbolTable, v)
}

// DecodeSymbolTable decodes an Ion symbol table from binary data.
func DecodeSymbolTable(data []byte) (goion.SymbolTable, error) {
	return ion.DecodeSymbolTable(data, sharedSymbolTable)
}

// EncodeIon encodes a Go value to Ion binary using YJ_symbols.
func EncodeIon(v any) ([]byte, error) {
	return ion.Encode(v, sharedSymbolTable)
}

// IonWriter wraps ion.Writer pinned to the YJ_symbols table.
type IonWriter struct {
	*ion.Writer
}

// NewIonWriter creates a new Ion binary writer with YJ_symbols.
func NewIonWriter() *IonWriter {
	return &IonWriter{ion.NewWriter(sharedSymbolTable)}
}

// NewIonWriterWithLocalSymbols creates a new Ion binary writer with YJ_symbols
// plus a document-local extension of additional symbols.
func NewIonWriterWithLocalSymbols(localSymbols []string) *IonWriter {
	return &IonWriter{ion.NewWriter(createCombinedSymbolTable(localSymbols))}
}

// createCombinedSymbolTable creates a shared symbol table with YJ_symbols plus local symbols.
func createCombinedSymbolTable(localSymbols []string) goion.SharedSymbolTable {
	baseSymbols := sharedSymbolTable.Symbols()
	allSymbols := make([]string, 0, len(baseSymbols)+len(localSymbols))
	allSymbols = append(allSymbols, baseSymbols...)
	allSymbols = append(allSymbols, localSymbols...)
	// Using version 10 to match YJ_symbols, but this is really a combined table.
	return goion.NewSharedSymbolTable("YJ_symbols", 10, allSymbols)
}

// IonReader wraps ion.Reader pinned to the YJ_symbols table.
type IonReader struct {
	*ion.Reader
}

// NewIonReader creates a new Ion reader from binary data with the given prolog.
func NewIonReader(prolog, data []byte) *IonReader {
	return &IonReader{ion.NewReader(prolog, data, sharedSymbolTable)}
}

// NewIonReaderBytes creates a new Ion reader using the default YJ_symbols prolog.
func NewIonReaderBytes(data []byte) *IonReader {
	return NewIonReader(ionProlog, data)
}

// HasIonBVM checks if data starts with the Ion Binary Version Marker.
func HasIonBVM(data []byte) bool { return ion.HasBVM(data) }

// StripIonBVM removes the Ion BVM from the beginning of data if present.
func StripIonBVM(data []byte) []byte { return ion.StripBVM(data) }

// PrependIonBVM adds the Ion BVM to the beginning of data if not present.
func PrependIonBVM(data []byte) []byte { return ion.PrependBVM(data) }

// ReadLittleEndianU16 reads a little-endian uint16.
func ReadLittleEndianU16(data []byte) uint16 { return ion.ReadLittleEndianU16(data) }

// ReadLittleEndianU32 reads a little-endian uint32.
func ReadLittleEndianU32(data []byte) uint32 { return ion.ReadLittleEndianU32(data) }

// ReadLittleEndianU64 reads a little-endian uint64.
func ReadLittleEndianU64(data []byte) uint64 { return ion.ReadLittleEndianU64(data) }

// WriteLittleEndianU16 writes a little-endian uint16.
func WriteLittleEndianU16(buf []byte, v uint16) { ion.WriteLittleEndianU16(buf, v) }

// WriteLittleEndianU32 writes a little-endian uint32.
func WriteLittleEndianU32(buf []byte, v uint32) { ion.WriteLittleEndianU32(buf, v) }

// WriteLittleEndianU64 writes a little-endian uint64.
func WriteLittleEndianU64(buf []byte, v uint64) { ion.WriteLittleEndianU64(buf, v) }
