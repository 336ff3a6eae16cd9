package ion

import (
	"bytes"
	"fmt"

	goion "github.com/amazon-ion/ion-go/ion"
)

// Writer wraps goion.Writer with symbol/field helpers keyed by numeric
// symbol ID, the shape every format built on a fixed shared symbol table
// (KFX's YJ_symbols, in particular) wants.
type Writer struct {
	buf    *bytes.Buffer
	writer goion.Writer
	table  goion.SharedSymbolTable
}

// NewWriter creates a binary Ion writer importing table.
func NewWriter(table goion.SharedSymbolTable) *Writer {
	buf := &bytes.Buffer{}
	return &Writer{buf: buf, writer: goion.NewBinaryWriter(buf, table), table: table}
}

// Bytes finishes the stream and returns the serialized data, including the
// BVM and symbol-table import prolog.
func (w *Writer) Bytes() ([]byte, error) {
	if err := w.writer.Finish(); err != nil {
		return nil, fmt.Errorf("ion: finish writer: %w", err)
	}
	return w.buf.Bytes(), nil
}

// RawBytes returns the serialized data with the prolog stripped, for storage
// in a slot whose symbol context comes from elsewhere.
func (w *Writer) RawBytes() ([]byte, error) {
	data, err := w.Bytes()
	if err != nil {
		return nil, err
	}
	return StripProlog(data), nil
}

// BytesWithBVM returns the serialized data with a bare BVM but no
// symbol-table-import annotation, for blobs that need a BVM to be
// independently parseable but resolve symbols against a sibling table.
func (w *Writer) BytesWithBVM() ([]byte, error) {
	data, err := w.Bytes()
	if err != nil {
		return nil, err
	}
	raw := StripProlog(data)
	result := make([]byte, 0, len(BVM)+len(raw))
	result = append(result, BVM...)
	result = append(result, raw...)
	return result, nil
}

// WriteSymbol writes a symbol value by name (e.g. "$409").
func (w *Writer) WriteSymbol(name string) error {
	return w.writer.WriteSymbolFromString(name)
}

// WriteSymbolID writes a symbol value by numeric ID.
func (w *Writer) WriteSymbolID(id int) error {
	return w.writer.WriteSymbolFromString(fmt.Sprintf("$%d", id))
}

// WriteSymbolBySID writes a symbol value with an explicit local symbol ID,
// for symbols added to a document-local extension of the shared table.
func (w *Writer) WriteSymbolBySID(name string, sid int) error {
	tok := goion.SymbolToken{Text: &name, LocalSID: int64(sid)}
	return w.writer.WriteSymbol(tok)
}

// WriteSymbolField writes a struct field name by numeric symbol ID.
func (w *Writer) WriteSymbolField(id int) error {
	tok := goion.NewSymbolTokenFromString(fmt.Sprintf("$%d", id))
	return w.writer.FieldName(tok)
}

// WriteFieldName writes a struct field name by text, for fields whose name
// is a document-local string rather than a shared-table symbol ID.
func (w *Writer) WriteFieldName(name string) error {
	return w.writer.FieldName(goion.NewSymbolTokenFromString(name))
}

// WriteAnnotation adds an annotation by numeric symbol ID.
func (w *Writer) WriteAnnotation(id int) error {
	tok := goion.NewSymbolTokenFromString(fmt.Sprintf("$%d", id))
	return w.writer.Annotation(tok)
}

func (w *Writer) WriteInt(v int64) error     { return w.writer.WriteInt(v) }
func (w *Writer) WriteString(v string) error { return w.writer.WriteString(v) }
func (w *Writer) WriteBlob(v []byte) error   { return w.writer.WriteBlob(v) }
func (w *Writer) WriteFloat(v float64) error { return w.writer.WriteFloat(v) }
func (w *Writer) WriteBool(v bool) error     { return w.writer.WriteBool(v) }
func (w *Writer) WriteNull() error           { return w.writer.WriteNull() }

func (w *Writer) BeginStruct() error { return w.writer.BeginStruct() }
func (w *Writer) EndStruct() error   { return w.writer.EndStruct() }
func (w *Writer) BeginList() error   { return w.writer.BeginList() }
func (w *Writer) EndList() error     { return w.writer.EndList() }

// WriteIntField writes a struct field with an integer value.
func (w *Writer) WriteIntField(fieldID int, value int64) error {
	if err := w.WriteSymbolField(fieldID); err != nil {
		return err
	}
	return w.WriteInt(value)
}

// WriteStringField writes a struct field with a string value.
func (w *Writer) WriteStringField(fieldID int, value string) error {
	if err := w.WriteSymbolField(fieldID); err != nil {
		return err
	}
	return w.WriteString(value)
}

// WriteSymbolFieldValue writes a struct field whose value is itself a
// symbol, by numeric ID.
func (w *Writer) WriteSymbolFieldValue(fieldID, valueID int) error {
	if err := w.WriteSymbolField(fieldID); err != nil {
		return err
	}
	return w.WriteSymbolID(valueID)
}

// WriteBlobField writes a struct field with a blob value.
func (w *Writer) WriteBlobField(fieldID int, value []byte) error {
	if err := w.WriteSymbolField(fieldID); err != nil {
		return err
	}
	return w.WriteBlob(value)
}
