package ion

import (
	"bytes"
	"fmt"

	goion "github.com/amazon-ion/ion-go/ion"
)

// Reader wraps goion.Reader with string-keyed symbol/field accessors and a
// generic ReadValue that walks an arbitrary Ion value into Go maps/slices.
type Reader struct {
	reader goion.Reader
}

// NewReader creates a reader over data against a prolog already produced for
// table (see Prolog). Any BVM already on data is replaced with prolog.
func NewReader(prolog, data []byte, table goion.SharedSymbolTable) *Reader {
	combined := spliceProlog(prolog, data)
	r := goion.NewReaderCat(bytes.NewReader(combined), goion.NewCatalog(table))
	return &Reader{reader: r}
}

func (r *Reader) Next() bool               { return r.reader.Next() }
func (r *Reader) Type() goion.Type         { return r.reader.Type() }
func (r *Reader) Err() error               { return r.reader.Err() }
func (r *Reader) StepIn() error            { return r.reader.StepIn() }
func (r *Reader) StepOut() error           { return r.reader.StepOut() }
func (r *Reader) IsNull() bool             { return r.reader.IsNull() }
func (r *Reader) SymbolTable() goion.SymbolTable { return r.reader.SymbolTable() }

func (r *Reader) IntValue() (int64, error) {
	v, err := r.reader.Int64Value()
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func (r *Reader) StringValue() (string, error) {
	v, err := r.reader.StringValue()
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (r *Reader) BlobValue() ([]byte, error) { return r.reader.ByteValue() }

func (r *Reader) BoolValue() (bool, error) {
	v, err := r.reader.BoolValue()
	if err != nil || v == nil {
		return false, err
	}
	return *v, nil
}

// SymbolValue returns the current symbol value as a string, e.g. "$409".
func (r *Reader) SymbolValue() (string, error) {
	tok, err := r.reader.SymbolValue()
	if err != nil {
		return "", err
	}
	return tokenText(tok)
}

// FieldName returns the current struct field name as a string.
func (r *Reader) FieldName() (string, error) {
	tok, err := r.reader.FieldName()
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", fmt.Errorf("ion: no field name")
	}
	return tokenText(*tok)
}

// Annotations returns the annotations on the current value as strings.
func (r *Reader) Annotations() ([]string, error) {
	toks, err := r.reader.Annotations()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(toks))
	for _, tok := range toks {
		if s, err := tokenText(tok); err == nil {
			names = append(names, s)
		}
	}
	return names, nil
}

func tokenText(tok goion.SymbolToken) (string, error) {
	if tok.Text != nil {
		return *tok.Text, nil
	}
	if tok.LocalSID != goion.SymbolIDUnknown {
		return fmt.Sprintf("$%d", tok.LocalSID), nil
	}
	return "", fmt.Errorf("ion: symbol has no text or SID")
}

// ReadValue reads the current value into a generic Go representation: bool,
// int64, float64, string, []byte, []any (list/sexp), or map[string]any
// (struct), decimals rendered as their string form and timestamps as
// time.Time.
func (r *Reader) ReadValue() (any, error) {
	if r.reader.IsNull() {
		return nil, nil
	}

	switch r.reader.Type() {
	case goion.BoolType:
		return r.BoolValue()
	case goion.IntType:
		return r.IntValue()
	case goion.FloatType:
		v, err := r.reader.FloatValue()
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case goion.DecimalType:
		v, err := r.reader.DecimalValue()
		if err != nil || v == nil {
			return nil, err
		}
		return v.String(), nil
	case goion.TimestampType:
		v, err := r.reader.TimestampValue()
		if err != nil || v == nil {
			return nil, err
		}
		return v.GetDateTime(), nil
	case goion.StringType:
		return r.StringValue()
	case goion.SymbolType:
		return r.SymbolValue()
	case goion.BlobType, goion.ClobType:
		return r.reader.ByteValue()
	case goion.ListType, goion.SexpType:
		return r.readList()
	case goion.StructType:
		return r.readStruct()
	default:
		return nil, fmt.Errorf("ion: unsupported type: %v", r.reader.Type())
	}
}

func (r *Reader) readList() ([]any, error) {
	if err := r.reader.StepIn(); err != nil {
		return nil, err
	}
	var items []any
	for r.reader.Next() {
		v, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := r.reader.StepOut(); err != nil {
		return nil, err
	}
	return items, r.reader.Err()
}

func (r *Reader) readStruct() (map[string]any, error) {
	if err := r.reader.StepIn(); err != nil {
		return nil, err
	}
	m := make(map[string]any)
	for r.reader.Next() {
		fieldName, err := r.FieldName()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		m[fieldName] = v
	}
	if err := r.reader.StepOut(); err != nil {
		return nil, err
	}
	return m, r.reader.Err()
}
