package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ColumnType identifies the scalar type of a dataset column
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeText    ColumnType = "text"
	TypeBoolean ColumnType = "boolean"
	TypeDate    ColumnType = "date"
)

// Column describes one named, typed column of the dataset
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Schema describes the fixed column set of the dataset table.
// It is known at load time and never changes for the process lifetime.
type Schema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns the column names in schema order
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnType returns the declared type for a column name, or TypeText
// when the name is not part of the schema (computed columns, aliases)
func (s Schema) ColumnType(name string) ColumnType {
	for _, col := range s.Columns {
		if col.Name == name {
			return col.Type
		}
	}
	return TypeText
}

// DefaultSchema returns the employee dataset schema loaded at startup
func DefaultSchema() Schema {
	return Schema{
		Table: "employees",
		Columns: []Column{
			{Name: "id", Type: TypeInteger},
			{Name: "name", Type: TypeText},
			{Name: "email", Type: TypeText},
			{Name: "department", Type: TypeText},
			{Name: "role", Type: TypeText},
			{Name: "level", Type: TypeInteger},
			{Name: "salary", Type: TypeInteger},
			{Name: "remote", Type: TypeBoolean},
			{Name: "hire_date", Type: TypeDate},
		},
	}
}

// Value is one scalar cell of a Record. Exactly one of the typed fields
// is meaningful, selected by Kind; Null overrides all of them.
type Value struct {
	Kind ColumnType
	Null bool
	Int  int64
	Text string
	Bool bool
	Date string // canonical YYYY-MM-DD
}

// IntValue creates an integer Value
func IntValue(v int64) Value { return Value{Kind: TypeInteger, Int: v} }

// TextValue creates a text Value
func TextValue(v string) Value { return Value{Kind: TypeText, Text: v} }

// BoolValue creates a boolean Value
func BoolValue(v bool) Value { return Value{Kind: TypeBoolean, Bool: v} }

// DateValue creates a date Value from a canonical YYYY-MM-DD string
func DateValue(v string) Value { return Value{Kind: TypeDate, Date: v} }

// NullValue creates a null Value
func NullValue() Value { return Value{Null: true} }

// MarshalJSON encodes the Value as its underlying scalar
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	switch v.Kind {
	case TypeInteger:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case TypeBoolean:
		return []byte(strconv.FormatBool(v.Bool)), nil
	case TypeDate:
		return json.Marshal(v.Date)
	default:
		return json.Marshal(v.Text)
	}
}

// String renders the Value for terminal display
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Kind {
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	case TypeDate:
		return v.Date
	default:
		return v.Text
	}
}

// Record is one row of a query result: an ordered list of named scalar
// values. Order matches the result column order, so JSON output is
// stable across chunks and store implementations.
type Record struct {
	columns []string
	values  []Value
}

// NewRecord creates a Record from parallel column and value slices
func NewRecord(columns []string, values []Value) (Record, error) {
	if len(columns) != len(values) {
		return Record{}, fmt.Errorf("record has %d columns but %d values", len(columns), len(values))
	}
	return Record{columns: columns, values: values}, nil
}

// Columns returns the record's column names in result order
func (r Record) Columns() []string {
	return r.columns
}

// Value returns the value for a column name
func (r Record) Value(column string) (Value, bool) {
	for i, name := range r.columns {
		if name == column {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Len returns the number of columns in the record
func (r Record) Len() int {
	return len(r.columns)
}

// MarshalJSON encodes the record as a JSON object preserving column order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Query is an immutable read-only retrieval request
type Query struct {
	Text  string `json:"sql"`
	Limit int    `json:"limit,omitempty"`
}

// Chunk is one regrouped batch of records plus its position in the
// stream. Index is 1-based and strictly sequential; RowsSoFar is the
// running total including this chunk.
type Chunk struct {
	Rows        []Record
	Index       int
	RowsInChunk int
	RowsSoFar   int
}
