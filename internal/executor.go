package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RowSource is the pull contract shared by every pipeline stage that
// produces rows. Next advances to the next row and reports whether one
// is available; Err reports the first error encountered; Close
// releases the underlying cursor. A RowSource is finite and not
// restartable.
type RowSource interface {
	Next() bool
	Row() Record
	Err() error
	Close() error
}

// Executor runs validated queries against the store and produces rows
// as a lazy sequence of normalized Records
type Executor struct {
	store    *Store
	maxLimit int
}

// NewExecutor creates an Executor over the store
func NewExecutor(store *Store) *Executor {
	return &Executor{store: store, maxLimit: 10000}
}

// SetMaxLimit caps the row limit appended to queries. Values below 1
// are ignored.
func (e *Executor) SetMaxLimit(n int) {
	if n > 0 {
		e.maxLimit = n
	}
}

// Run executes the query and returns a lazy cursor over its rows.
// When the query carries a row limit and the text has no LIMIT clause
// of its own, a LIMIT is appended (textual check, same caveat as the
// validator). Errors from the store surface as ExecutionError.
func (e *Executor) Run(ctx context.Context, q Query) (*RowCursor, error) {
	text := q.Text
	if q.Limit > 0 {
		limit := q.Limit
		if limit > e.maxLimit {
			limit = e.maxLimit
		}
		if !strings.Contains(strings.ToUpper(text), "LIMIT") {
			text = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(strings.TrimSpace(text), ";"), limit)
		}
	}

	rows, err := e.store.db.QueryContext(ctx, text)
	if err != nil {
		return nil, &ExecutionError{Query: q.Text, Err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, &ExecutionError{Query: q.Text, Err: err}
	}
	return &RowCursor{
		rows:   rows,
		cols:   cols,
		schema: e.store.schema,
		query:  q.Text,
	}, nil
}

// RowCursor is the executor's RowSource over live store results. The
// store's own fetch batching is invisible here; rows come out one at a
// time regardless of how the driver buffers them.
type RowCursor struct {
	rows    *sql.Rows
	cols    []string
	schema  Schema
	query   string
	current Record
	err     error
}

// Columns returns the result column names in order
func (c *RowCursor) Columns() []string {
	return c.cols
}

// Next advances the cursor. It returns false at the end of the result
// set or on error; check Err after the loop.
func (c *RowCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.err = &ExecutionError{Query: c.query, Err: err}
		}
		return false
	}

	raw := make([]interface{}, len(c.cols))
	ptrs := make([]interface{}, len(c.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = &ExecutionError{Query: c.query, Err: err}
		return false
	}

	values := make([]Value, len(c.cols))
	for i, v := range raw {
		val, err := normalizeValue(v, c.schema.ColumnType(c.cols[i]))
		if err != nil {
			c.err = &ExecutionError{Query: c.query, Err: err}
			return false
		}
		values[i] = val
	}
	c.current = Record{columns: c.cols, values: values}
	return true
}

// Row returns the current record. Only valid after Next returned true.
func (c *RowCursor) Row() Record {
	return c.current
}

// Err returns the first error encountered while iterating
func (c *RowCursor) Err() error {
	return c.err
}

// Close releases the underlying store cursor
func (c *RowCursor) Close() error {
	return c.rows.Close()
}

// normalizeValue converts a driver value to a Record scalar. This is
// the single place store-specific representations are eliminated;
// everything downstream is store-agnostic.
func normalizeValue(v interface{}, declared ColumnType) (Value, error) {
	if v == nil {
		return NullValue(), nil
	}

	if declared == TypeDate {
		date, err := canonicalDateValue(v)
		if err != nil {
			return Value{}, err
		}
		return DateValue(date), nil
	}

	switch raw := v.(type) {
	case int64:
		if declared == TypeBoolean {
			return BoolValue(raw != 0), nil
		}
		return IntValue(raw), nil
	case bool:
		return BoolValue(raw), nil
	case float64:
		// Aggregate results (AVG etc.) fall outside the scalar set
		// and are carried as text
		return TextValue(strconv.FormatFloat(raw, 'g', -1, 64)), nil
	case []byte:
		return TextValue(string(raw)), nil
	case string:
		return TextValue(raw), nil
	case time.Time:
		return TextValue(raw.Format(time.RFC3339)), nil
	default:
		return TextValue(fmt.Sprintf("%v", raw)), nil
	}
}

// dateLayouts are the textual date encodings accepted from the store
// or the CSV source, most specific first
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// CanonicalDate normalizes a textual date to YYYY-MM-DD
func CanonicalDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// canonicalDateValue normalizes any store date encoding to YYYY-MM-DD.
// SQLite may hand back text, unix seconds, or a julian day number
// depending on how the value was written.
func canonicalDateValue(v interface{}) (string, error) {
	switch raw := v.(type) {
	case string:
		return CanonicalDate(raw)
	case []byte:
		return CanonicalDate(string(raw))
	case time.Time:
		return raw.Format("2006-01-02"), nil
	case int64:
		return time.Unix(raw, 0).UTC().Format("2006-01-02"), nil
	case float64:
		// Julian day number to unix seconds
		unix := (raw - 2440587.5) * 86400
		return time.Unix(int64(unix), 0).UTC().Format("2006-01-02"), nil
	default:
		return "", fmt.Errorf("unrecognized date value %T", v)
	}
}
