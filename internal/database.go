package internal

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps the in-memory SQLite database holding the dataset.
// All store-specific value encodings stay behind this boundary; rows
// leave it only as Records with normalized scalar values.
type Store struct {
	db     *sql.DB
	schema Schema
}

// OpenMemoryStore opens a fresh in-memory SQLite database and creates
// the dataset table from the schema.
//
// The connection pool is pinned to a single connection: a modernc
// in-memory database is private to its connection, so a second
// connection would see an empty database. Concurrent readers serialize
// on this connection; the server bounds concurrency above it.
func OpenMemoryStore(schema Schema) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store ping failed: %w", err)
	}

	if _, err := db.Exec(createTableSQL(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", schema.Table, err)
	}

	return &Store{db: db, schema: schema}, nil
}

// createTableSQL builds the CREATE TABLE statement for the schema
func createTableSQL(schema Schema) string {
	defs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		var sqlType string
		switch col.Type {
		case TypeInteger, TypeBoolean:
			sqlType = "INTEGER"
		default:
			// Dates are stored as canonical YYYY-MM-DD text
			sqlType = "TEXT"
		}
		defs[i] = fmt.Sprintf("%s %s", col.Name, sqlType)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", schema.Table, strings.Join(defs, ", "))
}

// DB exposes the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Schema returns the dataset schema
func (s *Store) Schema() Schema {
	return s.schema
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadCSV loads the dataset file into the table inside one transaction.
// The CSV header must match the schema column names exactly. Returns
// the number of rows loaded. Any failure here is fatal to startup.
func (s *Store) LoadCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, &LoadError{Path: path, Err: fmt.Errorf("failed to read header: %w", err)}
	}
	if err := s.checkHeader(header); err != nil {
		return 0, &LoadError{Path: path, Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, &LoadError{Path: path, Err: err}
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.schema.Columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.schema.Table, strings.Join(s.schema.ColumnNames(), ", "), placeholders)
	stmt, err := tx.Prepare(insert)
	if err != nil {
		return 0, &LoadError{Path: path, Err: err}
	}
	defer stmt.Close()

	count := 0
	line := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, &LoadError{Path: path, Line: line, Err: err}
		}
		args, err := s.coerceRow(fields)
		if err != nil {
			return 0, &LoadError{Path: path, Line: line, Err: err}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return 0, &LoadError{Path: path, Line: line, Err: err}
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, &LoadError{Path: path, Err: err}
	}
	return count, nil
}

// checkHeader verifies the CSV header matches the schema columns
func (s *Store) checkHeader(header []string) error {
	names := s.schema.ColumnNames()
	if len(header) != len(names) {
		return fmt.Errorf("header has %d columns, schema expects %d", len(header), len(names))
	}
	for i, name := range names {
		if strings.TrimSpace(header[i]) != name {
			return fmt.Errorf("header column %d is %q, schema expects %q", i+1, header[i], name)
		}
	}
	return nil
}

// coerceRow converts CSV text fields to typed insert arguments
func (s *Store) coerceRow(fields []string) ([]interface{}, error) {
	if len(fields) != len(s.schema.Columns) {
		return nil, fmt.Errorf("row has %d fields, schema expects %d", len(fields), len(s.schema.Columns))
	}
	args := make([]interface{}, len(fields))
	for i, field := range fields {
		col := s.schema.Columns[i]
		field = strings.TrimSpace(field)
		if field == "" {
			args[i] = nil
			continue
		}
		switch col.Type {
		case TypeInteger:
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %q is not an integer", col.Name, field)
			}
			args[i] = n
		case TypeBoolean:
			b, err := parseBool(field)
			if err != nil {
				return nil, fmt.Errorf("column %s: %q is not a boolean", col.Name, field)
			}
			if b {
				args[i] = 1
			} else {
				args[i] = 0
			}
		case TypeDate:
			date, err := CanonicalDate(field)
			if err != nil {
				return nil, fmt.Errorf("column %s: %v", col.Name, err)
			}
			args[i] = date
		default:
			args[i] = field
		}
	}
	return args, nil
}

// parseBool accepts the boolean spellings commonly found in CSV exports
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized boolean %q", s)
}

// Columns performs a zero-row probe and returns the table's column
// names in order. This is the cheap schema call used for query_start
// events and the schema endpoint.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", s.schema.Table))
	if err != nil {
		return nil, fmt.Errorf("schema probe failed: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("schema probe failed: %w", err)
	}
	return cols, nil
}

// RowCount returns the number of rows in the dataset table
func (s *Store) RowCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.schema.Table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("row count failed: %w", err)
	}
	return n, nil
}

// SampleRows returns up to n rows for schema introspection
func (s *Store) SampleRows(ctx context.Context, n int) ([]Record, error) {
	exec := NewExecutor(s)
	cur, err := exec.Run(ctx, Query{
		Text:  fmt.Sprintf("SELECT * FROM %s", s.schema.Table),
		Limit: n,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var records []Record
	for cur.Next() {
		records = append(records, cur.Row())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
