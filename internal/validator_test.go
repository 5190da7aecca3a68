package internal

import (
	"errors"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{
			name:    "simple select",
			query:   "SELECT * FROM employees",
			wantErr: false,
		},
		{
			name:    "lowercase select",
			query:   "select name, salary from employees",
			wantErr: false,
		},
		{
			name:    "leading whitespace",
			query:   "   \n\tSELECT id FROM employees",
			wantErr: false,
		},
		{
			name:    "aggregate with group by",
			query:   "SELECT department, COUNT(*) FROM employees GROUP BY department",
			wantErr: false,
		},
		{
			name:    "empty query",
			query:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			query:   "   ",
			wantErr: true,
		},
		{
			name:    "insert rejected",
			query:   "INSERT INTO employees VALUES (1)",
			wantErr: true,
		},
		{
			name:    "update rejected",
			query:   "UPDATE employees SET salary = 0",
			wantErr: true,
		},
		{
			name:    "drop rejected",
			query:   "DROP TABLE employees",
			wantErr: true,
		},
		{
			name:    "select hiding a delete",
			query:   "SELECT * FROM employees; DELETE FROM employees",
			wantErr: true,
		},
		{
			name:    "pragma rejected",
			query:   "PRAGMA table_info(employees)",
			wantErr: true,
		},
		{
			name:    "denied keyword in string literal still rejected",
			query:   "SELECT * FROM employees WHERE name = 'DROP'",
			wantErr: true,
		},
		{
			name:    "not a statement",
			query:   "EXPLAIN SELECT * FROM employees",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuery(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuery_ErrorType(t *testing.T) {
	err := ValidateQuery("DROP TABLE employees")
	if err == nil {
		t.Fatal("ValidateQuery() returned nil for rejected query")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("ValidateQuery() error type = %T, want *ValidationError", err)
	}
	if verr.Reason == "" {
		t.Error("ValidationError has empty reason")
	}
}
