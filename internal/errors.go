package internal

import "fmt"

// ValidationError represents a query rejected by the allow-list check
// before any store execution
type ValidationError struct {
	Query  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query rejected: %s", e.Reason)
}

// ExecutionError represents the store rejecting or failing a query,
// possibly after some rows were already produced
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// SessionError represents a session operation that could not proceed
type SessionError struct {
	SessionID string
	Op        string // "resolve", "acquire", "terminate"
	Reason    string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error [%s] %s: %s", e.SessionID, e.Op, e.Reason)
}

// LoadError represents a failure loading the dataset at startup.
// Load failures are fatal to the process.
type LoadError struct {
	Path string
	Line int // 0 when not tied to a specific CSV line
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset load error: %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("dataset load error: %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
