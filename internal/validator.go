package internal

import "strings"

// deniedKeywords blocks statements that mutate data or schema. Matched
// as substrings, so a denied keyword inside a quoted string literal
// also rejects the query; that false positive errs in the safe
// direction and is accepted.
var deniedKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"CREATE",
	"ALTER",
	"TRUNCATE",
	"ATTACH",
	"DETACH",
	"PRAGMA",
	"REPLACE",
	"VACUUM",
	"REINDEX",
	"GRANT",
	"REVOKE",
}

// ValidateQuery applies the read-only allow-list check to a query text.
// It is a textual heuristic, not a SQL parser: defense in depth in
// front of the store, never a security boundary. Returns nil when the
// query passes, or a ValidationError describing the rejection.
func ValidateQuery(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ValidationError{Query: text, Reason: "query is empty"}
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return &ValidationError{Query: text, Reason: "only SELECT statements are allowed"}
	}
	for _, kw := range deniedKeywords {
		if strings.Contains(upper, kw) {
			return &ValidationError{Query: text, Reason: "statement contains disallowed keyword " + kw}
		}
	}
	return nil
}
