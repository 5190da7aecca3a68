// Package stream implements the chunked event protocol: the tagged
// event types sent to clients, the sink abstraction that carries them
// to a transport, and the encoder state machine that guarantees their
// ordering.
package stream

import (
	"time"

	"github.com/iksnae/tablestream/internal"
)

// EventType enumerates the protocol's event kinds
type EventType string

const (
	// EventQueryStart opens every event sequence
	EventQueryStart EventType = "query_start"
	// EventDataChunk carries one batch of result rows
	EventDataChunk EventType = "data_chunk"
	// EventQueryComplete terminates a successful sequence
	EventQueryComplete EventType = "query_complete"
	// EventQueryError terminates a failed sequence
	EventQueryError EventType = "query_error"
)

// Event is one tagged protocol event. Data holds the payload struct
// matching Type.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// StartData is the payload of a query_start event
type StartData struct {
	Query     string   `json:"query"`
	Columns   []string `json:"columns"`
	Timestamp string   `json:"timestamp"`
}

// ChunkData is the payload of a data_chunk event
type ChunkData struct {
	Chunk          []internal.Record `json:"chunk"`
	ChunkNumber    int               `json:"chunkNumber"`
	RowsInChunk    int               `json:"rowsInChunk"`
	TotalRowsSoFar int               `json:"totalRowsSoFar"`
}

// CompleteData is the payload of a query_complete event
type CompleteData struct {
	TotalRows     int   `json:"totalRows"`
	TotalChunks   int   `json:"totalChunks"`
	ExecutionTime int64 `json:"executionTime"`
	Completed     bool  `json:"completed"`
}

// ErrorData is the payload of a query_error event
type ErrorData struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// timestamp formats an event timestamp as ISO 8601
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
