package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/iksnae/tablestream/internal"
)

// State is the encoder's lifecycle state
type State int

const (
	StateIdle State = iota
	StateStarted
	StateStreaming
	StateCompleted
	StateFailed
)

// Encoder maps query lifecycle moments to protocol events and enforces
// the sequence invariant: exactly one query_start first, then zero or
// more data_chunk events, then exactly one terminal event. Once a
// terminal event is emitted the encoder refuses further use.
//
// Emission is synchronous: each event reaches the sink before the
// encoder accepts the next lifecycle call, so event order always
// matches production order even when producing the next batch is slow.
type Encoder struct {
	sink    Sink
	delay   time.Duration
	clock   func() time.Time
	state   State
	started time.Time
	chunks  int
	rows    int
}

// NewEncoder creates an Encoder writing to the sink. delay is the
// optional pause between successive chunk events; zero disables
// pacing. A nil clock defaults to time.Now.
func NewEncoder(sink Sink, delay time.Duration, clock func() time.Time) *Encoder {
	if clock == nil {
		clock = time.Now
	}
	return &Encoder{sink: sink, delay: delay, clock: clock}
}

// State returns the encoder's current lifecycle state
func (e *Encoder) State() State {
	return e.state
}

// Start emits the query_start event. columns is the store's column
// list from the zero-row schema probe.
func (e *Encoder) Start(query string, columns []string) error {
	if e.state != StateIdle {
		return fmt.Errorf("encoder: start called in state %d", e.state)
	}
	e.started = e.clock()
	if err := e.sink.Send(&Event{
		Type: EventQueryStart,
		Data: StartData{
			Query:     query,
			Columns:   columns,
			Timestamp: timestamp(e.started),
		},
	}); err != nil {
		e.state = StateFailed
		return err
	}
	e.state = StateStreaming
	return nil
}

// WriteChunk emits one data_chunk event. The context bounds the pacing
// delay so a disconnect interrupts the pause.
func (e *Encoder) WriteChunk(ctx context.Context, chunk internal.Chunk) error {
	if e.state != StateStreaming {
		return fmt.Errorf("encoder: chunk emitted in state %d", e.state)
	}

	if e.delay > 0 && e.chunks > 0 {
		timer := time.NewTimer(e.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.state = StateFailed
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := e.sink.Send(&Event{
		Type: EventDataChunk,
		Data: ChunkData{
			Chunk:          chunk.Rows,
			ChunkNumber:    chunk.Index,
			RowsInChunk:    chunk.RowsInChunk,
			TotalRowsSoFar: chunk.RowsSoFar,
		},
	}); err != nil {
		e.state = StateFailed
		return err
	}
	e.chunks++
	e.rows = chunk.RowsSoFar
	return nil
}

// Complete emits the terminal query_complete event with totals
// reconciled against every chunk already emitted
func (e *Encoder) Complete() error {
	if e.state != StateStreaming {
		return fmt.Errorf("encoder: complete called in state %d", e.state)
	}
	e.state = StateCompleted
	return e.sink.Send(&Event{
		Type: EventQueryComplete,
		Data: CompleteData{
			TotalRows:     e.rows,
			TotalChunks:   e.chunks,
			ExecutionTime: e.clock().Sub(e.started).Milliseconds(),
			Completed:     true,
		},
	})
}

// Fail emits the terminal query_error event. It is valid from any
// non-terminal state: validation failures arrive before Start, store
// failures mid-stream.
func (e *Encoder) Fail(err error) error {
	if e.state == StateCompleted || e.state == StateFailed {
		return fmt.Errorf("encoder: fail called in terminal state")
	}
	e.state = StateFailed
	return e.sink.Send(&Event{
		Type: EventQueryError,
		Data: ErrorData{
			Error:     true,
			Message:   err.Error(),
			Timestamp: timestamp(e.clock()),
		},
	})
}
