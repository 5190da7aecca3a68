package internal

import "fmt"

// Chunker regroups a row sequence into fixed-size batches. The source's
// own batch granularity tunes store I/O; the chunk size here is the
// externally promised event granularity. Keeping them separate means a
// store change can never alter the wire contract.
//
// Every record lands in exactly one chunk, in source order. All chunks
// carry exactly size rows except possibly the last, which carries
// between 1 and size. An empty source yields zero chunks.
type Chunker struct {
	source  RowSource
	size    int
	current Chunk
	index   int
	total   int
	done    bool
}

// NewChunker creates a Chunker over a row source. A non-positive chunk
// size is a configuration error and fails before any row is pulled.
func NewChunker(source RowSource, size int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	return &Chunker{source: source, size: size}, nil
}

// Next pulls rows from the source until a full chunk accumulates or
// the source is exhausted. Returns false when no more chunks are
// available; check Err afterwards.
func (c *Chunker) Next() bool {
	if c.done {
		return false
	}

	buf := make([]Record, 0, c.size)
	for len(buf) < c.size && c.source.Next() {
		buf = append(buf, c.source.Row())
	}

	if err := c.source.Err(); err != nil {
		// The error terminates the stream; rows buffered for the
		// unfinished chunk are not emitted
		c.done = true
		return false
	}

	if len(buf) < c.size {
		c.done = true
		if len(buf) == 0 {
			return false
		}
	}

	c.index++
	c.total += len(buf)
	c.current = Chunk{
		Rows:        buf,
		Index:       c.index,
		RowsInChunk: len(buf),
		RowsSoFar:   c.total,
	}
	return true
}

// Chunk returns the current chunk. Only valid after Next returned true.
func (c *Chunker) Chunk() Chunk {
	return c.current
}

// Err returns the error that terminated the stream, if any
func (c *Chunker) Err() error {
	return c.source.Err()
}
