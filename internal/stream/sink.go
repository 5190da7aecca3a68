package stream

// Sink carries encoded events to a transport. Send must deliver the
// event before returning: the encoder will not produce the next event
// until the current one is handed off, which preserves strict ordering
// end to end. A Send error means the client is unreachable; the
// pipeline stops without emitting further events.
type Sink interface {
	Send(ev *Event) error
}

// BufferSink accumulates events in memory. It backs the legacy
// buffered tool mode, where the full event sequence is returned as one
// response, and doubles as the test sink. The events still come out of
// the same lazy pipeline; only delivery is deferred.
type BufferSink struct {
	Events []*Event
}

// Send appends the event to the buffer
func (b *BufferSink) Send(ev *Event) error {
	b.Events = append(b.Events, ev)
	return nil
}
