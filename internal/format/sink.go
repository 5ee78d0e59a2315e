// Package format renders heap objects and whole-heap dumps as text for
// debugging. Rendering goes into a fixed-capacity Sink; output that does
// not fit is dropped, and no heap contents can make the formatter fault.
package format

// DefaultCapacity is the line buffer size used by Dump.
const DefaultCapacity = 1000

// Sink is a bounded text buffer. Writes past its capacity are silently
// truncated; the sink never grows and never reports an error.
type Sink struct {
	buf      []byte
	overflow bool
}

// NewSink returns a sink holding at most capacity bytes.
func NewSink(capacity int) *Sink {
	if capacity < 0 {
		capacity = 0
	}
	return &Sink{buf: make([]byte, 0, capacity)}
}

// Write implements io.Writer. It always reports len(p) written.
func (s *Sink) Write(p []byte) (int, error) {
	room := cap(s.buf) - len(s.buf)
	if len(p) > room {
		s.buf = append(s.buf, p[:room]...)
		s.overflow = true
		return len(p), nil
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (s *Sink) WriteString(str string) (int, error) {
	room := cap(s.buf) - len(s.buf)
	if len(str) > room {
		s.buf = append(s.buf, str[:room]...)
		s.overflow = true
		return len(str), nil
	}
	s.buf = append(s.buf, str...)
	return len(str), nil
}

// Bytes returns the buffered text. The slice is reused after Reset.
func (s *Sink) Bytes() []byte { return s.buf }

// String returns the buffered text.
func (s *Sink) String() string { return string(s.buf) }

// Len returns the number of buffered bytes.
func (s *Sink) Len() int { return len(s.buf) }

// Cap returns the capacity.
func (s *Sink) Cap() int { return cap(s.buf) }

// Overflowed reports whether any write was truncated since the last Reset.
func (s *Sink) Overflowed() bool { return s.overflow }

// Reset empties the sink, keeping its storage.
func (s *Sink) Reset() {
	s.buf = s.buf[:0]
	s.overflow = false
}
