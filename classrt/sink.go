package classrt

import (
	"fmt"
	"io"
	"sync"
)

// Sink receives values emitted by constructor and method bodies.
type Sink interface {
	Emit(Value)
}

type SinkFunc func(Value)

func (f SinkFunc) Emit(v Value) { f(v) }

// DiscardSink drops every value.
var DiscardSink Sink = SinkFunc(func(Value) {})

// WriterSink writes one line per emitted value.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Emit(v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintln(s.w, v.String())
}

// Err returns the first write error, if any. Emits after a failed write are
// dropped.
func (s *WriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// RecordingSink keeps every emitted value in order.
type RecordingSink struct {
	mu     sync.Mutex
	values []Value
}

func (s *RecordingSink) Emit(v Value) {
	s.mu.Lock()
	s.values = append(s.values, v)
	s.mu.Unlock()
}

func (s *RecordingSink) Values() []Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Value, len(s.values))
	copy(out, s.values)
	return out
}

// Strings renders the recorded values with Value.String.
func (s *RecordingSink) Strings() []string {
	values := s.Values()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.values = nil
	s.mu.Unlock()
}
