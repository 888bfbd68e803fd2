package events

import (
	"net/http"
	"sync"

	"github.com/gin-contrib/sse"
)

// SSESink writes events as server-sent-event frames:
//
//	event: <type>
//	data:{"type":"<type>",...}
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	opened  bool
	closed  bool
}

func NewSSESink(w http.ResponseWriter) *SSESink {
	f, _ := w.(http.Flusher)
	return &SSESink{w: w, flusher: f}
}

// Open writes the stream headers. It is called implicitly by the first Send.
func (s *SSESink) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open()
}

func (s *SSESink) open() {
	if s.opened {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.opened = true
	s.flush()
}

func (s *SSESink) Send(e Event) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	s.open()
	if err := sse.Encode(s.w, sse.Event{Event: string(e.Type()), Data: string(payload)}); err != nil {
		s.closed = true
		return err
	}
	s.flush()
	return nil
}

// Close marks the sink finished; later sends fail.
func (s *SSESink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *SSESink) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
