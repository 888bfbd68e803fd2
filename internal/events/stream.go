package events

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// ReadStream decodes SSE frames from r as they arrive and forwards each event
// to sink. It returns after a terminal event or at EOF.
func ReadStream(r io.Reader, sink Sink) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var data bytes.Buffer
	dispatch := func() (bool, error) {
		if data.Len() == 0 {
			return false, nil
		}
		ev, err := Decode(data.Bytes())
		data.Reset()
		if err != nil {
			return false, err
		}
		if err := sink.Send(ev); err != nil {
			return false, err
		}
		return IsTerminal(ev), nil
	}
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			done, err := dispatch()
			if err != nil || done {
				return err
			}
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	_, err := dispatch()
	return err
}
