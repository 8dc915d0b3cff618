package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Done is the data of the terminating frame.
const Done = "[DONE]"

const maxLine = 1 << 20

// ErrBadFrame is returned when a data line does not hold a JSON payload.
var ErrBadFrame = errors.New("malformed stream frame")

// Writer writes SSE frames and flushes after each one.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
}

// NewWriter sets the SSE headers on w and wraps it.
func NewWriter(w http.ResponseWriter) *Writer {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

// NewStreamWriter wraps a plain writer, e.g. a buffer in tests.
func NewStreamWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes one `data: <json>` frame.
func (s *Writer) Send(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal stream payload: %w", err)
	}
	return s.write(body)
}

// Close writes the `data: [DONE]` terminator.
func (s *Writer) Close() error {
	return s.write([]byte(Done))
}

func (s *Writer) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// Reader parses SSE frames. Only `data:` lines are considered; comments,
// other fields and blank lines are skipped.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader creates a frame reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Next returns the next payload. It returns io.EOF at the [DONE] frame or at
// the end of the body, and ErrBadFrame (with the raw data) for undecodable
// frames, after which reading may continue.
func (r *Reader) Next() (Payload, error) {
	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		data, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		data = bytes.TrimSpace(data)
		if string(data) == Done {
			return Payload{}, io.EOF
		}

		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return Payload{}, fmt.Errorf("%w: %s", ErrBadFrame, data)
		}
		return p, nil
	}
	if err := r.sc.Err(); err != nil {
		return Payload{}, err
	}
	return Payload{}, io.EOF
}
