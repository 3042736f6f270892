package bind

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Stream copies Body to the client unbuffered. Status, when set, replaces
// the resolved status.
type Stream struct {
	ContentType string
	Status      int
	Body        io.Reader
}

// SSEStream sends server-sent events until Events is closed or the client
// disconnects. Each event is flushed as soon as it is written.
type SSEStream struct {
	Events <-chan SSEEvent
}

// SSEEvent is one server-sent event. Data is written as is when it is a
// string or []byte and JSON-encoded otherwise; line breaks split it over
// several data lines.
type SSEEvent struct {
	ID    string
	Event string
	Data  any
	// Retry asks the client to wait this many milliseconds before
	// reconnecting. Zero omits the field.
	Retry int
}

func writeStream(w http.ResponseWriter, s *Stream, status int) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	if s.Status != 0 {
		status = s.Status
	}
	w.WriteHeader(status)
	if s.Body == nil {
		return
	}
	//nolint:errcheck,gosec // the client may hang up mid-copy
	io.Copy(w, s.Body)
	if c, ok := s.Body.(io.Closer); ok {
		//nolint:errcheck,gosec // read side only
		c.Close()
	}
}

func writeSSEStream(ctx context.Context, w http.ResponseWriter, s *SSEStream) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if err := rc.Flush(); err != nil {
		w.Header().Del("Connection")
		w.Header().Del("Cache-Control")
		writeErrorResponse(w, Error(http.StatusInternalServerError, "streaming not supported"))
		return
	}

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.Events:
			if !ok {
				return
			}
			buf.Reset()
			encodeSSEEvent(&buf, event)
			if _, err := buf.WriteTo(w); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func encodeSSEEvent(buf *bytes.Buffer, event SSEEvent) {
	if event.ID != "" {
		writeSSEField(buf, "id", event.ID)
	}
	if event.Event != "" {
		writeSSEField(buf, "event", event.Event)
	}
	if event.Retry > 0 {
		writeSSEField(buf, "retry", strconv.Itoa(event.Retry))
	}

	var data string
	switch v := event.Data.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			data = err.Error()
		} else {
			data = string(b)
		}
	}
	for line := range strings.SplitSeq(data, "\n") {
		writeSSEField(buf, "data", strings.TrimSuffix(line, "\r"))
	}
	buf.WriteByte('\n')
}

func writeSSEField(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteByte('\n')
}
