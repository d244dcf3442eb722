package server

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yates-Labs/ragify/internal/narrative"
)

// framePrefix keeps the space before the colon that existing clients parse.
const framePrefix = "data : "

type contentFrame struct {
	Content string `json:"content"`
}

// encodeFrame renders one fragment as `data : {"content":"..."}\n\n`.
func encodeFrame(content string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(framePrefix)

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(contentFrame{Content: content}); err != nil {
		return nil, err
	}
	out := unescapeLineSeparators(buf.Bytes())
	// Encode already wrote one newline
	return append(out, '\n'), nil
}

// unescapeLineSeparators undoes encoding/json's \u2028 and \u2029 escapes so
// frames match JSON.stringify byte for byte. Both characters are legal
// inside a JSON string.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+6 <= len(b) {
			switch string(b[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		// any other escape is copied whole so an escaped backslash is never
		// read as the start of a new one
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

func setStreamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// streamFragments writes each non-empty fragment as one flushed frame.
// Headers are committed on the first non-empty fragment, so a failure before
// that is returned to the caller with nothing written. A failure after it
// ends the response without an error frame. The returned count is the
// number of frames written.
func streamFragments(c *gin.Context, fragments <-chan narrative.Fragment) (int, error) {
	written := 0
	for f := range fragments {
		if f.Err != nil {
			if written == 0 {
				return 0, f.Err
			}
			log.Printf("[RAG Pipeline] stream aborted after %d frames: %v", written, f.Err)
			return written, nil
		}
		if f.Content == "" {
			continue
		}

		frame, err := encodeFrame(f.Content)
		if err != nil {
			if written == 0 {
				return 0, err
			}
			log.Printf("[RAG Pipeline] failed to encode frame: %v", err)
			return written, nil
		}

		if written == 0 {
			setStreamHeaders(c.Writer)
			c.Status(http.StatusOK)
		}
		if _, err := c.Writer.Write(frame); err != nil {
			// client went away; the request context stops the producer
			return written, nil
		}
		c.Writer.Flush()
		written++
	}

	if written == 0 {
		setStreamHeaders(c.Writer)
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}
	return written, nil
}
