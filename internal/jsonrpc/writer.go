package jsonrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Writer serializes responses as one JSON object per line and flushes after
// every response so the client sees it before the next request is read.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes resp followed by a newline and flushes. If the result cannot
// be encoded, an internal error carrying the same id is written instead.
func (w *Writer) Write(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		data, err = json.Marshal(NewErrorResponse(resp.ID, ErrInternal()))
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
	}

	data = append(data, '\n')
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}
	return nil
}
