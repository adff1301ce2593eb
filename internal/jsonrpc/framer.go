package jsonrpc

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Framer splits an input stream into JSON-RPC messages, one per line.
// Lines of any length are supported. Blank and whitespace-only lines are
// skipped.
type Framer struct {
	r *bufio.Reader
}

// NewFramer returns a Framer reading from r.
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: bufio.NewReader(r)}
}

// Next returns the next non-blank line with its line terminator removed.
// It returns io.EOF once the stream is exhausted. A final line without a
// trailing newline is returned before io.EOF.
func (f *Framer) Next() ([]byte, error) {
	for {
		line, err := f.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}

		if err != nil {
			return nil, io.EOF
		}
	}
}
