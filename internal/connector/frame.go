package connector

import (
	"bytes"
	"io"
)

const frameReadChunk = 4096

// frameReader splits a byte stream into newline-delimited frames. It
// accumulates reads into an internal buffer and yields one complete line
// at a time, so a partial trailing fragment is carried over to the next
// read rather than being lost or misparsed.
type frameReader struct {
	r   io.Reader
	buf bytes.Buffer
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r}
}

// Next returns the next complete frame without its trailing newline.
// Empty lines are skipped. Returns io.EOF once the stream is exhausted;
// a non-empty unterminated trailing fragment is returned as a final
// frame before EOF.
func (f *frameReader) Next() ([]byte, error) {
	for {
		if line, ok := f.takeLine(); ok {
			if len(line) == 0 {
				continue
			}
			return line, nil
		}

		chunk := make([]byte, frameReadChunk)
		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf.Write(chunk[:n])
		}
		if err != nil {
			if err == io.EOF && f.buf.Len() > 0 {
				// Flush the unterminated tail as a last frame.
				rest := make([]byte, f.buf.Len())
				copy(rest, f.buf.Bytes())
				f.buf.Reset()
				if tail := bytes.TrimSpace(rest); len(tail) > 0 {
					return tail, nil
				}
			}
			return nil, err
		}
	}
}

// takeLine removes and returns one complete line from the buffer.
func (f *frameReader) takeLine() ([]byte, bool) {
	data := f.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, false
	}
	line := make([]byte, idx)
	copy(line, data[:idx])
	f.buf.Next(idx + 1)
	return bytes.TrimSpace(line), true
}
