package connector

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader yields its input in fixed-size chunks to exercise partial
// frame delivery across read calls
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

// TestFrameReader_SingleFrame tests reading one complete line
func TestFrameReader_SingleFrame(t *testing.T) {
	fr := newFrameReader(strings.NewReader("{\"id\":1}\n"))

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(frame))

	_, err = fr.Next()
	assert.Equal(t, io.EOF, err)
}

// TestFrameReader_MultipleFramesOneRead tests several frames arriving in
// a single read
func TestFrameReader_MultipleFramesOneRead(t *testing.T) {
	fr := newFrameReader(strings.NewReader("{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"))

	for i := 1; i <= 3; i++ {
		frame, err := fr.Next()
		require.NoError(t, err)
		assert.Contains(t, string(frame), "id")
	}

	_, err := fr.Next()
	assert.Equal(t, io.EOF, err)
}

// TestFrameReader_PartialFragments tests that a frame split across read
// calls is reassembled deterministically
func TestFrameReader_PartialFragments(t *testing.T) {
	payload := `{"jsonrpc":"2.0","id":42,"result":{"tools":[]}}` + "\n"
	fr := newFrameReader(&chunkedReader{data: []byte(payload), size: 5})

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(payload), string(frame))
}

// TestFrameReader_SkipsEmptyLines tests that blank lines between frames
// are ignored
func TestFrameReader_SkipsEmptyLines(t *testing.T) {
	fr := newFrameReader(strings.NewReader("\n\n{\"id\":1}\n\r\n{\"id\":2}\n"))

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(frame))

	frame, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"id":2}`, string(frame))
}

// TestFrameReader_UnterminatedTail tests that a trailing fragment without
// a newline is flushed as a final frame before EOF
func TestFrameReader_UnterminatedTail(t *testing.T) {
	fr := newFrameReader(strings.NewReader("{\"id\":1}\n{\"id\":2}"))

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(frame))

	frame, err = fr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"id":2}`, string(frame))

	_, err = fr.Next()
	assert.Equal(t, io.EOF, err)
}
