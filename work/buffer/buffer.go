package buffer

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// BufferPool is a thread-safe pool of byte buffers used to read upstream
// bodies. valyala/bytebufferpool calibrates the buffer size to what it sees,
// so playlists and media segments each end up reusing suitably sized buffers.
type BufferPool struct {
	pool bytebufferpool.Pool
}

// NewBufferPool creates an empty BufferPool ready for use.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get retrieves an empty buffer from the pool.
func (bp *BufferPool) Get() *bytebufferpool.ByteBuffer {
	return bp.pool.Get()
}

// Put returns a buffer to the pool. The buffer must not be used afterwards.
func (bp *BufferPool) Put(buf *bytebufferpool.ByteBuffer) {
	if buf != nil {
		bp.pool.Put(buf)
	}
}

// ReadString reads r to EOF through a pooled buffer and returns the content.
// The returned string does not alias the pooled buffer.
func (bp *BufferPool) ReadString(r io.Reader) (string, error) {
	buf := bp.Get()
	defer bp.Put(buf)

	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
