// Package sink provides destinations for the avi writers.
package sink

import (
	"bytes"
	"errors"
	"io"
)

// WriterSeeker is an in-memory io.WriteSeeker and io.ReaderAt.
type WriterSeeker struct {
	buf []byte
	pos int
}

// Write writes at the current position, overwriting existing
// bytes before growing the buffer.
func (ws *WriterSeeker) Write(p []byte) (n int, err error) {
	// If the position is past the end of the buffer, grow the buffer with null bytes.
	if extra := ws.pos - len(ws.buf); extra > 0 {
		ws.buf = append(ws.buf, make([]byte, extra)...)
	}

	n = copy(ws.buf[ws.pos:], p)
	ws.buf = append(ws.buf, p[n:]...)

	ws.pos += len(p)
	return len(p), nil
}

// ErrNegativeResultPos negative result pos.
var ErrNegativeResultPos = errors.New("negative result pos")

// Seek sets the position for the next Write.
func (ws *WriterSeeker) Seek(offset int64, whence int) (int64, error) {
	newPos, offs := 0, int(offset)
	switch whence {
	case io.SeekStart:
		newPos = offs
	case io.SeekCurrent:
		newPos = ws.pos + offs
	case io.SeekEnd:
		newPos = len(ws.buf) + offs
	}
	if newPos < 0 {
		return 0, ErrNegativeResultPos
	}
	ws.pos = newPos
	return int64(newPos), nil
}

// ReadAt implements io.ReaderAt.
func (ws *WriterSeeker) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(ws.buf).ReadAt(p, off)
}

// Len returns the size of the buffer.
func (ws *WriterSeeker) Len() int {
	return len(ws.buf)
}

// Bytes returns the underlying byte slice.
func (ws *WriterSeeker) Bytes() []byte {
	return ws.buf
}

// Reader returns an io.Reader. Use it, for example, with io.Copy,
// to copy the content of the WriterSeeker buffer to an io.Writer.
func (ws *WriterSeeker) Reader() io.Reader {
	return bytes.NewReader(ws.buf)
}
