package sink

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	ws := &WriterSeeker{}
	checkWrite(t, ws, "hello", "hello")
	checkWrite(t, ws, " world", "hello world")
}

func TestSeek(t *testing.T) {
	ws := &WriterSeeker{}
	checkWrite(t, ws, "hello", "hello")
	checkWrite(t, ws, " world", "hello world")

	checkSeek(t, ws, -2, io.SeekEnd, len("hello world")-2)
	checkWrite(t, ws, "k!", "hello work!")

	checkSeek(t, ws, 6, io.SeekStart, 6)
	checkWrite(t, ws, "gopher", "hello gopher")

	// Overwrite the existing buffer before growing it.
	checkSeek(t, ws, -4, io.SeekCurrent, len("hello gopher")-4)
	checkWrite(t, ws, "lang fans", "hello golang fans")

	// Seeking past the end fills the gap with null bytes.
	checkSeek(t, ws, 4, io.SeekCurrent, len("hello golang fans")+4)
	checkWrite(t, ws, "!", "hello golang fans\x00\x00\x00\x00!")
}

func TestSeekLargeGap(t *testing.T) {
	ws := &WriterSeeker{}
	checkSeek(t, ws, 1024, io.SeekStart, 1024)
	checkWrite(t, ws, "hello", strings.Repeat("\x00", 1024)+"hello")
}

func TestSeekNegative(t *testing.T) {
	ws := &WriterSeeker{}
	_, err := ws.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrNegativeResultPos)
}

func TestOverwriteInPlace(t *testing.T) {
	ws := &WriterSeeker{}
	checkWrite(t, ws, "AAAABBBBCCCC", "AAAABBBBCCCC")
	checkSeek(t, ws, 4, io.SeekStart, 4)
	checkWrite(t, ws, "xxxx", "AAAAxxxxCCCC")
	require.Equal(t, 12, ws.Len())

	p := make([]byte, 4)
	n, err := ws.ReadAt(p, 8)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "CCCC", string(p))
}

func checkWrite(t *testing.T, ws *WriterSeeker, data, expected string) {
	t.Helper()
	n, err := ws.Write([]byte(data))
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, expected, string(ws.Bytes()))
}

func checkSeek(t *testing.T, ws *WriterSeeker, offset int64, whence, expected int) {
	t.Helper()
	newOffset, err := ws.Seek(offset, whence)
	require.NoError(t, err)
	require.Equal(t, int64(expected), newOffset)
}
