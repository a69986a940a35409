package sink

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsync(t *testing.T) {
	ws := &WriterSeeker{}
	a := NewAsync(ws)
	defer a.Close()

	ctx := context.Background()

	n, err := a.Write(ctx, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	pos, err := a.Seek(ctx, 6, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(6), pos)

	_, err = a.Write(ctx, []byte("gopher"))
	require.NoError(t, err)
	require.NoError(t, a.Flush(ctx))

	require.Equal(t, "hello gopher", string(ws.Bytes()))
}

type blockingWriteSeeker struct {
	WriterSeeker
	started chan struct{}
	release chan struct{}
}

func (b *blockingWriteSeeker) Write(p []byte) (int, error) {
	close(b.started)
	<-b.release
	return b.WriterSeeker.Write(p)
}

func TestAsyncCanceled(t *testing.T) {
	ws := &blockingWriteSeeker{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	a := NewAsync(ws)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ws.started
		cancel()
	}()

	_, err := a.Write(ctx, []byte("abc"))
	require.ErrorIs(t, err, context.Canceled)

	// The write still completes before Close returns.
	close(ws.release)
	require.NoError(t, a.Close())
	require.Equal(t, "abc", string(ws.Bytes()))
}

func TestAsyncClosed(t *testing.T) {
	a := NewAsync(&WriterSeeker{})
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.Write(context.Background(), []byte("abc"))
	require.ErrorIs(t, err, ErrClosed)

	_, err = a.Seek(context.Background(), 0, io.SeekStart)
	require.ErrorIs(t, err, ErrClosed)
}

type syncWriteSeeker struct {
	WriterSeeker
	syncs int
}

func (s *syncWriteSeeker) Sync() error {
	s.syncs++
	return nil
}

func TestAsyncFlushSyncs(t *testing.T) {
	ws := &syncWriteSeeker{}
	a := NewAsync(ws)
	defer a.Close()

	require.NoError(t, a.Flush(context.Background()))
	require.Equal(t, 1, ws.syncs)
}

func TestCounting(t *testing.T) {
	ws := &WriterSeeker{}
	c := NewCounting(ws)

	_, err := c.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = c.Seek(1, io.SeekStart)
	require.NoError(t, err)
	_, err = c.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	require.Equal(t, Counts{Writes: 2, Seeks: 1, Flushes: 1, Bytes: 5}, c.Counts())
	require.Equal(t, 4, c.Counts().Calls())
	require.Equal(t, "axcd", string(ws.Bytes()))
}
