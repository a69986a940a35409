// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package avi

import (
	"context"
	"io"
)

// AsyncSink is a sink whose operations may suspend the caller.
// Each call either completes the whole operation or fails.
type AsyncSink interface {
	Write(ctx context.Context, p []byte) (int, error)
	Seek(ctx context.Context, offset int64, whence int) (int64, error)
}

// AsyncFlusher is implemented by async sinks that buffer writes.
type AsyncFlusher interface {
	Flush(ctx context.Context) error
}

// AsyncWriter writes a MJPEG AVI file to an AsyncSink. The output is
// byte for byte the same as Writer. It is not safe for concurrent use.
//
// A canceled context fails the operation in progress and the writer.
type AsyncWriter struct {
	m    *muxer
	sink AsyncSink
}

// NewAsyncWriter validates the parameters and writes the header.
func NewAsyncWriter(
	ctx context.Context,
	sink AsyncSink,
	p Params,
	opts ...Option,
) (*AsyncWriter, error) {
	m, ops, err := newMuxer(p, opts)
	if err != nil {
		return nil, err
	}

	w := &AsyncWriter{m: m, sink: sink}
	if err := w.run(ctx, ops); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *AsyncWriter) run(ctx context.Context, ops []op) error {
	if err := execute(asyncDriver{ctx: ctx, sink: w.sink}, ops); err != nil {
		w.m.state = StateFailed
		return err
	}
	return nil
}

// AddFrame appends a JPEG frame.
func (w *AsyncWriter) AddFrame(ctx context.Context, frame []byte) error {
	return w.AddFrameVectored(ctx, [][]byte{frame})
}

// AddFrameVectored appends one frame stored in several buffers.
func (w *AsyncWriter) AddFrameVectored(ctx context.Context, parts [][]byte) error {
	rec, ops, err := w.m.frame(parts)
	if err != nil {
		return err
	}
	if err := w.run(ctx, ops); err != nil {
		return err
	}
	w.m.commit(rec)
	return nil
}

// Finish writes the index and patches the header.
func (w *AsyncWriter) Finish(ctx context.Context) error {
	ops, size, err := w.m.finish()
	if err != nil {
		return err
	}
	if err := w.run(ctx, ops); err != nil {
		return err
	}
	w.m.finished(size)
	return nil
}

// State returns the writer state.
func (w *AsyncWriter) State() State {
	return w.m.state
}

// Frames returns the number of frames written.
func (w *AsyncWriter) Frames() int {
	return w.m.frames
}

// Size returns the number of bytes written so far, or
// the file size after a successful Finish.
func (w *AsyncWriter) Size() int64 {
	return w.m.offset
}

type asyncDriver struct {
	ctx  context.Context
	sink AsyncSink
}

func (d asyncDriver) writeBuffers(bufs [][]byte) error {
	for _, b := range bufs {
		n, err := d.sink.Write(d.ctx, b)
		if err := checkWrite(n, len(b), err); err != nil {
			return err
		}
	}
	return nil
}

func (d asyncDriver) seek(offset int64) error {
	_, err := d.sink.Seek(d.ctx, offset, io.SeekStart)
	return err
}

func (d asyncDriver) flush() error {
	if f, ok := d.sink.(AsyncFlusher); ok {
		return f.Flush(d.ctx)
	}
	return nil
}
