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
	"io"
	"net"
)

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush() error
}

// Writer writes a MJPEG AVI file to a blocking sink.
// It is not safe for concurrent use.
type Writer struct {
	m *muxer
	d syncDriver
}

// NewWriter validates the parameters and writes the header.
// The file must start at offset 0 of the sink. The sink
// is borrowed, the caller is responsible for closing it.
func NewWriter(ws io.WriteSeeker, p Params, opts ...Option) (*Writer, error) {
	m, ops, err := newMuxer(p, opts)
	if err != nil {
		return nil, err
	}

	w := &Writer{m: m, d: syncDriver{ws: ws}}
	if err := w.run(ops); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) run(ops []op) error {
	if err := execute(w.d, ops); err != nil {
		w.m.state = StateFailed
		return err
	}
	return nil
}

// AddFrame appends a JPEG frame.
func (w *Writer) AddFrame(frame []byte) error {
	return w.AddFrameVectored([][]byte{frame})
}

// AddFrameVectored appends one frame stored in several buffers.
// The result is identical to AddFrame with the buffers concatenated.
func (w *Writer) AddFrameVectored(parts [][]byte) error {
	rec, ops, err := w.m.frame(parts)
	if err != nil {
		return err
	}
	if err := w.run(ops); err != nil {
		return err
	}
	w.m.commit(rec)
	return nil
}

// Finish writes the index and patches the header.
// The file is only valid if Finish returns nil.
func (w *Writer) Finish() error {
	ops, size, err := w.m.finish()
	if err != nil {
		return err
	}
	if err := w.run(ops); err != nil {
		return err
	}
	w.m.finished(size)
	return nil
}

// State returns the writer state.
func (w *Writer) State() State {
	return w.m.state
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	return w.m.frames
}

// Size returns the number of bytes written so far, or
// the file size after a successful Finish.
func (w *Writer) Size() int64 {
	return w.m.offset
}

type syncDriver struct {
	ws io.WriteSeeker
}

func (d syncDriver) writeBuffers(bufs [][]byte) error {
	expected := payloadSize(bufs)
	nb := net.Buffers(bufs)
	n, err := nb.WriteTo(d.ws)
	if err != nil {
		return err
	}
	if n != expected {
		return io.ErrShortWrite
	}
	return nil
}

func (d syncDriver) seek(offset int64) error {
	_, err := d.ws.Seek(offset, io.SeekStart)
	return err
}

func (d syncDriver) flush() error {
	if f, ok := d.ws.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
