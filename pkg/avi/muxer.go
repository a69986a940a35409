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
	"fmt"
	"io"
	"math"
)

// State writer state.
type State uint8

// States.
const (
	StateOpen State = iota
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Default limits.
const (
	// DefaultMaxFileSize AVI 1.0 RIFF limit.
	DefaultMaxFileSize = math.MaxInt32

	// DefaultMaxFrames .
	DefaultMaxFrames = 1000000

	// The RIFF size field is 32 bits and excludes the first 8 bytes.
	maxRIFFFileSize = math.MaxUint32 + 8
)

// Limits frames that would break a limit are rejected before any I/O.
// Zero values use the defaults.
type Limits struct {
	MaxFileSize int64
	MaxFrames   int
}

// Option writer option.
type Option func(*muxer)

// WithLimits sets the writer limits.
func WithLimits(l Limits) Option {
	return func(m *muxer) {
		if l.MaxFileSize > 0 {
			m.limits.MaxFileSize = l.MaxFileSize
		}
		if m.limits.MaxFileSize > maxRIFFFileSize {
			m.limits.MaxFileSize = maxRIFFFileSize
		}
		if l.MaxFrames > 0 {
			m.limits.MaxFrames = l.MaxFrames
		}
	}
}

type opKind uint8

const (
	opWrite opKind = iota
	opPatch
	opSeek
	opFlush
)

// op is a single sink operation. Everything else the muxer
// does is computed before the ops are handed to a driver.
type op struct {
	kind   opKind
	step   string
	offset int64 // Patch or seek target.
	bufs   [][]byte
}

// muxer is the state machine shared by Writer and AsyncWriter.
type muxer struct {
	params       Params
	limits       Limits
	placeholders []Placeholder
	records      []FrameRecord

	offset   int64 // Next write position.
	frames   int
	maxChunk uint32
	state    State
}

func newMuxer(p Params, opts []Option) (*muxer, []op, error) {
	header, placeholders, err := Layout(p)
	if err != nil {
		return nil, nil, err
	}

	m := &muxer{
		params: p,
		limits: Limits{
			MaxFileSize: DefaultMaxFileSize,
			MaxFrames:   DefaultMaxFrames,
		},
		placeholders: placeholders,
		offset:       int64(len(header)),
	}
	for _, opt := range opts {
		opt(m)
	}

	ops := []op{{kind: opWrite, step: "write header", bufs: [][]byte{header}}}
	return m, ops, nil
}

func (m *muxer) checkOpen() error {
	switch m.state {
	case StateFinished:
		return ErrAlreadyFinished
	case StateFailed:
		return ErrAlreadyFailed
	}
	return nil
}

// frame validates a frame and returns its record and ops.
// The record is committed once the ops have succeeded.
func (m *muxer) frame(parts [][]byte) (FrameRecord, []op, error) {
	if err := m.checkOpen(); err != nil {
		return FrameRecord{}, nil, err
	}

	size := payloadSize(parts)
	if size == 0 {
		return FrameRecord{}, nil, ErrEmptyFrame
	}
	if size > maxFrameSize {
		return FrameRecord{}, nil, fmt.Errorf("%w: %d", ErrFrameSizeExceeded, size)
	}
	if m.frames >= m.limits.MaxFrames {
		return FrameRecord{}, nil, fmt.Errorf("%w: %d", ErrFrameCountExceeded, m.limits.MaxFrames)
	}

	rec := FrameRecord{Offset: m.offset, Size: uint32(size)}
	projected := rec.End() + indexSize(m.frames+1)
	if projected > m.limits.MaxFileSize {
		return FrameRecord{}, nil, fmt.Errorf(
			"%w: %d > %d", ErrFileSizeExceeded, projected, m.limits.MaxFileSize)
	}

	ops := []op{{
		kind: opWrite,
		step: fmt.Sprintf("write frame %d", m.frames),
		bufs: encodeChunk(parts, rec.Size),
	}}
	return rec, ops, nil
}

func (m *muxer) commit(rec FrameRecord) {
	m.records = append(m.records, rec)
	m.offset = rec.End()
	m.frames++
	if p := rec.Padded(); p > m.maxChunk {
		m.maxChunk = p
	}
}

// finish returns the index, patch, seek back and flush ops
// and the size of the finished file.
func (m *muxer) finish() ([]op, int64, error) {
	if err := m.checkOpen(); err != nil {
		return nil, 0, err
	}

	index, err := encodeIndex(m.records)
	if err != nil {
		return nil, 0, err
	}

	t := totals{
		fileSize: m.offset + int64(len(index)),
		moviSize: m.offset - MoviOffset,
		frames:   uint32(m.frames),
		maxChunk: m.maxChunk,
	}

	ops := []op{{kind: opWrite, step: "write index", bufs: [][]byte{index}}}
	ops = append(ops, patchOps(m.placeholders, t)...)
	ops = append(ops,
		op{kind: opSeek, step: "seek to end", offset: t.fileSize},
		op{kind: opFlush, step: "flush"},
	)
	return ops, t.fileSize, nil
}

// finished the records and placeholders are consumed.
func (m *muxer) finished(size int64) {
	m.offset = size
	m.records = nil
	m.placeholders = nil
	m.state = StateFinished
}

// driver executes sink operations. Implementations
// block or suspend, the ops are the same.
type driver interface {
	writeBuffers(bufs [][]byte) error
	seek(offset int64) error
	flush() error
}

func execute(d driver, ops []op) error {
	for _, o := range ops {
		switch o.kind {
		case opWrite:
			if err := d.writeBuffers(o.bufs); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrIO, o.step, err)
			}
		case opPatch:
			if err := d.seek(o.offset); err != nil {
				return fmt.Errorf("%w: %s: seek %d: %w", ErrPatchFailed, o.step, o.offset, err)
			}
			if err := d.writeBuffers(o.bufs); err != nil {
				return fmt.Errorf("%w: %s: write at %d: %w", ErrPatchFailed, o.step, o.offset, err)
			}
		case opSeek:
			if err := d.seek(o.offset); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrIO, o.step, err)
			}
		case opFlush:
			if err := d.flush(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrIO, o.step, err)
			}
		}
	}
	return nil
}

func checkWrite(n, expected int, err error) error {
	if err != nil {
		return err
	}
	if n != expected {
		return io.ErrShortWrite
	}
	return nil
}
