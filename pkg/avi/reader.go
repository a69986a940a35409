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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader errors.
var (
	ErrInvalidFile     = errors.New("invalid avi file")
	ErrFrameOutOfRange = errors.New("frame index out of range")
	ErrIndexMismatch   = errors.New("index does not match chunk")
)

type mainHeader struct {
	MicroSecPerFrame    uint32
	MaxBytesPerSec      uint32
	PaddingGranularity  uint32
	Flags               uint32
	TotalFrames         uint32
	InitialFrames       uint32
	Streams             uint32
	SuggestedBufferSize uint32
	Width               uint32
	Height              uint32
	_                   [16]byte
}

type streamHeader struct {
	Type                [4]byte
	Handler             [4]byte
	Flags               uint32
	Priority            uint16
	Language            uint16
	InitialFrames       uint32
	Scale               uint32
	Rate                uint32
	Start               uint32
	Length              uint32
	SuggestedBufferSize uint32
	Quality             uint32
	SampleSize          uint32
	Frame               [4]uint16
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   [4]byte
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// IndexEntry idx1 record.
type IndexEntry struct {
	ChunkID [4]byte
	Flags   uint32
	Offset  uint32 // Relative to the "movi" list type.
	Size    uint32 // Without padding.
}

// IsKeyframe reports if the keyframe flag is set.
func (e IndexEntry) IsKeyframe() bool {
	return e.Flags&aviifKeyframe != 0
}

// File parsed AVI file.
type File struct {
	Params      Params
	Handler     string
	Compression string

	RIFFSize            uint32
	MicroSecPerFrame    uint32
	TotalFrames         uint32 // Main header.
	StreamLength        uint32 // Stream header.
	ExtendedFrames      uint32 // OpenDML header.
	SuggestedBufferSize uint32

	MoviOffset int64 // Absolute offset of the "movi" list type.
	MoviSize   uint32
	Index      []IndexEntry
}

// Parse reads the headers and the index of a finished file.
func Parse(r io.ReaderAt, size int64) (*File, error) {
	var riff [12]byte
	if size < int64(len(riff)) {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFile, size)
	}
	if _, err := r.ReadAt(riff[:], 0); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != tagRIFF || string(riff[8:12]) != tagAVI {
		return nil, fmt.Errorf("%w: missing RIFF AVI signature", ErrInvalidFile)
	}

	f := &File{RIFFSize: binary.LittleEndian.Uint32(riff[4:8])}

	end := 8 + int64(f.RIFFSize)
	if end > size {
		return nil, fmt.Errorf("%w: riff size %d exceeds file size %d",
			ErrInvalidFile, f.RIFFSize, size)
	}

	var foundHdrl, foundMovi, foundIdx1 bool
	err := walk(r, 12, end, func(c chunk) error {
		switch {
		case c.tag == tagLIST && c.listType == tagHdrl:
			foundHdrl = true
			return f.parseHdrl(r, c)
		case c.tag == tagLIST && c.listType == tagMovi:
			foundMovi = true
			f.MoviOffset = c.body
			f.MoviSize = c.size
		case c.tag == tagIdx1:
			foundIdx1 = true
			f.Index = make([]IndexEntry, c.size/indexEntrySize)
			return readStruct(r, c.body, int64(c.size), &f.Index)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case !foundHdrl:
		return nil, fmt.Errorf("%w: missing hdrl", ErrInvalidFile)
	case !foundMovi:
		return nil, fmt.Errorf("%w: missing movi", ErrInvalidFile)
	case !foundIdx1:
		return nil, fmt.Errorf("%w: missing idx1", ErrInvalidFile)
	}
	return f, nil
}

func (f *File) parseHdrl(r io.ReaderAt, hdrl chunk) error {
	return walk(r, hdrl.body+4, hdrl.end(), func(c chunk) error {
		switch {
		case c.tag == tagAvih:
			var h mainHeader
			if err := readStruct(r, c.body, int64(c.size), &h); err != nil {
				return fmt.Errorf("avih: %w", err)
			}
			f.MicroSecPerFrame = h.MicroSecPerFrame
			f.TotalFrames = h.TotalFrames
			f.SuggestedBufferSize = h.SuggestedBufferSize
			f.Params.Width = int(h.Width)
			f.Params.Height = int(h.Height)
		case c.tag == tagLIST && c.listType == tagStrl:
			return f.parseStrl(r, c)
		case c.tag == tagLIST && c.listType == tagOdml:
			return walk(r, c.body+4, c.end(), func(c chunk) error {
				if c.tag != tagDmlh {
					return nil
				}
				var frames uint32
				if err := readStruct(r, c.body, int64(c.size), &frames); err != nil {
					return fmt.Errorf("dmlh: %w", err)
				}
				f.ExtendedFrames = frames
				return nil
			})
		}
		return nil
	})
}

func (f *File) parseStrl(r io.ReaderAt, strl chunk) error {
	return walk(r, strl.body+4, strl.end(), func(c chunk) error {
		switch c.tag {
		case tagStrh:
			var h streamHeader
			if err := readStruct(r, c.body, int64(c.size), &h); err != nil {
				return fmt.Errorf("strh: %w", err)
			}
			if h.Scale == 0 {
				return fmt.Errorf("%w: zero stream scale", ErrInvalidFile)
			}
			f.Handler = string(h.Handler[:])
			f.Params.FrameRate = int(h.Rate / h.Scale)
			f.StreamLength = h.Length
		case tagStrf:
			var h bitmapInfoHeader
			if err := readStruct(r, c.body, int64(c.size), &h); err != nil {
				return fmt.Errorf("strf: %w", err)
			}
			f.Compression = string(h.Compression[:])
		}
		return nil
	})
}

// Frame reads the payload of frame i.
func (f *File) Frame(r io.ReaderAt, i int) ([]byte, error) {
	if i < 0 || i >= len(f.Index) {
		return nil, fmt.Errorf("%w: %d", ErrFrameOutOfRange, i)
	}
	e := f.Index[i]

	pos := f.MoviOffset + int64(e.Offset)
	var header [chunkHeaderSize]byte
	if _, err := r.ReadAt(header[:], pos); err != nil {
		return nil, fmt.Errorf("read chunk header: %w", err)
	}
	if string(header[0:4]) != string(e.ChunkID[:]) ||
		binary.LittleEndian.Uint32(header[4:8]) != e.Size {
		return nil, fmt.Errorf("%w: frame %d at %d", ErrIndexMismatch, i, pos)
	}

	payload := make([]byte, e.Size)
	if _, err := r.ReadAt(payload, pos+chunkHeaderSize); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload, nil
}

type chunk struct {
	tag      string
	listType string // Only set for LIST chunks.
	body     int64  // Offset of the chunk body.
	size     uint32
}

func (c chunk) end() int64 {
	return c.body + int64(c.size)
}

// walk calls fn for every chunk in [start, end).
func walk(r io.ReaderAt, start, end int64, fn func(chunk) error) error {
	pos := start
	for pos+chunkHeaderSize <= end {
		var header [12]byte
		if _, err := r.ReadAt(header[:chunkHeaderSize], pos); err != nil {
			return fmt.Errorf("read chunk header at %d: %w", pos, err)
		}
		c := chunk{
			tag:  string(header[0:4]),
			body: pos + chunkHeaderSize,
			size: binary.LittleEndian.Uint32(header[4:8]),
		}
		if c.end() > end {
			return fmt.Errorf("%w: chunk %q at %d overflows parent", ErrInvalidFile, c.tag, pos)
		}
		if c.tag == tagLIST {
			if c.size < 4 {
				return fmt.Errorf("%w: short list at %d", ErrInvalidFile, pos)
			}
			if _, err := r.ReadAt(header[8:12], c.body); err != nil {
				return fmt.Errorf("read list type at %d: %w", pos, err)
			}
			c.listType = string(header[8:12])
		}
		if err := fn(c); err != nil {
			return err
		}
		pos = c.end() + int64(c.size&1)
	}
	return nil
}

// readStruct decodes a little-endian value from a chunk body.
// Bodies shorter than the value are an error.
func readStruct(r io.ReaderAt, off, size int64, v interface{}) error {
	n := int64(binary.Size(v))
	if n < 0 || n > size {
		return fmt.Errorf("%w: chunk body too small: %d < %d", ErrInvalidFile, size, n)
	}
	return binary.Read(io.NewSectionReader(r, off, n), binary.LittleEndian, v)
}
