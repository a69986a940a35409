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
	"bytes"
	"fmt"
	"math"

	"mjpegavi/pkg/avi/bitio"
)

// Four character codes.
const (
	tagRIFF = "RIFF"
	tagAVI  = "AVI "
	tagLIST = "LIST"
	tagHdrl = "hdrl"
	tagAvih = "avih"
	tagStrl = "strl"
	tagStrh = "strh"
	tagStrf = "strf"
	tagOdml = "odml"
	tagDmlh = "dmlh"
	tagMovi = "movi"
	tagIdx1 = "idx1"
	tagVids = "vids"
	tagMJPG = "MJPG"

	// Stream 0, compressed video.
	tagFrame = "00dc"
)

// Chunk body sizes.
const (
	avihSize = 56
	strhSize = 56
	strfSize = 40
	dmlhSize = 4

	strlSize = 4 + (8 + strhSize) + (8 + strfSize)
	odmlSize = 4 + (8 + dmlhSize)
	hdrlSize = 4 + (8 + avihSize) + (8 + strlSize) + (8 + odmlSize)
)

const (
	// HeaderSize size of the metadata written before the first frame.
	HeaderSize = 12 + (8 + hdrlSize) + 12

	// MoviOffset position of the "movi" list type.
	// Index offsets are relative to it.
	MoviOffset = HeaderSize - 4

	// MaxDimension the stream header stores the frame rectangle in 16 bits.
	MaxDimension = math.MaxUint16

	// MaxFrameRate the stream rate field is 32 bits.
	MaxFrameRate = math.MaxUint32

	// rcFrame is a RECT of signed shorts.
	maxRectCoord = math.MaxInt16
)

// Main header flags.
const avifHasIndex = 0x10

// Params immutable stream parameters.
type Params struct {
	Width     int // Pixels.
	Height    int // Pixels.
	FrameRate int // Frames per second.
}

// Validate returns ErrInvalidParameters if any field is out of range.
func (p Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Width > MaxDimension:
		return fmt.Errorf("%w: width: %d", ErrInvalidParameters, p.Width)
	case p.Height <= 0 || p.Height > MaxDimension:
		return fmt.Errorf("%w: height: %d", ErrInvalidParameters, p.Height)
	case p.FrameRate <= 0 || int64(p.FrameRate) > MaxFrameRate:
		return fmt.Errorf("%w: frame rate: %d", ErrInvalidParameters, p.FrameRate)
	}
	return nil
}

// PlaceholderKind what a placeholder will hold once the file is finished.
type PlaceholderKind uint8

// Placeholder kinds.
const (
	KindRIFFSize PlaceholderKind = iota
	KindMoviSize
	KindTotalFrames
	KindMaxChunkSize
)

func (k PlaceholderKind) String() string {
	switch k {
	case KindRIFFSize:
		return "riff size"
	case KindMoviSize:
		return "movi size"
	case KindTotalFrames:
		return "total frames"
	case KindMaxChunkSize:
		return "max chunk size"
	}
	return fmt.Sprintf("PlaceholderKind(%d)", uint8(k))
}

// Placeholder a zeroed 32 bit field that is patched on finish.
type Placeholder struct {
	Offset int64
	Kind   PlaceholderKind
}

// Layout returns the header bytes and the placeholders within them.
// The header is the first thing in the file.
func Layout(p Params) ([]byte, []Placeholder, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	w := bitio.NewWriter(buf)

	var placeholders []Placeholder
	placeholder := func(kind PlaceholderKind) {
		placeholders = append(placeholders, Placeholder{
			Offset: int64(buf.Len()),
			Kind:   kind,
		})
		w.TryWriteUint32(0)
	}

	width, height, rate := uint32(p.Width), uint32(p.Height), uint32(p.FrameRate)

	w.TryWriteString(tagRIFF)
	placeholder(KindRIFFSize)
	w.TryWriteString(tagAVI)

	w.TryWriteString(tagLIST)
	w.TryWriteUint32(hdrlSize)
	w.TryWriteString(tagHdrl)

	// Main header.
	w.TryWriteString(tagAvih)
	w.TryWriteUint32(avihSize)
	w.TryWriteUint32(1000000 / rate) // Microseconds per frame.
	w.TryWriteUint32(0)              // Max bytes per second.
	w.TryWriteUint32(0)              // Padding granularity.
	w.TryWriteUint32(avifHasIndex)
	placeholder(KindTotalFrames)
	w.TryWriteUint32(0) // Initial frames.
	w.TryWriteUint32(1) // Streams.
	placeholder(KindMaxChunkSize)
	w.TryWriteUint32(width)
	w.TryWriteUint32(height)
	w.TryWriteZeros(16) // Reserved.

	w.TryWriteString(tagLIST)
	w.TryWriteUint32(strlSize)
	w.TryWriteString(tagStrl)

	// Stream header.
	w.TryWriteString(tagStrh)
	w.TryWriteUint32(strhSize)
	w.TryWriteString(tagVids)
	w.TryWriteString(tagMJPG)
	w.TryWriteUint32(0) // Flags.
	w.TryWriteUint16(0) // Priority.
	w.TryWriteUint16(0) // Language.
	w.TryWriteUint32(0) // Initial frames.
	w.TryWriteUint32(1) // Scale.
	w.TryWriteUint32(rate)
	w.TryWriteUint32(0) // Start.
	placeholder(KindTotalFrames)
	placeholder(KindMaxChunkSize)
	w.TryWriteUint32(0) // Quality.
	w.TryWriteUint32(0) // Sample size.
	w.TryWriteUint16(0) // Frame left.
	w.TryWriteUint16(0) // Frame top.
	w.TryWriteUint16(rectCoord(width))
	w.TryWriteUint16(rectCoord(height))

	// Stream format, BITMAPINFOHEADER.
	w.TryWriteString(tagStrf)
	w.TryWriteUint32(strfSize)
	w.TryWriteUint32(strfSize)
	w.TryWriteUint32(width)
	w.TryWriteUint32(height)
	w.TryWriteUint16(1)  // Planes.
	w.TryWriteUint16(24) // Bit count.
	w.TryWriteString(tagMJPG)
	w.TryWriteUint32(sizeImage(width, height))
	w.TryWriteZeros(16) // Pels per meter, colors used, colors important.

	// OpenDML extended header.
	w.TryWriteString(tagLIST)
	w.TryWriteUint32(odmlSize)
	w.TryWriteString(tagOdml)
	w.TryWriteString(tagDmlh)
	w.TryWriteUint32(dmlhSize)
	placeholder(KindTotalFrames)

	w.TryWriteString(tagLIST)
	placeholder(KindMoviSize)
	w.TryWriteString(tagMovi)

	if w.TryError != nil {
		return nil, nil, w.TryError
	}
	return buf.Bytes(), placeholders, nil
}

// sizeImage size of a 24 bit DIB with rows padded to 4 bytes.
// Zero is allowed for compressed formats and is used on overflow.
// rectCoord returns 0 for values that do not fit a signed short.
func rectCoord(v uint32) uint16 {
	if v > maxRectCoord {
		return 0
	}
	return uint16(v)
}

func sizeImage(width, height uint32) uint32 {
	size := ((uint64(width)*3 + 3) &^ 3) * uint64(height)
	if size > math.MaxUint32 {
		return 0
	}
	return uint32(size)
}
