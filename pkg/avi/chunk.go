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
	"math"

	"mjpegavi/pkg/avi/bitio"
)

const (
	chunkHeaderSize = 8

	// maxFrameSize largest payload whose padded size still fits in 32 bits.
	maxFrameSize = math.MaxUint32 - 1
)

var padByte = []byte{0}

// FrameRecord location of a frame chunk.
type FrameRecord struct {
	Offset int64  // Absolute offset of the chunk tag.
	Size   uint32 // Payload size without padding.
}

// Padded returns the payload size on disk.
func (r FrameRecord) Padded() uint32 {
	return r.Size + r.Size&1
}

// End returns the offset of the byte following the chunk.
func (r FrameRecord) End() int64 {
	return r.Offset + chunkHeaderSize + int64(r.Padded())
}

func payloadSize(parts [][]byte) int64 {
	var n int64
	for _, p := range parts {
		n += int64(len(p))
	}
	return n
}

// encodeChunk returns the buffers of a frame chunk in write order.
// The length field holds the unpadded size, odd payloads get one
// trailing zero byte.
func encodeChunk(parts [][]byte, size uint32) [][]byte {
	header := make([]byte, 0, chunkHeaderSize)
	header = append(header, tagFrame...)
	header = append(header, bitio.PutUint32(size)...)

	bufs := make([][]byte, 0, len(parts)+2)
	bufs = append(bufs, header)
	for _, p := range parts {
		if len(p) != 0 {
			bufs = append(bufs, p)
		}
	}
	if size&1 == 1 {
		bufs = append(bufs, padByte)
	}
	return bufs
}
