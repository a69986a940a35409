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

	"mjpegavi/pkg/avi/bitio"
)

const (
	indexEntrySize = 16

	// Every MJPEG frame is a keyframe.
	aviifKeyframe = 0x10
)

// encodeIndex returns the idx1 chunk for the records.
func encodeIndex(records []FrameRecord) ([]byte, error) {
	size := indexEntrySize * len(records)
	buf := bytes.NewBuffer(make([]byte, 0, chunkHeaderSize+size))
	w := bitio.NewWriter(buf)

	w.TryWriteString(tagIdx1)
	w.TryWriteUint32(uint32(size))
	for _, r := range records {
		w.TryWriteString(tagFrame)
		w.TryWriteUint32(aviifKeyframe)
		w.TryWriteUint32(uint32(r.Offset - MoviOffset))
		w.TryWriteUint32(r.Size)
	}
	if w.TryError != nil {
		return nil, w.TryError
	}
	return buf.Bytes(), nil
}

// indexSize size of an index chunk with n entries.
func indexSize(n int) int64 {
	return chunkHeaderSize + int64(indexEntrySize)*int64(n)
}
