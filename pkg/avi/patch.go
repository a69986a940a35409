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
	"sort"

	"mjpegavi/pkg/avi/bitio"
)

// totals final values of the placeholders.
type totals struct {
	fileSize int64
	moviSize int64
	frames   uint32
	maxChunk uint32
}

func (t totals) value(kind PlaceholderKind) uint32 {
	switch kind {
	case KindRIFFSize:
		return uint32(t.fileSize - 8)
	case KindMoviSize:
		return uint32(t.moviSize)
	case KindTotalFrames:
		return t.frames
	case KindMaxChunkSize:
		return t.maxChunk
	}
	panic("unknown placeholder kind: " + kind.String())
}

// patchOps returns one patch per placeholder in file order.
func patchOps(placeholders []Placeholder, t totals) []op {
	sorted := make([]Placeholder, len(placeholders))
	copy(sorted, placeholders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	ops := make([]op, 0, len(sorted))
	for _, p := range sorted {
		ops = append(ops, op{
			kind:   opPatch,
			step:   p.Kind.String(),
			offset: p.Offset,
			bufs:   [][]byte{bitio.PutUint32(t.value(p.Kind))},
		})
	}
	return ops
}
