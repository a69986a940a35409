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

import "errors"

// Errors.
var (
	// ErrInvalidParameters width, height or frame rate out of range.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrEmptyFrame frame without payload.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrIO the sink failed to write, seek or flush.
	ErrIO = errors.New("io")

	// ErrPatchFailed a placeholder could not be overwritten.
	// The file is left partially patched and must be treated as corrupt.
	ErrPatchFailed = errors.New("patch failed")

	// ErrAlreadyFinished operation on a finished writer.
	ErrAlreadyFinished = errors.New("writer already finished")

	// ErrAlreadyFailed operation on a writer after an I/O failure.
	ErrAlreadyFailed = errors.New("writer already failed")

	// ErrFrameSizeExceeded frame does not fit in a chunk.
	ErrFrameSizeExceeded = errors.New("frame size exceeds chunk limit")

	// ErrFrameCountExceeded too many frames.
	ErrFrameCountExceeded = errors.New("frame count limit exceeded")

	// ErrFileSizeExceeded the finalized file would exceed the size limit.
	ErrFileSizeExceeded = errors.New("file size limit exceeded")
)
