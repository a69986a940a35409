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

package sink

import (
	"io"
)

// Counts sink calls.
type Counts struct {
	Writes  int
	Seeks   int
	Flushes int
	Bytes   int64 // Bytes written, including overwrites.
}

// Calls returns the total number of calls.
func (c Counts) Calls() int {
	return c.Writes + c.Seeks + c.Flushes
}

// Counting records the calls made to a WriteSeeker.
type Counting struct {
	ws     io.WriteSeeker
	counts Counts
}

// NewCounting wraps ws.
func NewCounting(ws io.WriteSeeker) *Counting {
	return &Counting{ws: ws}
}

// Write implements io.Writer.
func (c *Counting) Write(p []byte) (int, error) {
	c.counts.Writes++
	n, err := c.ws.Write(p)
	c.counts.Bytes += int64(n)
	return n, err
}

// Seek implements io.Seeker.
func (c *Counting) Seek(offset int64, whence int) (int64, error) {
	c.counts.Seeks++
	return c.ws.Seek(offset, whence)
}

// Flush flushes the underlying WriteSeeker if it is a flusher.
func (c *Counting) Flush() error {
	c.counts.Flushes++
	if f, ok := c.ws.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Counts returns the calls made so far.
func (c *Counting) Counts() Counts {
	return c.counts
}
