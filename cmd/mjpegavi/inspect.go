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

package main

import (
	"flag"
	"fmt"
	"mjpegavi/pkg/avi"
	"os"
	"path/filepath"
)

func (c *cli) inspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	verbose := fs.Bool("v", false, "print the index")
	extract := fs.String("extract", "", "write each frame to this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one file", ErrUsage)
	}

	file, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	f, err := avi.Parse(file, info.Size())
	if err != nil {
		return fmt.Errorf("%v: %w", fs.Arg(0), err)
	}

	w := c.stdout
	fmt.Fprintf(w, "size:        %d bytes\n", info.Size())
	fmt.Fprintf(w, "codec:       %v/%v\n", f.Handler, f.Compression)
	fmt.Fprintf(w, "resolution:  %dx%d\n", f.Params.Width, f.Params.Height)
	fmt.Fprintf(w, "frame rate:  %d fps (%d us/frame)\n", f.Params.FrameRate, f.MicroSecPerFrame)
	fmt.Fprintf(w, "frames:      %d\n", f.TotalFrames)
	fmt.Fprintf(w, "max chunk:   %d bytes\n", f.SuggestedBufferSize)
	fmt.Fprintf(w, "movi:        offset %d size %d\n", f.MoviOffset, f.MoviSize)

	if *verbose {
		for i, e := range f.Index {
			fmt.Fprintf(w, "%6d %s offset=%d size=%d keyframe=%v\n",
				i, e.ChunkID[:], e.Offset, e.Size, e.IsKeyframe())
		}
	}

	if *extract == "" {
		return nil
	}
	if err := os.MkdirAll(*extract, 0o755); err != nil {
		return err
	}
	for i := range f.Index {
		frame, err := f.Frame(file, i)
		if err != nil {
			return err
		}
		path := filepath.Join(*extract, fmt.Sprintf("%06d.jpg", i))
		if err := os.WriteFile(path, frame, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "extracted %d frames to %v\n", len(f.Index), *extract)
	return nil
}
