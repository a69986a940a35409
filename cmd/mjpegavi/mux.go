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
	"context"
	"errors"
	"flag"
	"fmt"
	"mjpegavi/pkg/avi"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrNotDir input is not a directory.
var ErrNotDir = errors.New("not a directory")

var frameExts = map[string]bool{".jpg": true, ".jpeg": true}

type muxConfig struct {
	params avi.Params
	limits avi.Limits
}

func (c *cli) mux(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mux", flag.ContinueOnError)
	fs.SetOutput(c.stderr)

	var cfg muxConfig
	output := fs.String("o", "", "output file, or directory when muxing directories")
	fs.IntVar(&cfg.params.Width, "width", 0, "frame width")
	fs.IntVar(&cfg.params.Height, "height", 0, "frame height")
	fs.IntVar(&cfg.params.FrameRate, "fps", 0, "frame rate")
	fs.Int64Var(&cfg.limits.MaxFileSize, "max-size", 0, "file size limit in bytes")
	fs.IntVar(&cfg.limits.MaxFrames, "max-frames", 0, "frame count limit")
	jobs := fs.Int("jobs", runtime.NumCPU(), "directories muxed concurrently")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("%w: -o is required", ErrUsage)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: no inputs", ErrUsage)
	}
	if err := cfg.params.Validate(); err != nil {
		return err
	}

	if info, err := os.Stat(*output); err == nil && info.IsDir() {
		return c.muxDirs(ctx, *output, fs.Args(), cfg, *jobs)
	}

	files, err := collectFrames(fs.Args())
	if err != nil {
		return err
	}
	frames, err := c.muxFile(ctx, *output, files, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%v: %d frames\n", *output, frames)
	return nil
}

// muxDirs muxes each input directory into its own file in outDir.
func (c *cli) muxDirs(
	ctx context.Context,
	outDir string,
	dirs []string,
	cfg muxConfig,
	jobs int,
) error {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%v: %w", dir, ErrNotDir)
		}
	}

	if jobs < 1 {
		jobs = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	var mu sync.Mutex
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			files, err := collectFrames([]string{dir})
			if err != nil {
				return err
			}

			out := filepath.Join(outDir, filepath.Base(filepath.Clean(dir))+".avi")
			frames, err := c.muxFile(ctx, out, files, cfg)
			if err != nil {
				return fmt.Errorf("%v: %w", dir, err)
			}

			mu.Lock()
			fmt.Fprintf(c.stdout, "%v: %d frames\n", out, frames)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// collectFrames returns the input files and the JPEG
// files of the input directories, sorted by name.
func collectFrames(inputs []string) ([]string, error) {
	var files []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, input)
			continue
		}

		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if entry.IsDir() || !frameExts[ext] {
				continue
			}
			files = append(files, filepath.Join(input, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// muxFile writes files as frames to path. Empty files are skipped.
// The output is removed on error.
func (c *cli) muxFile(
	ctx context.Context,
	path string,
	files []string,
	cfg muxConfig,
) (frames int, err error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(path)
		}
	}()

	w, err := avi.NewWriter(file, cfg.params, avi.WithLimits(cfg.limits))
	if err != nil {
		return 0, err
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		frame, err := os.ReadFile(name)
		if err != nil {
			return 0, err
		}
		err = w.AddFrame(frame)
		if errors.Is(err, avi.ErrEmptyFrame) {
			fmt.Fprintf(c.stderr, "skipping empty frame: %v\n", name)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%v: %w", name, err)
		}
	}

	if err := w.Finish(); err != nil {
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	return w.Frames(), nil
}
