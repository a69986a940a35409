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

// Mjpegavi muxes JPEG frames into MJPEG AVI files.
//
// Usage:
//
//	mjpegavi mux -o <file|dir> -width <w> -height <h> -fps <n> [-jobs <n>] <inputs...>
//	mjpegavi inspect [-v] [-extract <dir>] <file.avi>
//	mjpegavi serve -env <env.yaml>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mjpegavi"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

const usage = `Usage:
  mjpegavi mux -o <file|dir> -width <w> -height <h> -fps <n> [-jobs <n>] <inputs...>
  mjpegavi inspect [-v] [-extract <dir>] <file.avi>
  mjpegavi serve -env <env.yaml>
`

// Errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("invalid usage")
)

type cli struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	c := &cli{stdout: os.Stdout, stderr: os.Stderr}
	err := c.run(ctx, os.Args[1:])
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case errors.Is(err, ErrUsage), errors.Is(err, ErrUnknownCommand):
		fmt.Fprintf(os.Stderr, "%v\n\n%v", err, usage)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	switch args[0] {
	case "mux":
		return c.mux(ctx, args[1:])
	case "inspect":
		return c.inspect(args[1:])
	case "serve":
		return c.serve(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCommand, args[0])
	}
}

func (c *cli) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	envFlag := fs.String("env", "", "path to env.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *envFlag == "" {
		return fmt.Errorf("%w: -env is required", ErrUsage)
	}

	envPath, err := filepath.Abs(*envFlag)
	if err != nil {
		return fmt.Errorf("could not get absolute path of env.yaml: %w", err)
	}
	return mjpegavi.Run(ctx, envPath)
}
