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
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed operation on a closed Async.
var ErrClosed = errors.New("sink closed")

type request struct {
	fn   func()
	done chan struct{}
}

// Async turns a blocking io.WriteSeeker into a context aware sink.
// Operations are executed in order by a single goroutine. A caller
// whose context is canceled returns early, the operation still runs
// to completion before the next one starts, so buffers passed to
// Write must not be reused until Close returns.
type Async struct {
	ws io.WriteSeeker

	requests chan request
	quit     chan struct{}
	exited   chan struct{}
	o        sync.Once
}

// NewAsync starts the worker. The WriteSeeker is not closed by Close.
func NewAsync(ws io.WriteSeeker) *Async {
	a := &Async{
		ws:       ws,
		requests: make(chan request),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.exited)
	for {
		select {
		case req := <-a.requests:
			req.fn()
			close(req.done)
		case <-a.quit:
			return
		}
	}
}

func (a *Async) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := request{fn: fn, done: make(chan struct{})}
	select {
	case a.requests <- req:
	case <-a.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write writes p.
func (a *Async) Write(ctx context.Context, p []byte) (int, error) {
	var n int
	var err error
	if doErr := a.do(ctx, func() { n, err = a.ws.Write(p) }); doErr != nil {
		return 0, doErr
	}
	return n, err
}

// Seek sets the offset for the next Write.
func (a *Async) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	var pos int64
	var err error
	if doErr := a.do(ctx, func() { pos, err = a.ws.Seek(offset, whence) }); doErr != nil {
		return 0, doErr
	}
	return pos, err
}

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

// Flush flushes or syncs the WriteSeeker if it supports it.
func (a *Async) Flush(ctx context.Context) error {
	var err error
	doErr := a.do(ctx, func() {
		switch v := a.ws.(type) {
		case flusher:
			err = v.Flush()
		case syncer:
			err = v.Sync()
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Close stops the worker after the current operation.
func (a *Async) Close() error {
	a.o.Do(func() { close(a.quit) })
	<-a.exited
	return nil
}
