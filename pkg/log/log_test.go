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

package log

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	logger := NewLogger(wg)
	logger.Start(ctx)

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return logger
}

func TestLogger(t *testing.T) {
	t.Run("msg", func(t *testing.T) {
		logger := newTestLogger(t)
		feed, cancel := logger.Subscribe()
		defer cancel()

		go logger.Error().Src("ingest").Time(time.Unix(1, 0)).Msgf("%v frames", 3)

		expected := Entry{
			Level: LevelError,
			Time:  1000000,
			Src:   "ingest",
			Msg:   "3 frames",
		}
		require.Equal(t, expected, <-feed)
	})
	t.Run("levels", func(t *testing.T) {
		logger := newTestLogger(t)
		feed, cancel := logger.Subscribe()
		defer cancel()

		cases := []struct {
			event    func() *Event
			expected Level
		}{
			{logger.Error, LevelError},
			{logger.Warn, LevelWarning},
			{logger.Info, LevelInfo},
			{logger.Debug, LevelDebug},
		}
		for _, tc := range cases {
			go tc.event().Msg("test")
			require.Equal(t, tc.expected, (<-feed).Level)
		}
	})
	t.Run("unsubBeforeMsg", func(t *testing.T) {
		logger := newTestLogger(t)
		feed1, cancel1 := logger.Subscribe()
		feed2, cancel2 := logger.Subscribe()
		cancel2()

		go logger.Info().Msg("test")
		actual1 := <-feed1
		actual2 := <-feed2
		cancel1()

		require.Equal(t, "test", actual1.Msg)
		require.Equal(t, Entry{}, actual2)
	})
	t.Run("unsubAfterMsg", func(t *testing.T) {
		logger := newTestLogger(t)
		feed, cancel := logger.Subscribe()

		go logger.Info().Msg("test")
		go logger.Info().Msg("test")
		go logger.Info().Msg("test")
		time.Sleep(10 * time.Microsecond)
		cancel()

		_, ok := <-feed
		require.False(t, ok)
	})
	t.Run("stopped", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		logger := NewLogger(wg)
		logger.Start(ctx)
		cancel()
		wg.Wait()

		// Must not block.
		logger.Info().Msg("dropped")
		feed, cancel2 := logger.Subscribe()
		cancel2()
		_, ok := <-feed
		require.False(t, ok)
	})
}

type lineWriter chan string

func (w lineWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

func TestLogToWriter(t *testing.T) {
	logger := newTestLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := make(lineWriter, 64)
	go logger.LogToWriter(ctx, lines)

	// LogToWriter subscribes asynchronously, retry until it does.
	for {
		go logger.Warn().Src("mux").Msg("test")
		select {
		case line := <-lines:
			require.Equal(t, "[WARNING] Mux: test\n", line)
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFormatEntry(t *testing.T) {
	cases := []struct {
		entry    Entry
		expected string
	}{
		{Entry{Level: LevelError, Src: "app", Msg: "a"}, "[ERROR] App: a"},
		{Entry{Level: LevelInfo, Msg: "b"}, "[INFO] b"},
		{Entry{Level: LevelDebug, Src: "x", Msg: "c"}, "[DEBUG] X: c"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expected, formatEntry(tc.entry))
	}
}
