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

package mjpegavi

import (
	"context"
	"mjpegavi/pkg/config"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	envPath := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))
	return envPath
}

func TestRun(t *testing.T) {
	t.Run("canceled", func(t *testing.T) {
		envPath := writeEnv(t, "addr: 127.0.0.1:0\n")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- Run(ctx, envPath) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(30 * time.Second):
			t.Fatal("timeout")
		}

		storageDir := filepath.Join(filepath.Dir(envPath), "storage")
		_, err := os.Stat(filepath.Join(storageDir, "recordings"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(storageDir, "recordings.db"))
		require.NoError(t, err)
	})
	t.Run("missingEnv", func(t *testing.T) {
		err := Run(context.Background(), filepath.Join(t.TempDir(), "env.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("addrInUse", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		envPath := writeEnv(t, "addr: "+ln.Addr().String()+"\n")
		err = Run(context.Background(), envPath)
		require.Error(t, err)
	})
}

func TestNewAppCatalogLocked(t *testing.T) {
	envPath := writeEnv(t, "")
	env, err := config.ReadConfigEnv(envPath)
	require.NoError(t, err)

	app, err := newApp(env, &sync.WaitGroup{})
	require.NoError(t, err)
	defer app.catalog.Close()

	// bbolt holds an exclusive lock, a second app times out.
	_, err = newApp(env, &sync.WaitGroup{})
	require.Error(t, err)
}
