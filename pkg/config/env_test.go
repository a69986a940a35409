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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

func TestNewConfigEnv(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), "configs", "env.yaml")

		env, err := NewConfigEnv(envPath, []byte{})
		require.NoError(t, err)

		configDir := filepath.Dir(envPath)
		expected := &ConfigEnv{
			Addr:        ":2020",
			StorageDir:  filepath.Join(configDir, "storage"),
			MaxFileSize: DefaultMaxFileSize,
			MaxFrames:   DefaultMaxFrames,
			ConfigDir:   configDir,
		}
		require.Equal(t, expected, env)
	})
	t.Run("maximal", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
		require.NoError(t, err)

		testEnv := ConfigEnv{
			Addr:        "127.0.0.1:8080",
			StorageDir:  "/srv/storage",
			MaxFileSize: 1 << 20,
			MaxFrames:   100,
			Users:       []User{{Username: "admin", Password: string(hash)}},
		}
		envYAML, err := yaml.Marshal(testEnv)
		require.NoError(t, err)

		env, err := NewConfigEnv("/etc/mjpegavi/env.yaml", envYAML)
		require.NoError(t, err)

		testEnv.ConfigDir = "/etc/mjpegavi"
		require.Equal(t, &testEnv, env)
		require.Equal(t, map[string][]byte{"admin": hash}, env.Accounts())
	})
	t.Run("unmarshalErr", func(t *testing.T) {
		_, err := NewConfigEnv("", []byte("&"))
		require.Error(t, err)
	})
	t.Run("relativeStorage", func(t *testing.T) {
		_, err := NewConfigEnv("/a/env.yaml", []byte("storageDir: storage"))
		require.ErrorIs(t, err, ErrPathNotAbsolute)
	})
	t.Run("invalidValues", func(t *testing.T) {
		cases := map[string]string{
			"negativeSize":   "maxFileSize: -1",
			"sizeTooLarge":   "maxFileSize: 4294967304",
			"negativeFrames": "maxFrames: -5",
		}
		for name, input := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := NewConfigEnv("/a/env.yaml", []byte(input))
				require.ErrorIs(t, err, ErrInvalidValue)
			})
		}
	})
	t.Run("maxSizeCeiling", func(t *testing.T) {
		env, err := NewConfigEnv("/a/env.yaml", []byte("maxFileSize: 4294967303"))
		require.NoError(t, err)
		require.Equal(t, int64(4294967303), env.MaxFileSize)
	})
	t.Run("users", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
		require.NoError(t, err)

		cases := map[string][]User{
			"emptyUsername": {{Username: "", Password: string(hash)}},
			"duplicate": {
				{Username: "a", Password: string(hash)},
				{Username: "a", Password: string(hash)},
			},
		}
		for name, users := range cases {
			t.Run(name, func(t *testing.T) {
				envYAML, err := yaml.Marshal(ConfigEnv{Users: users})
				require.NoError(t, err)
				_, err = NewConfigEnv("/a/env.yaml", envYAML)
				require.ErrorIs(t, err, ErrInvalidUser)
			})
		}
		t.Run("plaintext", func(t *testing.T) {
			envYAML, err := yaml.Marshal(ConfigEnv{
				Users: []User{{Username: "a", Password: "hunter2"}},
			})
			require.NoError(t, err)
			_, err = NewConfigEnv("/a/env.yaml", envYAML)
			require.Error(t, err)
		})
	})
}

func TestReadConfigEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte("addr: :9999\n"), 0o600))

	env, err := ReadConfigEnv(envPath)
	require.NoError(t, err)
	require.Equal(t, ":9999", env.Addr)
	require.Equal(t, filepath.Join(dir, "storage"), env.StorageDir)

	_, err = ReadConfigEnv(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrepareEnvironment(t *testing.T) {
	env := ConfigEnv{StorageDir: filepath.Join(t.TempDir(), "storage")}
	require.NoError(t, env.PrepareEnvironment())

	info, err := os.Stat(env.RecordingsDir())
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, filepath.Join(env.StorageDir, "recordings.db"), env.DBPath())
}
