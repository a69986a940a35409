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
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// ConfigEnv stores system configuration.
type ConfigEnv struct {
	Addr       string `yaml:"addr"`
	StorageDir string `yaml:"storageDir"`

	// Per recording limits, zero selects the default.
	MaxFileSize int64 `yaml:"maxFileSize"`
	MaxFrames   int   `yaml:"maxFrames"`

	Users []User `yaml:"users"`

	ConfigDir string `yaml:"-"`
}

// User basic auth credentials. Password is a bcrypt hash.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Defaults.
const (
	DefaultAddr        = ":2020"
	DefaultMaxFileSize = math.MaxInt32
	DefaultMaxFrames   = 1000000
	maxFileSizeCeiling = math.MaxUint32 + 8
)

// Errors.
var (
	ErrPathNotAbsolute = errors.New("path is not absolute")
	ErrInvalidValue    = errors.New("invalid value")
	ErrInvalidUser     = errors.New("invalid user")
)

// NewConfigEnv return new environment configuration.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	var env ConfigEnv

	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("unmarshal env.yaml: %w", err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if env.Addr == "" {
		env.Addr = DefaultAddr
	}
	if env.StorageDir == "" {
		env.StorageDir = filepath.Join(env.ConfigDir, "storage")
	}
	if env.MaxFileSize == 0 {
		env.MaxFileSize = DefaultMaxFileSize
	}
	if env.MaxFrames == 0 {
		env.MaxFrames = DefaultMaxFrames
	}

	if !filepath.IsAbs(env.StorageDir) {
		return nil, fmt.Errorf("storageDir '%v': %w", env.StorageDir, ErrPathNotAbsolute)
	}
	if env.MaxFileSize < 0 || env.MaxFileSize > maxFileSizeCeiling {
		return nil, fmt.Errorf("maxFileSize %v: %w", env.MaxFileSize, ErrInvalidValue)
	}
	if env.MaxFrames < 0 {
		return nil, fmt.Errorf("maxFrames %v: %w", env.MaxFrames, ErrInvalidValue)
	}

	seen := make(map[string]struct{}, len(env.Users))
	for i, u := range env.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("user %v: empty username: %w", i, ErrInvalidUser)
		}
		if _, exists := seen[u.Username]; exists {
			return nil, fmt.Errorf("user %v: duplicate: %w", u.Username, ErrInvalidUser)
		}
		seen[u.Username] = struct{}{}

		if _, err := bcrypt.Cost([]byte(u.Password)); err != nil {
			return nil, fmt.Errorf("user %v: password is not a bcrypt hash: %w", u.Username, err)
		}
	}

	return &env, nil
}

// ReadConfigEnv reads and parses the file at envPath.
func ReadConfigEnv(envPath string) (*ConfigEnv, error) {
	envYAML, err := os.ReadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("read env.yaml: %w", err)
	}
	return NewConfigEnv(envPath, envYAML)
}

// RecordingsDir return recordings directory.
func (env ConfigEnv) RecordingsDir() string {
	return filepath.Join(env.StorageDir, "recordings")
}

// DBPath return path to the recordings catalog.
func (env ConfigEnv) DBPath() string {
	return filepath.Join(env.StorageDir, "recordings.db")
}

// PrepareEnvironment prepares directories.
func (env ConfigEnv) PrepareEnvironment() error {
	err := os.MkdirAll(env.RecordingsDir(), 0o700)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create recordings directory: %v: %w", env.StorageDir, err)
	}
	return nil
}

// Accounts returns username to password hash.
func (env ConfigEnv) Accounts() map[string][]byte {
	accounts := make(map[string][]byte, len(env.Users))
	for _, u := range env.Users {
		accounts[u.Username] = []byte(u.Password)
	}
	return accounts
}
