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

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const dbAPIversion = "1"

var (
	bucketMeta       = []byte("meta")
	bucketRecordings = []byte("recordings")
	keyVersion       = []byte("version")
)

// Errors.
var (
	ErrNotFound        = errors.New("recording not found")
	ErrVersionMismatch = errors.New("database version mismatch")
	ErrEmptyName       = errors.New("empty name")
)

// Recording is a finalized AVI file.
type Recording struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FrameRate int       `json:"frameRate"`
	Frames    int       `json:"frames"`
	Size      int64     `json:"size"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// DB recordings database.
type DB struct {
	db *bolt.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*DB, error) {
	dbOpts := &bolt.Options{
		Timeout: 1 * time.Second,
	}

	db, err := bolt.Open(dbPath, 0o600, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %v", err, dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		version := meta.Get(keyVersion)
		switch {
		case version == nil:
			if err := meta.Put(keyVersion, []byte(dbAPIversion)); err != nil {
				return err
			}
		case string(version) != dbAPIversion:
			return fmt.Errorf("%w: got %q, want %q",
				ErrVersionMismatch, version, dbAPIversion)
		}
		_, err = tx.CreateBucketIfNotExists(bucketRecordings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (c *DB) Close() error {
	return c.db.Close()
}

// Put inserts or replaces a recording.
func (c *DB) Put(rec Recording) error {
	if rec.Name == "" {
		return ErrEmptyName
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecordings).Put([]byte(rec.Name), value)
	})
}

// Get returns the recording with the given name.
func (c *DB) Get(name string) (*Recording, error) {
	var rec Recording
	err := c.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketRecordings).Get([]byte(name))
		if value == nil {
			return fmt.Errorf("%w: %v", ErrNotFound, name)
		}
		return json.Unmarshal(value, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all recordings, newest first.
func (c *DB) List() ([]Recording, error) {
	var recs []Recording
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecordings).ForEach(func(_, value []byte) error {
			var rec Recording
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("unmarshal recording: %w", err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Start.After(recs[j].Start)
	})
	return recs, nil
}

// Delete removes a recording entry. The file is left untouched.
func (c *DB) Delete(name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecordings)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %v", ErrNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}
