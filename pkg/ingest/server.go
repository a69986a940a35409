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

package ingest

import (
	"encoding/json"
	"errors"
	"mjpegavi/pkg/avi"
	"mjpegavi/pkg/catalog"
	"mjpegavi/pkg/config"
	"mjpegavi/pkg/log"
	"mjpegavi/pkg/system"
	"net/http"
	"os"
	"sync"
)

const jsonContentType = "application/json"

// Server handles recording ingest and the recordings API.
type Server struct {
	env     config.ConfigEnv
	log     *log.Logger
	catalog *catalog.DB
	status  func() system.Status
	auth    *Authenticator

	// Names of recordings in progress.
	active map[string]struct{}
	mu     sync.Mutex
}

// NewServer returns a new ingest server.
func NewServer(
	env config.ConfigEnv,
	logger *log.Logger,
	db *catalog.DB,
	status func() system.Status,
) *Server {
	return &Server{
		env:     env,
		log:     logger,
		catalog: db,
		status:  status,
		auth:    NewAuthenticator(env.Accounts(), logger),
		active:  make(map[string]struct{}),
	}
}

// Handler returns the routes, all of them behind basic auth.
func (s *Server) Handler() http.Handler {
	a := s.auth
	mux := http.NewServeMux()
	mux.Handle("/api/record", a.User(s.Record()))
	mux.Handle("/api/recordings", a.User(s.Recordings()))
	mux.Handle("/api/recording", a.User(s.Recording()))
	mux.Handle("/api/recording/delete", a.User(s.RecordingDelete()))
	mux.Handle("/api/system/status", a.User(s.Status()))
	return mux
}

func (s *Server) limits() avi.Limits {
	return avi.Limits{
		MaxFileSize: s.env.MaxFileSize,
		MaxFrames:   s.env.MaxFrames,
	}
}

// readLimit is the maximum websocket message size.
func (s *Server) readLimit() int64 {
	if s.env.MaxFileSize > 0 {
		return s.env.MaxFileSize
	}
	return config.DefaultMaxFileSize
}

// claim marks name as in progress, false if it already is.
func (s *Server) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.active[name]; exists {
		return false
	}
	s.active[name] = struct{}{}
	return true
}

func (s *Server) release(name string) {
	s.mu.Lock()
	delete(s.active, name)
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", jsonContentType)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Recordings returns the catalog, newest first.
func (s *Server) Recordings() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}

		recordings, err := s.catalog.List()
		if err != nil {
			s.log.Error().Src("app").Msgf("could not list recordings: %v", err)
			http.Error(w, "could not list recordings", http.StatusInternalServerError)
			return
		}
		if recordings == nil {
			recordings = []catalog.Recording{}
		}
		writeJSON(w, recordings)
	})
}

// Recording serves a finalized AVI file by name.
func (s *Server) Recording() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}

		name := r.URL.Query().Get("name")
		if err := validateName(name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := s.catalog.Get(name)
		if errors.Is(err, catalog.ErrNotFound) {
			http.Error(w, "recording not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.log.Error().Src("app").Msgf("could not get recording: %v", err)
			http.Error(w, "could not get recording", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "video/x-msvideo")
		http.ServeFile(w, r, rec.Path)
	})
}

// RecordingDelete removes a recording and its file.
func (s *Server) RecordingDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}

		name := r.URL.Query().Get("name")
		if err := validateName(name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := s.catalog.Get(name)
		if errors.Is(err, catalog.ErrNotFound) {
			http.Error(w, "recording not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "could not get recording", http.StatusInternalServerError)
			return
		}

		if err := s.catalog.Delete(name); err != nil {
			s.log.Error().Src("app").Msgf("could not delete recording: %v", err)
			http.Error(w, "could not delete recording", http.StatusInternalServerError)
			return
		}
		if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Error().Src("app").Msgf("could not remove recording file: %v", err)
		}
		s.log.Info().Src("app").Msgf("recording deleted: %v", name)
	})
}

// Status returns system status.
func (s *Server) Status() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, s.status())
	})
}
