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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mjpegavi/pkg/avi"
	"mjpegavi/pkg/catalog"
	"mjpegavi/pkg/sink"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// Text message that finalizes a recording.
const finishMessage = "finish"

// Close reasons are limited to 123 bytes.
const maxCloseReason = 123

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Errors.
var (
	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidQuery = errors.New("invalid query")
)

func validateName(name string) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: '%v'", ErrInvalidName, name)
	}
	return nil
}

func parseRecordQuery(query url.Values) (string, avi.Params, error) {
	name := query.Get("name")
	if err := validateName(name); err != nil {
		return "", avi.Params{}, err
	}

	var values [3]int
	for i, key := range []string{"width", "height", "fps"} {
		v, err := strconv.Atoi(query.Get(key))
		if err != nil {
			return "", avi.Params{}, fmt.Errorf("%w: %v: %v", ErrInvalidQuery, key, err)
		}
		values[i] = v
	}

	p := avi.Params{Width: values[0], Height: values[1], FrameRate: values[2]}
	if err := p.Validate(); err != nil {
		return "", avi.Params{}, err
	}
	return name, p, nil
}

// Record upgrades to a websocket where each binary
// message is a JPEG frame appended to a new AVI file.
func (s *Server) Record() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
			return
		}

		name, params, err := parseRecordQuery(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if !s.claim(name) {
			http.Error(w, "recording in progress", http.StatusConflict)
			return
		}
		defer s.release(name)

		if _, err := s.catalog.Get(name); err == nil {
			http.Error(w, "recording already exists", http.StatusConflict)
			return
		}

		path := filepath.Join(s.env.RecordingsDir(), name+".avi")
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			http.Error(w, "recording already exists", http.StatusConflict)
			return
		}
		if err != nil {
			s.log.Error().Src("ingest").Msgf("could not create file: %v", err)
			http.Error(w, "could not create file", http.StatusInternalServerError)
			return
		}

		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			file.Close()
			os.Remove(path)
			return
		}
		defer conn.Close()

		// A frame larger than the file size limit can never be accepted.
		conn.SetReadLimit(s.readLimit())

		// Unblock reads on shutdown.
		stop := context.AfterFunc(r.Context(), func() { conn.Close() })
		defer stop()

		s.log.Info().Src("ingest").Msgf("%v: recording started", name)

		rec, err := s.record(r.Context(), conn, file, name, params)
		if err != nil {
			s.log.Error().Src("ingest").Msgf("%v: recording failed: %v", name, err)
			closeConn(conn, websocket.CloseInternalServerErr, err.Error())
			if err := os.Remove(path); err != nil {
				s.log.Error().Src("ingest").Msgf("%v: could not remove file: %v", name, err)
			}
			return
		}

		s.log.Info().Src("ingest").Msgf(
			"%v: recording finished: %v frames %v bytes", name, rec.Frames, rec.Size)
	})
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck
}

func sendError(conn *websocket.Conn, err error) error {
	return conn.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
}

// record reads frames until the recording is finalized. The file
// is closed on return and must be removed by the caller on error.
func (s *Server) record(
	ctx context.Context,
	conn *websocket.Conn,
	file *os.File,
	name string,
	params avi.Params,
) (*catalog.Recording, error) {
	defer file.Close()

	as := sink.NewAsync(file)
	defer as.Close()

	start := time.Now().UTC()
	w, err := avi.NewAsyncWriter(ctx, as, params, avi.WithLimits(s.limits()))
	if err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	finish := func(reply bool) (*catalog.Recording, error) {
		if err := w.Finish(ctx); err != nil {
			return nil, fmt.Errorf("finish: %w", err)
		}
		if err := as.Close(); err != nil {
			return nil, fmt.Errorf("close sink: %w", err)
		}
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("close file: %w", err)
		}

		rec := catalog.Recording{
			Name:      name,
			Path:      file.Name(),
			Width:     params.Width,
			Height:    params.Height,
			FrameRate: params.FrameRate,
			Frames:    w.Frames(),
			Size:      w.Size(),
			Start:     start,
			End:       time.Now().UTC(),
		}
		if err := s.catalog.Put(rec); err != nil {
			return nil, fmt.Errorf("save to catalog: %w", err)
		}

		if reply {
			summary, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("marshal summary: %w", err)
			}
			// The recording is saved, a client that left early is not an error.
			if err := conn.WriteMessage(websocket.TextMessage, summary); err == nil {
				closeConn(conn, websocket.CloseNormalClosure, "")
			}
		}
		return &rec, nil
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return finish(false)
			}
			return nil, fmt.Errorf("read message: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			err := w.AddFrame(ctx, data)
			switch {
			case err == nil:
			case errors.Is(err, avi.ErrEmptyFrame):
				if err := sendError(conn, err); err != nil {
					return nil, fmt.Errorf("send error: %w", err)
				}
			case w.State() == avi.StateOpen:
				// Limit reached, keep what has been recorded.
				if err := sendError(conn, err); err != nil {
					return nil, fmt.Errorf("send error: %w", err)
				}
				return finish(true)
			default:
				return nil, fmt.Errorf("add frame: %w", err)
			}

		case websocket.TextMessage:
			if string(data) == finishMessage {
				return finish(true)
			}
			err := fmt.Errorf("%w: unknown command: '%v'", ErrInvalidQuery, string(data))
			if err := sendError(conn, err); err != nil {
				return nil, fmt.Errorf("send error: %w", err)
			}
		}
	}
}
