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
	"encoding/base64"
	"mjpegavi/pkg/log"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost bcrypt hash cost.
const DefaultHashCost = 10

// Authenticator basic auth against bcrypt hashed passwords.
// All requests are allowed if there are no accounts.
type Authenticator struct {
	accounts  map[string][]byte
	authCache map[string]bool

	hashCost int

	log *log.Logger
	mu  sync.Mutex
}

// NewAuthenticator creates basic authenticator from username to hash.
func NewAuthenticator(accounts map[string][]byte, logger *log.Logger) *Authenticator {
	return &Authenticator{
		accounts:  accounts,
		authCache: make(map[string]bool),
		hashCost:  DefaultHashCost,
		log:       logger,
	}
}

// AuthDisabled if all requests should be allowed.
func (a *Authenticator) AuthDisabled() bool {
	return len(a.accounts) == 0
}

// ValidateRequest Should always take the same amount of
// time to run, even when username or password is invalid.
func (a *Authenticator) ValidateRequest(r *http.Request) bool {
	if a.AuthDisabled() {
		return true
	}

	req := r.Header.Get("Authorization")
	a.mu.Lock()
	valid, cacheExist := a.authCache[req]
	a.mu.Unlock()
	if cacheExist {
		return valid
	}

	name, pass := parseBasicAuth(req)
	hash, found := a.accounts[name]

	if !found {
		// Generate fake hash to prevent timing based attacks.
		bcrypt.GenerateFromPassword([]byte(name), a.hashCost) //nolint:errcheck
	} else {
		valid = bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
	}

	a.mu.Lock()
	a.authCache[req] = valid
	a.mu.Unlock()
	return valid
}

// User blocks unauthorized requests and prompts for login.
func (a *Authenticator) User(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.ValidateRequest(r) {
			if r.Header.Get("Authorization") != "" {
				username, _ := parseBasicAuth(r.Header.Get("Authorization"))
				logFailedLogin(a.log, r, username)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm=""`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Modified from net/http. Link:
// https://cs.opensource.google/go/go/+/refs/tags/go1.17.8:src/net/http/request.go;l=949
func parseBasicAuth(str string) (username, password string) {
	const prefix = "Basic "
	if len(str) < len(prefix) || !strings.EqualFold(str[:len(prefix)], prefix) {
		return
	}
	c, err := base64.StdEncoding.DecodeString(str[len(prefix):])
	if err != nil {
		return
	}
	cs := string(c)
	s := strings.IndexByte(cs, ':')
	if s < 0 {
		return
	}
	return cs[:s], cs[s+1:]
}

// logFailedLogin finds and logs the ip.
func logFailedLogin(logger *log.Logger, r *http.Request, username string) {
	ip := ""
	realIP := r.Header.Get("X-Real-Ip")
	if realIP != "" {
		ip += "real:" + realIP + " "
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" && forwarded != realIP {
		ip += "forwarded:" + forwarded + " "
	}
	remoteAddr := r.RemoteAddr
	if remoteAddr != "" && remoteAddr != forwarded {
		ip += "addr:" + remoteAddr
	}

	logger.Info().Src("auth").Msgf("failed login: username: %v %v", username, ip)
}
