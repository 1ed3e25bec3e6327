// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"httperrors/modules/httperr"
	"httperrors/modules/middleware"
	"httperrors/modules/server"
)

var _ server.RegistrableService = (*DemoService)(nil)

// DemoService mounts a handful of routes that exercise the error pipeline:
// a health check, a plain success route and one route per error class.
type DemoService struct {
	middlewares []func(http.Handler) http.Handler
}

func NewDemoService(mw ...func(http.Handler) http.Handler) *DemoService {
	return &DemoService{middlewares: mw}
}

func (s *DemoService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /v1/ping", middleware.Handle(ping))
	mux.Handle("GET /v1/errors/{kind}", middleware.Handle(raise))
	mux.Handle("GET /v1/panic", middleware.Handle(func(w http.ResponseWriter, r *http.Request) error {
		panic("demo panic")
	}))
}

func (s *DemoService) Middlewares() []func(http.Handler) http.Handler {
	return s.middlewares
}

func ping(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "pong"})
}

// ErrorKinds lists the values accepted by GET /v1/errors/{kind}.
var ErrorKinds = map[string]func() error{
	"bad-request":  func() error { return httperr.BadRequest("") },
	"unauthorized": func() error { return httperr.Unauthorized("") },
	"forbidden":    func() error { return httperr.Forbidden("") },
	"not-found":    func() error { return httperr.NotFound("") },
	"conflict":     func() error { return httperr.Conflict("Email already registered", httperr.WithDetail("field", "email")) },
	"validation": func() error {
		return httperr.Validation("", httperr.WithDetails(map[string]any{
			"fields": map[string]string{"name": "is required"},
		}))
	},
	"query": func() error {
		return httperr.Query("Cannot query field \"nickname\"", map[string]any{"code": "GRAPHQL_VALIDATION_FAILED"})
	},
	"internal": func() error { return errors.New("connection reset by peer") },
}

func raise(w http.ResponseWriter, r *http.Request) error {
	kind := r.PathValue("kind")
	fn, ok := ErrorKinds[kind]
	if !ok {
		return httperr.NotFound("Unknown error kind", httperr.WithDetail("kind", kind))
	}
	return fn()
}
