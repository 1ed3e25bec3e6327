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

package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the wire shape of every error response.
type Envelope struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode"`
	Details    map[string]any `json:"details,omitempty"`
}

// Serialize converts err into its envelope. Errors outside the hierarchy
// become a bare 500 so internals never reach the client.
func Serialize(err error) Envelope {
	var he *HTTPError
	if err != nil && errors.As(err, &he) {
		return Envelope{
			Success:    false,
			Message:    he.Message,
			StatusCode: he.StatusCode,
			Details:    he.Details,
		}
	}
	return Envelope{
		Success:    false,
		Message:    MessageInternal,
		StatusCode: http.StatusInternalServerError,
	}
}

// Write serializes err and writes it as the response.
func Write(w http.ResponseWriter, err error) {
	env := Serialize(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(env.StatusCode)
	_ = json.NewEncoder(w).Encode(env)
}
