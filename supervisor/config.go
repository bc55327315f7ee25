// Copyright 2020 The Monogon Project Authors.
//
// SPDX-License-Identifier: Apache-2.0
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

package supervisor

import (
	"encoding/json"
	"fmt"
)

// ConfigDecoder turns a config message's raw payload into the group's
// typed config C, or reports why it could not. Loading and validating
// configuration is explicitly out of scope for this runtime; this
// interface is the seam a caller plugs a real config loader into, without
// the Supervisor core needing to know its wire format.
type ConfigDecoder[C any] interface {
	Decode(raw any) (C, error)
}

// jsonConfigDecoder is the default ConfigDecoder: payloads that are
// already the right type pass through unchanged, json.RawMessage/[]byte
// payloads are unmarshaled, and anything else is rejected.
type jsonConfigDecoder[C any] struct{}

// DefaultConfigDecoder returns the built-in ConfigDecoder used when a
// Supervisor is constructed without WithConfigDecoder.
func DefaultConfigDecoder[C any]() ConfigDecoder[C] {
	return jsonConfigDecoder[C]{}
}

func (jsonConfigDecoder[C]) Decode(raw any) (C, error) {
	var zero C
	switch v := raw.(type) {
	case C:
		return v, nil
	case json.RawMessage:
		var out C
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("decoding config: %w", err)
		}
		return out, nil
	case []byte:
		var out C
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("decoding config: %w", err)
		}
		return out, nil
	default:
		return zero, fmt.Errorf("decoding config: unsupported payload type %T", raw)
	}
}

// ConfigRejected is the reply sent back when a ValidateConfig or
// UpdateConfig message's payload fails to decode.
type ConfigRejected struct {
	Reason error
}

// ConfigUpdated is the reply sent back on a successful UpdateConfig.
type ConfigUpdated struct{}
