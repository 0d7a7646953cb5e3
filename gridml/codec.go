// Copyright 2025 The GridML Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gridml

import (
	"github.com/mitchellh/mapstructure"

	"go.chromium.org/luci/common/errors"
)

// TransformKeys re-keys a wire-shaped record into local snake_case keys,
// recursing into nested records and lists of records. Values are not
// converted, only keys.
func TransformKeys(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[PascalToSnake(k)] = transformValue(v)
	}
	return out
}

func transformValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return TransformKeys(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = transformValue(elem)
		}
		return out
	default:
		return v
	}
}

// applyKeyMapping renames specific snake_case keys of an already-transformed
// record. Used for list operations whose summary fields are named differently
// from the resource's own fields.
func applyKeyMapping(init map[string]any, mapping map[string]string) map[string]any {
	if len(mapping) == 0 {
		return init
	}
	out := make(map[string]any, len(init))
	for k, v := range init {
		if renamed, ok := mapping[k]; ok {
			k = renamed
		}
		out[k] = v
	}
	return out
}

// decodeShape decodes a snake-keyed record into a typed shape struct.
//
// Decoding is weakly typed since JSON numbers arrive as float64 regardless
// of the shape's declared field type. Unknown keys are ignored: list
// summaries are partial projections and describe responses may grow fields
// ahead of this client.
func decodeShape(init map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Fmt("building shape decoder: %w", err)
	}
	if err := dec.Decode(init); err != nil {
		return errors.Fmt("decoding shape: %w", err)
	}
	return nil
}
