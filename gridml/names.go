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
	"regexp"
	"strings"
)

// The wire protocol names fields in PascalCase (control plane) or
// lowerCamelCase (log backend); locally records are keyed in snake_case.
// A handful of acronym-heavy names do not survive a mechanical round trip,
// so they are special-cased in both directions.

var specialSnakeToPascal = map[string]string{
	"volume_size_in_gb":  "VolumeSizeInGB",
	"volume_size_in_g_b": "VolumeSizeInGB",
}

var specialPascalToSnake = map[string]string{
	"VolumeSizeInGB": "volume_size_in_gb",
}

var (
	pascalBoundaryRe = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	snakeBoundaryRe  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// SnakeToPascal converts a snake_case field name to its wire PascalCase
// form.
func SnakeToPascal(s string) string {
	if pascal, ok := specialSnakeToPascal[s]; ok {
		return pascal
	}
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

// PascalToSnake converts a wire PascalCase (or lowerCamelCase) field name
// to its local snake_case form.
func PascalToSnake(s string) string {
	if snake, ok := specialPascalToSnake[s]; ok {
		return snake
	}
	snake := pascalBoundaryRe.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(snakeBoundaryRe.ReplaceAllString(snake, "${1}_${2}"))
}
