// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sagaexpr implements the template-substitution and condition
// language the orchestrator evaluates against a per-execution context:
// `${dotted.path}` placeholders in whole-value and embedded-string modes,
// and the `&&`/`||`/`==`/`!=` condition grammar used by success predicates.
//
// Feature: CORE_EXPR
// Spec: spec.md section 4.1 (Expression Evaluator)
package sagaexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sagaflow/internal/sagactx"
)

// ReservedTimestamp is the reserved path resolving to the current wall-clock
// time in ISO-8601 UTC, in both interpolation modes.
const ReservedTimestamp = "current_timestamp"

var (
	wholeValuePattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)
	placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// nowFunc is indirected so tests can pin the clock; production code never
// overrides it.
var nowFunc = time.Now

// Interpolate descends value recursively, substituting `${...}` placeholders
// in every leaf string. Maps and lists are walked structurally; keys are
// never interpolated (spec.md section 4.1 - Structural interpolation).
func Interpolate(value any, ctx *sagactx.Context) any {
	switch v := value.(type) {
	case string:
		return interpolateString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, sub := range v {
			out[k] = Interpolate(sub, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, sub := range v {
			out[i] = Interpolate(sub, ctx)
		}
		return out
	default:
		return value
	}
}

// InterpolateHeaders applies string interpolation to a header map's values,
// leaving header names untouched.
func InterpolateHeaders(headers map[string]string, ctx *sagactx.Context) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = ToString(interpolateString(v, ctx))
	}
	return out
}

// interpolateString applies whole-value mode when the entire string is a
// single placeholder, and embedded-string mode otherwise (spec.md section
// 4.1, modes 1 and 2).
func interpolateString(s string, ctx *sagactx.Context) any {
	if m := wholeValuePattern.FindStringSubmatch(s); m != nil {
		v, ok := resolvePath(m[1], ctx)
		if !ok {
			return s
		}
		return v
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := match[2 : len(match)-1]
		v, ok := resolvePath(path, ctx)
		if !ok {
			return match
		}
		return ToString(v)
	})
}

// resolvePath resolves path against ctx, special-casing the reserved
// current_timestamp path (spec.md section 4.1).
func resolvePath(path string, ctx *sagactx.Context) (any, bool) {
	if path == ReservedTimestamp {
		return nowFunc().UTC().Format(time.RFC3339), true
	}
	return ctx.Resolve(path)
}

// ToString coerces a resolved value to its embedded-string representation.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// stripQuotes removes a single matching pair of surrounding quotes, used by
// the condition evaluator's literal handling.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
