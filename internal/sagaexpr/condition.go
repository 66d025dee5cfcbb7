// SPDX-License-Identifier: AGPL-3.0-or-later

package sagaexpr

import (
	"regexp"
	"strconv"
	"strings"

	"sagaflow/internal/sagactx"
)

// Feature: CORE_EXPR_CONDITION
// Spec: spec.md section 4.1 (Condition evaluator) and section 9 (quirks)
//
// The grammar is
//
//	cond  := term (("&&" | "||") term)*
//	term  := value ("==" | "!=") value
//	       | value
//	value := ${PATH} | literal
//
// The reference parser is ad-hoc: it splits the whole expression on "&&"
// first, then splits each resulting piece on "||". This does not implement
// real operator precedence when both appear in one expression, but it is
// the documented, intentionally-preserved behavior (spec.md section 9).

// DefaultSuccessCondition is used when a step omits success.condition.
const DefaultSuccessCondition = "response.status == 200"

var bareResponsePattern = regexp.MustCompile(`\bresponse(\.[A-Za-z0-9_]+)+\b`)

// NormalizeSuccessCondition wraps bare response.* references in ${...} so
// authors can write `response.status == 200` instead of
// `${response.status} == 200` (spec.md section 4.1).
func NormalizeSuccessCondition(cond string) string {
	if cond == "" {
		return DefaultSuccessCondition
	}
	var b strings.Builder
	last := 0
	for _, loc := range bareResponsePattern.FindAllStringIndex(cond, -1) {
		b.WriteString(cond[last:loc[0]])
		m := cond[loc[0]:loc[1]]
		if strings.HasSuffix(cond[:loc[0]], "${") {
			b.WriteString(m)
		} else {
			b.WriteString("${" + m + "}")
		}
		last = loc[1]
	}
	b.WriteString(cond[last:])
	return b.String()
}

// Evaluate evaluates a (already-normalized) condition string against ctx.
func Evaluate(cond string, ctx *sagactx.Context) bool {
	andParts := strings.Split(cond, "&&")
	result := true
	for _, ap := range andParts {
		orParts := strings.Split(ap, "||")
		orResult := false
		for _, op := range orParts {
			if evalTerm(op, ctx) {
				orResult = true
			}
		}
		result = result && orResult
	}
	return result
}

func evalTerm(term string, ctx *sagactx.Context) bool {
	term = strings.TrimSpace(term)

	if lhs, rhs, ok := splitOperator(term, "!="); ok {
		return !valuesEqual(lhs, rhs, ctx)
	}
	if lhs, rhs, ok := splitOperator(term, "=="); ok {
		return valuesEqual(lhs, rhs, ctx)
	}

	return isTruthy(resolveValue(term, ctx))
}

func splitOperator(term, op string) (lhs, rhs string, ok bool) {
	idx := strings.Index(term, op)
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(term[:idx]), strings.TrimSpace(term[idx+len(op):]), true
}

// resolveValue evaluates a single operand: a `${path}` reference (whole or
// embedded) or a bare literal.
func resolveValue(raw string, ctx *sagactx.Context) any {
	raw = strings.TrimSpace(raw)
	return Interpolate(raw, ctx)
}

// valuesEqual implements the numeric-or-string comparison: both sides are
// quote-stripped then parsed as float64; on either parse failure the
// comparison falls back to quote-stripped string equality (spec.md section
// 4.1, section 9).
func valuesEqual(lhsRaw, rhsRaw string, ctx *sagactx.Context) bool {
	lhs := ToString(resolveValue(lhsRaw, ctx))
	rhs := ToString(resolveValue(rhsRaw, ctx))

	lhsNum, lhsErr := strconv.ParseFloat(stripQuotes(lhs), 64)
	rhsNum, rhsErr := strconv.ParseFloat(stripQuotes(rhs), 64)
	if lhsErr == nil && rhsErr == nil {
		return lhsNum == rhsNum
	}

	return stripQuotes(lhs) == stripQuotes(rhs)
}

// isTruthy implements the bare-value rule: non-empty and not the literal
// "false" or "0" (spec.md section 4.1).
func isTruthy(v any) bool {
	s := stripQuotes(ToString(v))
	return s != "" && s != "false" && s != "0"
}
