// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forms

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Fixed messages for array-style inputs.
const (
	MsgVectorEmpty   = "Please enter data or select a sample"
	MsgVectorNumbers = "Invalid data format. All values must be numbers."
)

// FieldError reports one rejected input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected input of a submission.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Package coerces raw form input into the payload the prediction service
// expects. Numbers become float64, integers int64, vectors []float64; text
// and select values stay strings. All field errors are reported together as
// a *ValidationError.
func (a *App) Package(input map[string]any) (map[string]any, error) {
	payload := make(map[string]any, len(a.Fields))
	var errs []FieldError

	for _, f := range a.Fields {
		raw := strings.TrimSpace(stringify(input[f.Name]))

		if raw == "" {
			switch {
			case f.Optional && (f.Kind == KindText || f.Kind == KindSelect):
				payload[f.Key] = ""
			case f.Optional:
			case f.Kind == KindVector:
				errs = append(errs, FieldError{f.Name, MsgVectorEmpty})
			default:
				errs = append(errs, FieldError{f.Name, f.Label + " is required"})
			}
			continue
		}

		v, msg := f.coerce(raw)
		if msg != "" {
			errs = append(errs, FieldError{f.Name, msg})
			continue
		}
		payload[f.Key] = v
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return payload, nil
}

func (f Field) coerce(raw string) (any, string) {
	switch f.Kind {
	case KindNumber, KindInteger:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, f.Label + " must be a number"
		}
		if f.Kind == KindInteger && v != math.Trunc(v) {
			return nil, f.Label + " must be a whole number"
		}
		if f.Kind == KindInteger && math.Abs(v) >= 1<<63 {
			return nil, f.Label + " is out of range"
		}
		if msg := f.checkRange(v); msg != "" {
			return nil, msg
		}
		if f.Kind == KindInteger {
			return int64(v), ""
		}
		return v, ""

	case KindSelect:
		if !slices.Contains(f.Options, raw) {
			return nil, f.Label + " must be one of the listed options"
		}
		return raw, ""

	case KindVector:
		return ParseVector(raw, f.Arity)

	default:
		return raw, ""
	}
}

func (f Field) checkRange(v float64) string {
	var tags []string
	if f.Min != nil {
		tags = append(tags, "gte="+formatFloat(*f.Min))
	}
	if f.Max != nil {
		tags = append(tags, "lte="+formatFloat(*f.Max))
	}
	if len(tags) == 0 {
		return ""
	}
	if err := validate.Var(v, strings.Join(tags, ",")); err == nil {
		return ""
	}

	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("%s must be between %s and %s", f.Label, formatFloat(*f.Min), formatFloat(*f.Max))
	case f.Min != nil:
		return fmt.Sprintf("%s must be at least %s", f.Label, formatFloat(*f.Min))
	default:
		return fmt.Sprintf("%s must be at most %s", f.Label, formatFloat(*f.Max))
	}
}

// ParseVector splits comma-separated numbers and checks the count before
// the values, so the user sees how many values were received.
func ParseVector(raw string, arity int) ([]float64, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, MsgVectorEmpty
	}
	parts := strings.Split(raw, ",")
	if len(parts) != arity {
		return nil, fmt.Sprintf("Expected %d values, got %d", arity, len(parts))
	}

	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, MsgVectorNumbers
		}
		out[i] = v
	}
	return out, ""
}

// stringify flattens a decoded JSON value into the text a form input
// would hold.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatFloat(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
