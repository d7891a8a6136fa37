// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/danielhkuo/quickly-predict/forms"
	"github.com/danielhkuo/quickly-predict/metrics"
	"github.com/danielhkuo/quickly-predict/sheet"
	"github.com/danielhkuo/quickly-predict/sonar"
	"github.com/danielhkuo/quickly-predict/upstream"
)

// Deps are the services shared by the handlers. Sheet is nil when no
// workbook is configured.
type Deps struct {
	Registry   *forms.Registry
	Upstream   *upstream.Client
	Classifier *sonar.Classifier
	Sheet      *sheet.Store
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// text renders a decoded JSON value the way it would be typed into a cell
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// number parses a decoded JSON value as a float
func number(v any) (float64, bool) {
	s := strings.TrimSpace(text(v))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
