// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forms

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Engine selects where a form's payload is scored.
type Engine string

const (
	EngineRemote       Engine = "remote"
	EngineMockLogistic Engine = "mock-logistic"
	EngineKNN          Engine = "knn"
)

// Kind is the input type of a form field.
type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindText    Kind = "text"
	KindSelect  Kind = "select"
	KindVector  Kind = "vector"
)

// DefaultErrorMessage is shown when an app does not configure its own.
const DefaultErrorMessage = "An error occurred during prediction"

var (
	ErrDuplicateApp = errors.New("duplicate app name")
	ErrAppName      = errors.New("app names must be lowercase letters, digits and dashes")
)

var appName = regexp.MustCompile(`^[a-z0-9-]+$`)

//go:embed apps.yaml
var defaultApps []byte

// Field is one labelled input of a form.
type Field struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Key         string   `yaml:"key" json:"key,omitempty"`
	Label       string   `yaml:"label" json:"label" validate:"required"`
	Kind        Kind     `yaml:"kind" json:"kind" validate:"required,oneof=number integer text select vector"`
	Optional    bool     `yaml:"optional" json:"optional,omitempty"`
	Options     []string `yaml:"options" json:"options,omitempty" validate:"required_if=Kind select"`
	Min         *float64 `yaml:"min" json:"min,omitempty"`
	Max         *float64 `yaml:"max" json:"max,omitempty"`
	Arity       int      `yaml:"arity" json:"arity,omitempty" validate:"required_if=Kind vector"`
	Placeholder string   `yaml:"placeholder" json:"placeholder,omitempty"`
}

// App describes one demo frontend and the service that scores it.
type App struct {
	Name          string            `yaml:"name" json:"name" validate:"required"`
	Title         string            `yaml:"title" json:"title" validate:"required"`
	Description   string            `yaml:"description" json:"description,omitempty"`
	Engine        Engine            `yaml:"engine" json:"engine" validate:"required,oneof=remote mock-logistic knn"`
	BaseURL       string            `yaml:"base_url" json:"-"`
	Method        string            `yaml:"method" json:"-" validate:"omitempty,oneof=GET POST"`
	PredictPath   string            `yaml:"predict_path" json:"-" validate:"required_if=Engine remote"`
	HealthPath    string            `yaml:"health_path" json:"-"`
	FeaturesPath  string            `yaml:"features_path" json:"-"`
	ExamplesPath  string            `yaml:"examples_path" json:"-"`
	SurfaceErrors bool              `yaml:"surface_errors" json:"-"`
	ErrorMessage  string            `yaml:"error_message" json:"error_message"`
	ResultFields  []string          `yaml:"result_fields" json:"result_fields,omitempty"`
	Samples       map[string]string `yaml:"samples" json:"samples,omitempty"`
	Fields        []Field           `yaml:"fields" json:"fields" validate:"required,min=1,dive"`
}

type document struct {
	Apps []*App `yaml:"apps" validate:"required,min=1,dive,required"`
}

// Registry holds the configured apps in file order.
type Registry struct {
	apps   []*App
	byName map[string]*App
}

// Default returns the registry embedded in the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultApps))
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open apps file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a registry document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode apps: %w", err)
	}

	for _, app := range doc.Apps {
		if app != nil {
			app.applyDefaults()
		}
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid apps: %w", err)
	}

	reg := &Registry{byName: make(map[string]*App, len(doc.Apps))}
	for _, app := range doc.Apps {
		if !appName.MatchString(app.Name) {
			return nil, fmt.Errorf("%w: %q", ErrAppName, app.Name)
		}
		if _, dup := reg.byName[app.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateApp, app.Name)
		}
		for _, f := range app.Fields {
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return nil, fmt.Errorf("invalid apps: %s.%s has min above max", app.Name, f.Name)
			}
		}
		reg.byName[app.Name] = app
		reg.apps = append(reg.apps, app)
	}
	return reg, nil
}

func (a *App) applyDefaults() {
	if a.ErrorMessage == "" {
		a.ErrorMessage = DefaultErrorMessage
	}
	if a.Engine == EngineRemote && a.Method == "" {
		a.Method = http.MethodPost
	}
	a.Method = strings.ToUpper(a.Method)
	for i := range a.Fields {
		f := &a.Fields[i]
		if f.Key == "" {
			f.Key = f.Name
		}
		if f.Label == "" {
			f.Label = f.Name
		}
	}
}

// Get looks up an app by name.
func (r *Registry) Get(name string) (*App, bool) {
	app, ok := r.byName[name]
	return app, ok
}

// List returns all apps in file order.
func (r *Registry) List() []*App {
	return r.apps
}

// ApplyUpstreams points remote apps at their prediction services. An
// override wins over the file, the file wins over the default base URL.
func (r *Registry) ApplyUpstreams(defaultBase string, overrides map[string]string) {
	for _, app := range r.apps {
		if u, ok := overrides[app.Name]; ok && u != "" {
			app.BaseURL = u
			continue
		}
		if app.BaseURL == "" {
			app.BaseURL = defaultBase
		}
	}
}

// URL joins the app's base URL with path.
func (a *App) URL(path string) string {
	return strings.TrimRight(a.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// PredictRequest resolves the predict path template against payload.
// Placeholders like {retweets} are filled from the payload and removed from
// the body that is sent along.
func (a *App) PredictRequest(payload map[string]any) (string, map[string]any) {
	body := make(map[string]any, len(payload))
	for k, v := range payload {
		body[k] = v
	}

	path := a.PredictPath
	for k, v := range payload {
		ph := "{" + k + "}"
		if strings.Contains(path, ph) {
			path = strings.ReplaceAll(path, ph, url.PathEscape(fmt.Sprint(v)))
			delete(body, k)
		}
	}
	return a.URL(path), body
}

var validate = validator.New(validator.WithRequiredStructEnabled())
