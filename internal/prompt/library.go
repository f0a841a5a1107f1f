// Package prompt composes the instruction blocks handed to the completion API.
//
// The persona and per-content-type rules are plain data, loaded once and passed
// around as an immutable *Library.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind selects the structural rules for one type of generated content.
type Kind string

const (
	KindBlogPost   Kind = "blog-post"
	KindSocialWeek Kind = "social-week"
	KindLinkedIn   Kind = "linkedin"
	KindMicroblog  Kind = "microblog"
	KindClips      Kind = "clips"
	KindScript     Kind = "script"
	KindSignals    Kind = "signals"
)

// Kinds lists every kind a complete library must define.
var Kinds = []Kind{KindBlogPost, KindSocialWeek, KindLinkedIn, KindMicroblog, KindClips, KindScript, KindSignals}

//go:embed default.yaml
var defaultLibrary []byte

// Persona describes the voice every piece of content is written in.
type Persona struct {
	Name    string   `yaml:"name"`
	Bio     string   `yaml:"bio"`
	Voice   []string `yaml:"voice"`
	Phrases []string `yaml:"phrases"`
	Never   []string `yaml:"never"`
	Metrics []string `yaml:"metrics"`
}

type document struct {
	Persona         Persona           `yaml:"persona"`
	DefaultCategory string            `yaml:"default_category"`
	Templates       map[string]string `yaml:"templates"`
}

// Library holds the persona and compiled per-kind templates.
type Library struct {
	persona         Persona
	defaultCategory string
	templates       map[Kind]*template.Template
}

// Params is the caller-supplied material for one composition.
type Params struct {
	Date time.Time
	// Metrics overrides the persona metrics when non-empty.
	Metrics []string
}

// Default returns the library compiled into the binary.
func Default() (*Library, error) {
	return Parse(defaultLibrary)
}

// Load reads a library from path, or returns the default one when path is empty.
func Load(path string) (*Library, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML library document and compiles its templates.
func Parse(data []byte) (*Library, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("prompt: decode library: %w", err)
	}
	if strings.TrimSpace(doc.Persona.Name) == "" {
		return nil, fmt.Errorf("prompt: persona name is required")
	}
	if doc.DefaultCategory == "" {
		return nil, fmt.Errorf("prompt: default_category is required")
	}

	lib := &Library{
		persona:         doc.Persona,
		defaultCategory: doc.DefaultCategory,
		templates:       make(map[Kind]*template.Template, len(Kinds)),
	}
	for _, kind := range Kinds {
		text, ok := doc.Templates[string(kind)]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt: template %q missing", kind)
		}
		tmpl, err := template.New(string(kind)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("prompt: template %q: %w", kind, err)
		}
		lib.templates[kind] = tmpl
	}
	return lib, nil
}

// Persona returns a copy of the persona.
func (l *Library) Persona() Persona {
	p := l.persona
	p.Voice = append([]string(nil), p.Voice...)
	p.Phrases = append([]string(nil), p.Phrases...)
	p.Never = append([]string(nil), p.Never...)
	p.Metrics = append([]string(nil), p.Metrics...)
	return p
}

// Compose renders the instruction block for kind.
func (l *Library) Compose(kind Kind, params Params) (string, error) {
	tmpl, ok := l.templates[kind]
	if !ok {
		return "", fmt.Errorf("prompt: unknown kind %q", kind)
	}

	metrics := l.persona.Metrics
	if len(params.Metrics) > 0 {
		metrics = params.Metrics
	}
	date := params.Date
	if date.IsZero() {
		date = time.Now()
	}

	data := struct {
		Persona         Persona
		Voice           string
		Metrics         []string
		Date            string
		DefaultCategory string
	}{
		Persona:         l.persona,
		Voice:           l.voiceBlock(metrics),
		Metrics:         metrics,
		Date:            date.Format("2006-01-02"),
		DefaultCategory: l.defaultCategory,
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("prompt: render %q: %w", kind, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func (l *Library) voiceBlock(metrics []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are ghostwriting content for %s, %s.\n", l.persona.Name, l.persona.Bio)
	writeList(&b, "VOICE RULES", l.persona.Voice)
	writeList(&b, "PHRASES (use naturally)", l.persona.Phrases)
	writeList(&b, "REAL METRICS", metrics)
	writeList(&b, "NEVER", l.persona.Never)
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
