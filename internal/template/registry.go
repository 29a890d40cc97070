// Package template renders campaign emails from a registry of layouts.
// Rendering is a pure function of the template, the customizations and the
// prospect data.
package template

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/fruitai/outreach/internal/apperr"
	"gopkg.in/yaml.v3"
)

// Component names a section a template may include
type Component string

const (
	ComponentHeaderBanner Component = "header_banner"
	ComponentFeatureGrid  Component = "feature_grid"
	ComponentCTAButton    Component = "cta_button"
)

// Template is a registered email layout
type Template struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description" json:"description,omitempty"`
	PrimaryColor string            `yaml:"primary_color" json:"primaryColor"`
	FontFamily   string            `yaml:"font_family" json:"fontFamily,omitempty"`
	Components   []Component       `yaml:"components" json:"components"`
	Defaults     map[string]any    `yaml:"defaults" json:"defaults,omitempty"`
	Fallbacks    map[string]string `yaml:"fallbacks" json:"fallbacks,omitempty"`
}

// Has reports whether the template includes component c
func (t Template) Has(c Component) bool {
	for _, v := range t.Components {
		if v == c {
			return true
		}
	}
	return false
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

func (t Template) validate() error {
	if !idPattern.MatchString(t.ID) {
		return fmt.Errorf("invalid template id %q", t.ID)
	}
	if t.Name == "" {
		return fmt.Errorf("template %q: name is required", t.ID)
	}
	if _, ok := normalizeColor(t.PrimaryColor); !ok {
		return fmt.Errorf("template %q: invalid primary color %q", t.ID, t.PrimaryColor)
	}
	for _, c := range t.Components {
		switch c {
		case ComponentHeaderBanner, ComponentFeatureGrid, ComponentCTAButton:
		default:
			return fmt.Errorf("template %q: unknown component %q", t.ID, c)
		}
	}
	return nil
}

// Registry holds the available templates
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates a Registry holding the built-in templates
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]Template)}
	for _, t := range builtins() {
		r.templates[t.ID] = t
	}
	return r
}

// Register adds or replaces a template
func (r *Registry) Register(t Template) error {
	if err := t.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

// Get returns the template with the given id
func (r *Registry) Get(id string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return Template{}, apperr.New(apperr.KindUnknownTemplate, "template %q is not registered", id)
	}
	return t, nil
}

// Exists reports whether id is registered
func (r *Registry) Exists(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// List returns every template ordered by id
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadFile registers the templates defined in a YAML file
func (r *Registry) LoadFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read templates file: %w", err)
	}
	return r.Load(raw)
}

// Load registers the templates in a YAML document
func (r *Registry) Load(raw []byte) (int, error) {
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("failed to parse templates: %w", err)
	}
	for _, t := range file.Templates {
		if err := r.Register(t); err != nil {
			return 0, err
		}
	}
	return len(file.Templates), nil
}

func builtins() []Template {
	all := []Component{ComponentHeaderBanner, ComponentFeatureGrid, ComponentCTAButton}
	return []Template{
		{
			ID:           "professional_partnership",
			Name:         "Professional Partnership",
			Description:  "Clean partnership pitch with a header banner and feature highlights",
			PrimaryColor: "#10b981",
			Components:   all,
			Defaults: map[string]any{
				"subject":     "Partnership Opportunity with {company}",
				"headerTitle": "Let's Grow Together",
				"mainHeading": "A partnership idea for {company}",
			},
		},
		{
			ID:           "modern_tech",
			Name:         "Modern Tech",
			Description:  "Product-led layout for technology companies",
			PrimaryColor: "#3b82f6",
			Components:   all,
			Defaults: map[string]any{
				"subject":     "{company} + {senderCompany}: a faster way forward",
				"headerTitle": "Transform Your Business with AI",
				"mainHeading": "Revolutionizing {company} with AI-Powered Solutions",
			},
		},
		{
			ID:           "enterprise_executive",
			Name:         "Enterprise Executive",
			Description:  "Understated letter for executive audiences",
			PrimaryColor: "#7c3aed",
			FontFamily:   "Georgia, 'Times New Roman', serif",
			Components:   []Component{ComponentCTAButton},
			Defaults: map[string]any{
				"subject":    "A brief note for {name} at {company}",
				"greeting":   "Dear {name},",
				"buttonText": "Book a 15-minute call",
			},
			Fallbacks: map[string]string{"name": "Executive Team"},
		},
	}
}
