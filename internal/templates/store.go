// Package templates holds the outbound message catalog, grouped by lifecycle
// stage and by reply category.
package templates

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const DefaultTemplateID = "default_template"

type Template struct {
	ID            string `yaml:"id" json:"id"`
	Text          string `yaml:"text" json:"text"`
	SandboxPrefix string `yaml:"sandbox_prefix,omitempty" json:"sandboxPrefix,omitempty"`
}

type catalogFile struct {
	SandboxPrefix string                        `yaml:"sandbox_prefix"`
	Categories    map[model.Category][]Template `yaml:"categories"`
}

type Store struct {
	byCategory map[model.Category][]Template
	fallback   Template

	prefix           string
	fallbackInterest string

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Store)

// WithRand makes template selection reproducible.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rng = r }
}

// WithSandboxPrefix overrides the catalog prefix. An empty prefix disables prefixing.
func WithSandboxPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func WithFallbackInterest(interest string) Option {
	return func(s *Store) { s.fallbackInterest = interest }
}

// Default builds a store from the embedded catalog.
func Default(opts ...Option) (*Store, error) {
	return Parse(defaultCatalog, opts...)
}

// LoadFile builds a store from a YAML catalog on disk.
func LoadFile(path string, opts ...Option) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	return Parse(b, opts...)
}

func Parse(data []byte, opts ...Option) (*Store, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	for cat, list := range f.Categories {
		seen := make(map[string]bool, len(list))
		for _, t := range list {
			if t.ID == "" {
				return nil, fmt.Errorf("template in category %q has no id", cat)
			}
			if seen[t.ID] {
				return nil, fmt.Errorf("duplicate template id %q in category %q", t.ID, cat)
			}
			seen[t.ID] = true
		}
	}

	s := &Store{
		byCategory: f.Categories,
		prefix:     f.SandboxPrefix,
		fallback: Template{
			ID:   DefaultTemplateID,
			Text: "Hello {{name}}! We help international nurses find rewarding careers in Germany. Would you like to learn more about our opportunities?",
		},
		fallbackInterest: "healthcare abroad",
		rng:              rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	if s.byCategory == nil {
		s.byCategory = map[model.Category][]Template{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Random picks uniformly among the templates of a category. Unknown or empty
// categories yield the built-in default template.
func (s *Store) Random(category model.Category) Template {
	list := s.byCategory[category]
	if len(list) == 0 {
		return s.fallback
	}

	s.mu.Lock()
	i := s.rng.IntN(len(list))
	s.mu.Unlock()

	return list[i]
}

func (s *Store) ForCategory(category model.Category) []Template {
	return slices.Clone(s.byCategory[category])
}

func (s *Store) All() map[model.Category][]Template {
	out := make(map[model.Category][]Template, len(s.byCategory))
	for cat, list := range s.byCategory {
		out[cat] = slices.Clone(list)
	}
	return out
}

// FirstID returns the id of the first template of a category, or "".
func (s *Store) FirstID(category model.Category) string {
	if list := s.byCategory[category]; len(list) > 0 {
		return list[0].ID
	}
	return ""
}

func (s *Store) SandboxPrefix() string {
	return s.prefix
}
