package templates

import (
	"strings"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

// CustomTemplateID marks messages whose body was supplied by an operator
// instead of the catalog.
const CustomTemplateID = "custom_message"

const (
	namePlaceholder     = "{{name}}"
	interestPlaceholder = "{{interest}}"
)

// Message is a fully rendered outbound body plus the template it came from.
type Message struct {
	TemplateID string
	Body       string
}

// Personalize fills the {{name}} and {{interest}} placeholders. An empty interest
// is replaced by fallbackInterest.
func Personalize(text, name, interest, fallbackInterest string) string {
	if strings.TrimSpace(interest) == "" {
		interest = fallbackInterest
	}
	r := strings.NewReplacer(
		namePlaceholder, name,
		interestPlaceholder, interest,
	)
	return r.Replace(text)
}

// ApplyPrefix prepends prefix unless text already starts with it, so applying it
// twice changes nothing.
func ApplyPrefix(prefix, text string) string {
	if prefix == "" || strings.HasPrefix(text, prefix) {
		return text
	}
	return prefix + " " + text
}

// Compose picks a random template for category and renders it for the lead.
func (s *Store) Compose(category model.Category, lead model.Lead) Message {
	return s.Render(s.Random(category), lead)
}

// Render personalizes t for the lead and applies the sandbox prefix. A prefix
// carried by the template wins over the store-wide one.
func (s *Store) Render(t Template, lead model.Lead) Message {
	prefix := s.prefix
	if t.SandboxPrefix != "" {
		prefix = t.SandboxPrefix
	}
	body := Personalize(t.Text, lead.Name, lead.Interest, s.fallbackInterest)
	return Message{TemplateID: t.ID, Body: ApplyPrefix(prefix, body)}
}

// Custom wraps an operator supplied body. Placeholders are still filled in and
// the sandbox prefix still applies.
func (s *Store) Custom(text string, lead model.Lead) Message {
	return s.Render(Template{ID: CustomTemplateID, Text: text}, lead)
}
