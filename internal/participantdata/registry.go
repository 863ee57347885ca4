package participantdata

import (
	"fmt"
	"os"

	"github.com/cph-cachet/carp-portal/internal/models"

	"gopkg.in/yaml.v3"
)

// ElementKind is the kind of input element the platform declares for a data type.
type ElementKind string

const (
	ElementSelectOne ElementKind = "select_one"
	ElementText      ElementKind = "text"
)

// InputElement describes how the platform asks for a data type.
type InputElement struct {
	Kind      ElementKind `yaml:"type"`
	Prompt    string      `yaml:"prompt"`
	Options   []string    `yaml:"options,omitempty"`
	MaxLength int         `yaml:"max_length,omitempty"`
}

// InputTypeEntry binds an input element to a data type in the registry file.
type InputTypeEntry struct {
	Namespace string       `yaml:"namespace"`
	Name      string       `yaml:"name"`
	Element   InputElement `yaml:"element"`
}

// Registry looks up the input element declared for a data type.
type Registry struct {
	elements map[models.InputDataType]InputElement
}

// DefaultNamespace is the namespace of the data types CARP webservices declares.
const DefaultNamespace = "dk.carp.webservices.input"

// DefaultRegistry holds the input elements CARP declares out of the box.
func DefaultRegistry() *Registry {
	return NewRegistry([]InputTypeEntry{
		{
			Namespace: DefaultNamespace,
			Name:      "sex",
			Element: InputElement{
				Kind:    ElementSelectOne,
				Prompt:  "Sex",
				Options: []string{"male", "female", "intersex"},
			},
		},
	})
}

func NewRegistry(entries []InputTypeEntry) *Registry {
	r := &Registry{elements: make(map[models.InputDataType]InputElement, len(entries))}
	for _, e := range entries {
		r.elements[models.InputDataType{Namespace: e.Namespace, Name: e.Name}] = e.Element
	}
	return r
}

// Lookup returns the element declared for t.
func (r *Registry) Lookup(t models.InputDataType) (InputElement, bool) {
	if r == nil {
		return InputElement{}, false
	}
	e, ok := r.elements[t]
	return e, ok
}

// LoadRegistry reads an input type registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input type registry: %w", err)
	}

	var file struct {
		InputTypes []InputTypeEntry `yaml:"input_types"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input type registry YAML: %w", err)
	}

	for _, e := range file.InputTypes {
		switch e.Element.Kind {
		case ElementSelectOne:
			if len(e.Element.Options) == 0 {
				return nil, fmt.Errorf("input type %s.%s: select_one needs options", e.Namespace, e.Name)
			}
		case ElementText:
		default:
			return nil, fmt.Errorf("input type %s.%s: unsupported element type %q", e.Namespace, e.Name, e.Element.Kind)
		}
	}

	return NewRegistry(file.InputTypes), nil
}
