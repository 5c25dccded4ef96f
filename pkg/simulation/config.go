package simulation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParamType is the value type of a descriptor parameter
type ParamType string

const (
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
)

// Descriptor is a simulation.yaml file: what a simulation is called and
// which parameters Configure accepts
type Descriptor struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter is one Configure input. Min, Max and Options are optional.
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        ParamType   `yaml:"type"`
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"`
}

// Validate checks names are unique, types are known and every default
// passes its own parameter's checks
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%s: parameter without a name", d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%s: duplicate parameter %s", d.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Default == nil {
			if _, err := p.Parse(""); err != nil && isUnknownType(err) {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			continue
		}
		if err := p.Check(p.Default); err != nil {
			return fmt.Errorf("%s: default for %s: %w", d.Name, p.Name, err)
		}
	}
	return nil
}

// Parameter looks a parameter up by name
func (d Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Defaults maps every parameter that has a default to it
func (d Descriptor) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

type unknownTypeError struct{ t ParamType }

func (e unknownTypeError) Error() string { return fmt.Sprintf("unsupported parameter type: %s", e.t) }

func isUnknownType(err error) bool {
	_, ok := err.(unknownTypeError)
	return ok
}

// Parse converts raw text to the parameter's type
func (p Parameter) Parse(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch p.Type {
	case TypeInteger:
		return strconv.Atoi(raw)
	case TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case TypeString:
		return raw, nil
	case TypeBoolean:
		return strconv.ParseBool(raw)
	default:
		return nil, unknownTypeError{p.Type}
	}
}

// Check validates a typed value against the bounds and options
func (p Parameter) Check(value interface{}) error {
	switch p.Type {
	case TypeInteger, TypeFloat:
		v, ok := Number(value)
		if !ok {
			return fmt.Errorf("%v is not a number", value)
		}
		if p.Type == TypeInteger && v != float64(int64(v)) {
			return fmt.Errorf("%v is not a whole number", value)
		}
		if lo, ok := Number(p.Min); ok && v < lo {
			return fmt.Errorf("value must be at least %g", lo)
		}
		if hi, ok := Number(p.Max); ok && v > hi {
			return fmt.Errorf("value must be at most %g", hi)
		}
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%v is not a string", value)
		}
		if len(p.Options) > 0 && !slices.Contains(p.Options, s) {
			return fmt.Errorf("%q is not one of %s", s, strings.Join(p.Options, ", "))
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%v is not a boolean", value)
		}
	default:
		return unknownTypeError{p.Type}
	}
	return nil
}

// ParseAndCheck is Parse followed by Check
func (p Parameter) ParseAndCheck(raw string) (interface{}, error) {
	v, err := p.Parse(raw)
	if err != nil {
		if isUnknownType(err) {
			return nil, err
		}
		return nil, fmt.Errorf("not a valid %s", p.Type)
	}
	if err := p.Check(v); err != nil {
		return nil, err
	}
	return v, nil
}

// DefaultText renders the default for a text prompt, empty when unset
func (p Parameter) DefaultText() string {
	if p.Default == nil {
		return ""
	}
	return fmt.Sprint(p.Default)
}

// Number reads the numeric kinds yaml and JSON decoding produce
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
