package chainz

import (
	"fmt"
	"slices"
	"strings"
)

// PromptStep renders a "{name}" template against a Binding.
// Rendering is pure: the same template and binding always produce the same text.
// Literal braces are written as "{{" and "}}".
type PromptStep struct {
	template  string
	segments  []segment
	variables []string
}

type segment struct {
	text     string
	variable bool
}

// NewPromptStep parses template and declares every placeholder it contains as required.
func NewPromptStep(template string) (*PromptStep, error) {
	return NewPromptStepWithVariables(template)
}

// NewPromptStepWithVariables parses template and declares the given variables as required
// in addition to the placeholders found in the template.
func NewPromptStepWithVariables(template string, variables ...string) (*PromptStep, error) {
	segments, placeholders, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}

	declared := make([]string, 0, len(placeholders)+len(variables))
	for _, v := range variables {
		if !validVariableName(v) {
			return nil, fmt.Errorf("invalid variable name %q", v)
		}
		if !slices.Contains(declared, v) {
			declared = append(declared, v)
		}
	}
	for _, v := range placeholders {
		if !slices.Contains(declared, v) {
			declared = append(declared, v)
		}
	}

	return &PromptStep{
		template:  template,
		segments:  segments,
		variables: declared,
	}, nil
}

// MustPromptStep is like NewPromptStep but panics on a malformed template.
// Intended for package-level templates known at compile time.
func MustPromptStep(template string) *PromptStep {
	step, err := NewPromptStep(template)
	if err != nil {
		panic(err)
	}
	return step
}

// Template returns the raw template string.
func (p *PromptStep) Template() string {
	return p.template
}

// Variables returns the declared variable names in declaration order.
func (p *PromptStep) Variables() []string {
	return slices.Clone(p.variables)
}

// Missing returns the sorted declared variables absent from binding.
func (p *PromptStep) Missing(binding Binding) []string {
	var missing []string
	for _, v := range p.variables {
		if _, ok := binding[v]; !ok {
			missing = append(missing, v)
		}
	}
	slices.Sort(missing)
	return missing
}

// Render substitutes binding values into the template.
// It fails with *MissingVariableError when any declared variable is absent.
func (p *PromptStep) Render(binding Binding) (string, error) {
	if missing := p.Missing(binding); len(missing) > 0 {
		return "", &MissingVariableError{Variables: missing}
	}

	var b strings.Builder
	for _, s := range p.segments {
		if s.variable {
			b.WriteString(binding[s.text])
			continue
		}
		b.WriteString(s.text)
	}
	return b.String(), nil
}

// parseTemplate splits a template into literal and variable segments.
func parseTemplate(template string) ([]segment, []string, error) {
	var segments []segment
	var placeholders []string
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				literal.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end == -1 {
				return nil, nil, fmt.Errorf("unclosed placeholder at offset %d", i)
			}
			name := template[i+1 : i+1+end]
			if !validVariableName(name) {
				return nil, nil, fmt.Errorf("invalid placeholder %q at offset %d", name, i)
			}
			flush()
			segments = append(segments, segment{text: name, variable: true})
			if !slices.Contains(placeholders, name) {
				placeholders = append(placeholders, name)
			}
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				literal.WriteByte('}')
				i++
				continue
			}
			return nil, nil, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			literal.WriteByte(c)
		}
	}
	flush()

	return segments, placeholders, nil
}

func validVariableName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
