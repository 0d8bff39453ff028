package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/pipedag/types"
)

// DAGDefinition represents a serializable pipeline definition
type DAGDefinition struct {
	// Name is the pipeline name
	Name string `json:"name" yaml:"name"`
	// Description describes the pipeline
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Parallelism is forwarded unchanged to the built graph
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
	// Steps are registered in order, so dependencies must come first
	Steps []StepDefinition `json:"steps" yaml:"steps"`
}

// StepDefinition represents a serializable step
type StepDefinition struct {
	// Name is the unique step name
	Name string `json:"name" yaml:"name"`
	// Uses names the payload, resolved by a PayloadResolver
	Uses string `json:"uses,omitempty" yaml:"uses,omitempty"`
	// DependsOn is either a list of step names or a map of step name to label
	DependsOn any `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Metadata stores additional step information
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// PayloadResolver produces the payload attached to a compiled step.
type PayloadResolver interface {
	Resolve(step StepDefinition) (any, error)
}

// PayloadResolverFunc adapts a function to PayloadResolver.
type PayloadResolverFunc func(step StepDefinition) (any, error)

// Resolve implements PayloadResolver.
func (f PayloadResolverFunc) Resolve(step StepDefinition) (any, error) {
	return f(step)
}

// StaticPayloads resolves payloads by the step's Uses key.
type StaticPayloads map[string]any

// Resolve implements PayloadResolver.
func (p StaticPayloads) Resolve(step StepDefinition) (any, error) {
	payload, ok := p[step.Uses]
	if !ok {
		return nil, types.NewError(types.ErrUnknownPayload, fmt.Sprintf("no payload registered for %q", step.Uses)).
			WithStep(step.Name)
	}
	return payload, nil
}

// Compile replays the definition through a new DAGBuilder. Without a
// resolver each step's payload is its StepDefinition. Step names are checked
// before payloads are resolved. Builder errors are returned as they are.
func Compile(def *DAGDefinition, resolver PayloadResolver, opts ...BuilderOption) (*DAGBuilder, error) {
	if def == nil {
		return nil, types.NewError(types.ErrInvalidDefinition, "definition is nil")
	}

	base := []BuilderOption{WithName(def.Name), WithParallelism(def.Parallelism)}
	b := NewDAGBuilder(append(base, opts...)...)

	for _, step := range def.Steps {
		if err := b.validateName(step.Name); err != nil {
			return nil, b.reject(step.Name, err)
		}
		var payload any = step
		if resolver != nil {
			p, err := resolver.Resolve(step)
			if err != nil {
				return nil, err
			}
			payload = p
		}
		if err := b.AddStep(step.Name, payload, step.DependsOn); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ValidateDAGDefinition validates a loaded DAGDefinition by compiling and
// building it.
func ValidateDAGDefinition(def *DAGDefinition) error {
	if def == nil {
		return types.NewError(types.ErrInvalidDefinition, "definition is nil")
	}
	if strings.TrimSpace(def.Name) == "" {
		return types.NewError(types.ErrInvalidDefinition, "pipeline name is required")
	}
	if def.Parallelism < 0 {
		return types.NewError(types.ErrInvalidDefinition, "parallelism must not be negative")
	}
	b, err := Compile(def, nil)
	if err != nil {
		return err
	}
	_, err = b.Build()
	return err
}

// ToDAGDefinition converts a frozen graph back into a definition. Uses is
// recovered when the payload is a StepDefinition or a string; dependencies
// without labels are written in list form.
func (g *Graph) ToDAGDefinition() *DAGDefinition {
	def := &DAGDefinition{
		Name:        g.name,
		Parallelism: g.parallelism,
		Steps:       make([]StepDefinition, 0, g.n),
	}

	for _, step := range g.Steps() {
		sd := StepDefinition{Name: step.Name}
		switch p := step.Payload.(type) {
		case StepDefinition:
			sd.Uses = p.Uses
			sd.Metadata = p.Metadata
		case string:
			sd.Uses = p
		}

		deps := g.Dependencies(step.Name)
		if len(deps) > 0 {
			if hasLabels(step.Deps) {
				sd.DependsOn = map[string]any(step.Deps)
			} else {
				sd.DependsOn = deps
			}
		}
		def.Steps = append(def.Steps, sd)
	}
	return def
}

func hasLabels(deps Deps) bool {
	for _, label := range deps {
		if label != nil {
			return true
		}
	}
	return false
}

// ToJSON converts a DAGDefinition to JSON string
func (d *DAGDefinition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML converts a DAGDefinition to YAML string
func (d *DAGDefinition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}

// FromJSON creates a DAGDefinition from JSON string
func FromJSON(jsonStr string) (*DAGDefinition, error) {
	var def DAGDefinition
	if err := json.Unmarshal([]byte(jsonStr), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal from JSON: %w", err)
	}

	if err := ValidateDAGDefinition(&def); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &def, nil
}

// FromYAML creates a DAGDefinition from YAML string
func FromYAML(yamlStr string) (*DAGDefinition, error) {
	var def DAGDefinition
	if err := yaml.Unmarshal([]byte(yamlStr), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	if err := ValidateDAGDefinition(&def); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &def, nil
}

// LoadFromFile loads a DAGDefinition, choosing the decoder by extension.
// Files without a .json extension are read as YAML.
func LoadFromFile(filename string) (*DAGDefinition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return FromJSON(string(data))
	}
	return FromYAML(string(data))
}

// SaveToFile writes a DAGDefinition, choosing the encoder by extension.
func (d *DAGDefinition) SaveToFile(filename string) error {
	var (
		out string
		err error
	)
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		out, err = d.ToJSON()
	} else {
		out, err = d.ToYAML()
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
