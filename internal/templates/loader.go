package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// templateFile is the YAML representation of a workflow template.
type templateFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []stepFile     `yaml:"steps"`
	Defaults    *defaultsBlock `yaml:"defaults,omitempty"`
}

type stepFile struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Executor    string                 `yaml:"executor"`
	Parameters  map[string]interface{} `yaml:"parameters,omitempty"`
	Timeout     duration               `yaml:"timeout,omitempty"`
	MaxAttempts int                    `yaml:"max_attempts,omitempty"`
	DependsOn   []string               `yaml:"depends_on,omitempty"`
}

type defaultsBlock struct {
	Timeout     duration `yaml:"timeout,omitempty"`
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
}

// duration decodes Go duration strings ("90s", "10m") from YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}

// ParseFile decodes a single YAML template definition.
func ParseFile(data []byte) (*core.WorkflowTemplate, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	t := &core.WorkflowTemplate{
		Name:        tf.Name,
		Description: tf.Description,
		Steps:       make([]core.StepBlueprint, 0, len(tf.Steps)),
	}
	for _, sf := range tf.Steps {
		bp := core.StepBlueprint{
			Name:        sf.Name,
			Description: sf.Description,
			Executor:    sf.Executor,
			Parameters:  sf.Parameters,
			Timeout:     time.Duration(sf.Timeout),
			MaxAttempts: sf.MaxAttempts,
			DependsOn:   sf.DependsOn,
		}
		if tf.Defaults != nil {
			if bp.Timeout == 0 {
				bp.Timeout = time.Duration(tf.Defaults.Timeout)
			}
			if bp.MaxAttempts == 0 {
				bp.MaxAttempts = tf.Defaults.MaxAttempts
			}
		}
		t.Steps = append(t.Steps, bp)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadDir registers every .yaml/.yml template file found in dir.
// Returns the number of templates registered.
func LoadDir(r *Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading template directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("reading %s: %w", path, err)
		}
		t, err := ParseFile(data)
		if err != nil {
			return loaded, fmt.Errorf("template %s: %w", path, err)
		}
		if err := r.Register(t); err != nil {
			return loaded, fmt.Errorf("template %s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}

func isTemplateFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
