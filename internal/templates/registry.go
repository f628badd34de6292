// Package templates holds the workflow template catalog: the built-in
// educational-content templates, a YAML directory loader, and an optional
// hot-reload watcher.
package templates

import (
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// maxSuggestions bounds the "did you mean" list on unknown template errors.
const maxSuggestions = 3

// Registry holds the registered workflow templates. Registration validates
// the template's step graph so a bad catalog entry fails at startup rather
// than stalling a workflow later.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*core.WorkflowTemplate
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]*core.WorkflowTemplate),
	}
}

// Register validates and adds a template. Registering an existing name
// replaces the previous template, which is how the watcher applies reloads.
func (r *Registry) Register(t *core.WorkflowTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
	return nil
}

// Get returns a template by name. Unknown names produce an error carrying
// fuzzy-matched name suggestions.
func (r *Registry) Get(name string) (*core.WorkflowTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, core.ErrUnknownTemplate(name, r.suggestLocked(name))
	}
	return t, nil
}

// List returns all templates sorted by name.
func (r *Registry) List() []*core.WorkflowTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.WorkflowTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered template names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

func (r *Registry) suggestLocked(name string) []string {
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)

	matches := fuzzy.Find(name, names)
	suggestions := make([]string, 0, maxSuggestions)
	for i, m := range matches {
		if i == maxSuggestions {
			break
		}
		suggestions = append(suggestions, m.Str)
	}
	return suggestions
}
