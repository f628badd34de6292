package api

import (
	"net/http"
)

// templateSummary is one entry of the GET /templates response.
type templateSummary struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Steps       []templateStepDoc `json:"steps"`
}

type templateStepDoc struct {
	Name      string   `json:"name"`
	Executor  string   `json:"executor"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list := s.coordinator.Templates().List()
	out := make([]templateSummary, 0, len(list))
	for _, tmpl := range list {
		summary := templateSummary{
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Steps:       make([]templateStepDoc, 0, len(tmpl.Steps)),
		}
		for _, bp := range tmpl.Steps {
			summary.Steps = append(summary.Steps, templateStepDoc{
				Name:      bp.Name,
				Executor:  bp.Executor,
				DependsOn: bp.DependsOn,
			})
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": out})
}
