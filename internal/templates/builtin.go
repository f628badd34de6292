package templates

import (
	"time"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// Executor registry keys used by the built-in catalog.
const (
	ExecutorAgentSystem     = "agent_system"
	ExecutorSwarmController = "swarm_controller"
	ExecutorSparcManager    = "sparc_manager"
)

// RegisterBuiltins adds the built-in educational-content templates.
func RegisterBuiltins(r *Registry) error {
	for _, t := range Builtins() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Builtins returns the built-in template catalog.
func Builtins() []*core.WorkflowTemplate {
	return []*core.WorkflowTemplate{
		contentGeneration(),
		courseGeneration(),
		adaptiveAssessment(),
	}
}

// contentGeneration produces one lesson's worth of content: outline,
// drafted sections, quiz questions, and a final integrated document.
func contentGeneration() *core.WorkflowTemplate {
	return &core.WorkflowTemplate{
		Name:        "content_generation",
		Description: "Generate lesson content with an embedded quiz",
		Steps: []core.StepBlueprint{
			{
				Name:        "content_outline",
				Description: "Produce a structured outline for the requested topic",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "outline"},
				Timeout:     2 * time.Minute,
			},
			{
				Name:        "section_drafts",
				Description: "Draft each outline section in parallel worker agents",
				Executor:    ExecutorSwarmController,
				Parameters:  map[string]interface{}{"task": "draft_sections"},
				Timeout:     10 * time.Minute,
				DependsOn:   []string{"content_outline"},
			},
			{
				Name:        "quiz_questions",
				Description: "Generate quiz questions covering the drafted sections",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "quiz"},
				Timeout:     3 * time.Minute,
				DependsOn:   []string{"section_drafts"},
			},
			{
				Name:        "content_integration",
				Description: "Assemble sections and quiz into the final lesson document",
				Executor:    ExecutorSparcManager,
				Parameters:  map[string]interface{}{"task": "integrate"},
				Timeout:     5 * time.Minute,
				DependsOn:   []string{"section_drafts", "quiz_questions"},
			},
		},
	}
}

// courseGeneration builds a complete course: curriculum analysis, module
// plan, per-module content and assessments, video scripts, and the final
// integrated course package.
func courseGeneration() *core.WorkflowTemplate {
	return &core.WorkflowTemplate{
		Name:        "course_generation",
		Description: "Generate a complete course from curriculum requirements",
		Steps: []core.StepBlueprint{
			{
				Name:        "curriculum_analysis",
				Description: "Analyze curriculum standards and learning objectives",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "curriculum_analysis"},
				Timeout:     5 * time.Minute,
			},
			{
				Name:        "module_planning",
				Description: "Plan course modules against the analyzed objectives",
				Executor:    ExecutorSparcManager,
				Parameters:  map[string]interface{}{"task": "module_plan"},
				Timeout:     5 * time.Minute,
				DependsOn:   []string{"curriculum_analysis"},
			},
			{
				Name:        "lesson_content",
				Description: "Generate lesson content for every planned module",
				Executor:    ExecutorSwarmController,
				Parameters:  map[string]interface{}{"task": "lesson_content"},
				Timeout:     20 * time.Minute,
				MaxAttempts: 2,
				DependsOn:   []string{"module_planning"},
			},
			{
				Name:        "assessment_creation",
				Description: "Create per-module assessments",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "assessments"},
				Timeout:     10 * time.Minute,
				DependsOn:   []string{"module_planning"},
			},
			{
				Name:        "video_scripts",
				Description: "Write narration scripts for module videos",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "video_scripts"},
				Timeout:     10 * time.Minute,
				DependsOn:   []string{"lesson_content"},
			},
			{
				Name:        "final_course_integration",
				Description: "Assemble modules, assessments, and scripts into the course package",
				Executor:    ExecutorSparcManager,
				Parameters:  map[string]interface{}{"task": "integrate"},
				Timeout:     10 * time.Minute,
				DependsOn:   []string{"lesson_content", "assessment_creation", "video_scripts"},
			},
		},
	}
}

// adaptiveAssessment generates an assessment calibrated to a learner profile.
func adaptiveAssessment() *core.WorkflowTemplate {
	return &core.WorkflowTemplate{
		Name:        "adaptive_assessment",
		Description: "Generate an assessment adapted to a learner profile",
		Steps: []core.StepBlueprint{
			{
				Name:        "learner_profile_analysis",
				Description: "Analyze the learner's history and skill profile",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "profile_analysis"},
				Timeout:     3 * time.Minute,
			},
			{
				Name:        "item_generation",
				Description: "Generate a pool of candidate assessment items",
				Executor:    ExecutorSwarmController,
				Parameters:  map[string]interface{}{"task": "item_generation"},
				Timeout:     10 * time.Minute,
				DependsOn:   []string{"learner_profile_analysis"},
			},
			{
				Name:        "difficulty_calibration",
				Description: "Calibrate item difficulty against the learner profile",
				Executor:    ExecutorAgentSystem,
				Parameters:  map[string]interface{}{"task": "calibration"},
				Timeout:     5 * time.Minute,
				DependsOn:   []string{"item_generation"},
			},
			{
				Name:        "assessment_integration",
				Description: "Assemble calibrated items into the final assessment",
				Executor:    ExecutorSparcManager,
				Parameters:  map[string]interface{}{"task": "integrate"},
				Timeout:     5 * time.Minute,
				DependsOn:   []string{"difficulty_calibration"},
			},
		},
	}
}
