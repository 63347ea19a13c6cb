package agent

import (
	"fmt"

	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/constants"
)

// Stage is one agent in the pipeline. Field names the JSON field whose value
// becomes the next stage's input.
type Stage struct {
	Definition assistant.AgentDefinition
	Field      string
}

// FunctionName returns the stage's declared function, or "" when it has none
func (s Stage) FunctionName() string {
	if s.Definition.Function == nil {
		return ""
	}
	return s.Definition.Function.Name
}

// Role names of the default pipeline
const (
	RoleRequirements = "Requirements Analysis Agent"
	RoleArchitecture = "Architecture Design Agent"
	RoleDiagram      = "Diagram Generation Agent"
	RoleDesigner     = "System Designer"
)

// DefaultStages is the three-agent pipeline: requirements, architecture, diagram
func DefaultStages() []Stage {
	return []Stage{
		fieldStage(RoleRequirements, "requirements",
			"You analyse feature requests for large-scale applications and turn them into precise "+
				"functional and non-functional requirements: expected load, data volume, latency and availability targets.",
			"The requirements document derived from the request"),
		fieldStage(RoleArchitecture, "architecture",
			"You are a system architect for services with more than 100,000 daily active users. "+
				"From the given requirements, design an architecture covering distributed processing, caching, "+
				"message queues, CDN, dedicated workers for key features, backups and logging.",
			"The architecture design, component by component"),
		fieldStage(RoleDiagram, "diagram",
			"You turn an architecture description into a single vertical Mermaid diagram "+
				"that shows every component and how data flows between them.",
			"Mermaid source for the diagram"),
	}
}

// SystemDesignerStages is the single-agent preset: one designer that answers
// with both a diagram and an explanation
func SystemDesignerStages() []Stage {
	return []Stage{{
		Definition: assistant.AgentDefinition{
			Role: RoleDesigner,
			Instructions: "You are a system architecture designer for applications with over 100,000 daily active users. " +
				"Designs include distributed processing, caching, message queues, CDN, separated service workers for key " +
				"functionality, and integrated backup and logging. Every answer includes a vertical Mermaid diagram. " +
				`Answer with a JSON object: {"diagram": "<mermaid>", "explain": "<explanation>"}.`,
			JSONResponse: true,
		},
		Field: "diagram",
	}}
}

func fieldStage(role, field, instructions, description string) Stage {
	return Stage{
		Definition: assistant.AgentDefinition{
			Role: role,
			Instructions: instructions + fmt.Sprintf(
				` Call %s with your result, then answer with the JSON object {"%s": "..."}.`,
				constants.DefaultFunctionName, field),
			Function: &assistant.FunctionSchema{
				Name:        constants.DefaultFunctionName,
				Description: fmt.Sprintf("Record the %s produced by the %s", field, role),
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						field: map[string]interface{}{
							"type":        "string",
							"description": description,
						},
					},
					"required": []string{field},
				},
			},
		},
		Field: field,
	}
}
