package discord

import (
	"encoding/json"
	"strings"

	"sysdesign-assistant/backend/internal/markdown"
	"sysdesign-assistant/backend/internal/state"
)

// formatResult renders the final payload for chat: the diagram goes in a
// mermaid fence, followed by the explanation when the designer gave one
func formatResult(result *state.PipelineResult) string {
	payload := strings.TrimSpace(result.Final)
	if payload == "" {
		return "The pipeline finished without output."
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(markdown.StripFence(payload)), &fields); err != nil {
		return payload
	}

	diagram, _ := fields["diagram"].(string)
	explain, _ := fields["explain"].(string)
	if diagram == "" {
		return codeBlock(markdown.StripFence(payload), "json")
	}

	var b strings.Builder
	b.WriteString(codeBlock(markdown.StripFence(diagram), "mermaid"))
	if explain != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(explain))
	}
	return b.String()
}

func codeBlock(code, language string) string {
	return "```" + language + "\n" + strings.TrimSpace(code) + "\n```"
}
