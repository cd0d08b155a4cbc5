package providers

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/pkg/models"
)

// toolCallPattern matches the fallback tool-call grammar emitted by models
// prompted to emulate tool calling inline rather than through a native
// function-calling API:
//
//	<tool_call name="search">{"query":"weather"}</tool_call>
var toolCallPattern = regexp.MustCompile(`(?s)<tool_call\s+name="([^"]+)">(.*?)</tool_call>`)

// ToolEmulationDirective is appended to the system prompt for providers
// that report SupportsTools()==false, teaching the model the fallback
// tool-call grammar so the agent loop can still drive tool use.
func ToolEmulationDirective(tools []agent.Tool) string {
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("You have access to tools but must invoke them using this exact format:\n")
	b.WriteString(`<tool_call name="TOOL_NAME">{"arg": "value"}</tool_call>` + "\n")
	b.WriteString("Emit exactly one tool_call block per tool invocation, with no other text inside it. ")
	b.WriteString("Wait for the tool result before continuing.\n\nAvailable tools:\n")
	for _, t := range tools {
		b.WriteString("- " + t.Name() + ": " + t.Description() + "\n")
	}
	return b.String()
}

// ExtractEmulatedToolCalls scans model output text for the fallback
// tool-call grammar and returns any matches found, along with the text with
// the matched blocks removed.
func ExtractEmulatedToolCalls(text string) (calls []models.ToolCall, remaining string) {
	matches := toolCallPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		name := text[m[2]:m[3]]
		argsRaw := strings.TrimSpace(text[m[4]:m[5]])

		var input json.RawMessage
		if argsRaw == "" {
			input = json.RawMessage("{}")
		} else if json.Valid([]byte(argsRaw)) {
			input = json.RawMessage(argsRaw)
		} else {
			input = json.RawMessage("{}")
		}

		calls = append(calls, models.ToolCall{
			ID:    uuid.NewString(),
			Name:  strings.TrimSpace(name),
			Input: input,
		})
		last = m[1]
	}
	b.WriteString(text[last:])
	return calls, b.String()
}
