package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rook/internal/ports"
)

// actionEvent is one of the four outcomes the memory-update LLM call can
// assign to a retrieved fact.
type actionEvent string

const (
	actionAdd    actionEvent = "ADD"
	actionUpdate actionEvent = "UPDATE"
	actionDelete actionEvent = "DELETE"
	actionNone   actionEvent = "NONE"
)

// memoryAction is one parsed entry of the LLM's action list. ID is the
// opaque index (or, after mapping, the real memory ID) the action applies
// to; it's empty for ADD.
type memoryAction struct {
	ID        string
	Text      string
	Event     actionEvent
	OldMemory string
}

func userMemoryExtractionPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a Personal Information Organizer, specialized in accurately storing facts, user memories, and preferences. Extract relevant pieces of information from the conversation below and organize them into distinct, manageable facts.

Types of information to capture: personal preferences, important personal details (names, relationships, dates), plans and intentions, activity/service preferences, health and wellness preferences, professional details, and other notable facts the user shares.

Examples:
Input: Hi.
Output: {"facts": []}

Input: Hi, I am looking for a restaurant in San Francisco.
Output: {"facts": ["Looking for a restaurant in San Francisco"]}

Input: I recently got promoted to senior software engineer. I prefer working from home.
Output: {"facts": ["Promoted to senior software engineer", "Prefers working from home"]}

Rules:
- Today's date is %s.
- Base facts only on user messages, never on assistant or system messages.
- If nothing relevant is found, return an empty list.
- Respond with JSON only: {"facts": ["..."]}
`, now.Format("2006-01-02"))
}

func agentMemoryExtractionPrompt(now time.Time) string {
	return fmt.Sprintf(`You are an Assistant Information Organizer, specialized in accurately storing facts and characteristics about the AI assistant itself: stated preferences, demonstrated capabilities, personality traits, and approach to tasks.

Examples:
Input: [Assistant: "I'll break this down step by step to make it clear."]
Output: {"facts": ["Prefers explaining concepts in a step-by-step manner"]}

Input: [Assistant: "Hello!"]
Output: {"facts": []}

Rules:
- Today's date is %s.
- Base facts only on assistant messages, never on user or system messages.
- If nothing relevant is found, return an empty list.
- Respond with JSON only: {"facts": ["..."]}
`, now.Format("2006-01-02"))
}

const updateMemoryPrompt = `You are a smart memory manager which controls the memory of a system. You can perform four operations: ADD, UPDATE, DELETE, or NONE.

Compare each newly retrieved fact with the existing memory. For each new fact, decide:
- ADD: the fact is new information not present in the existing memory.
- UPDATE: the fact is already represented but is outdated or less accurate; update that entry.
- DELETE: do not delete unless the new fact explicitly asks to forget or retract an existing entry.
- NONE: the fact is already fully captured by an existing entry.

Return JSON only, in this shape:
{
    "memory": [
        {"id": "<ID>", "text": "<memory text>", "event": "ADD|UPDATE|DELETE|NONE", "old_memory": "<old text if UPDATE, else empty>"}
    ]
}`

// extractFacts runs the user- and (when scope.AgentID is set and assistant
// turns are present) agent-facing extraction prompts over messages and
// returns the union of extracted facts.
func extractFacts(ctx context.Context, llm ports.LLM, messages []Message, includeAgentFacts bool) ([]string, error) {
	now := time.Now().UTC()
	var facts []string

	var userTurns []string
	var agentTurns []string
	for _, m := range messages {
		switch m.Role {
		case "user":
			userTurns = append(userTurns, "User: "+m.Content)
		case "assistant":
			agentTurns = append(agentTurns, "Assistant: "+m.Content)
		}
	}

	if len(userTurns) > 0 {
		got, err := runExtractionPrompt(ctx, llm, userMemoryExtractionPrompt(now), strings.Join(userTurns, "\n"))
		if err != nil {
			return nil, err
		}
		facts = append(facts, got...)
	}

	if includeAgentFacts && len(agentTurns) > 0 {
		got, err := runExtractionPrompt(ctx, llm, agentMemoryExtractionPrompt(now), strings.Join(agentTurns, "\n"))
		if err != nil {
			return nil, err
		}
		facts = append(facts, got...)
	}

	return facts, nil
}

func runExtractionPrompt(ctx context.Context, llm ports.LLM, systemPrompt, conversation string) ([]string, error) {
	result, err := llm.Generate(ctx, []ports.GenerateMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: conversation},
	}, ports.GenerateOptions{ResponseFormat: ports.ResponseFormat{Kind: "json"}})
	if err != nil {
		return nil, fmt.Errorf("facade: fact extraction: %w", err)
	}
	return parseFacts(result.Content)
}

func parseFacts(content string) ([]string, error) {
	var parsed struct {
		Facts []string `json:"facts"`
	}
	if err := json.Unmarshal([]byte(normalizeJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("facade: parse facts response: %w", err)
	}
	return parsed.Facts, nil
}

// indexedMemory pairs an opaque index (what the LLM sees) with the real
// memory ID it maps back to, preventing the model from hallucinating IDs.
type indexedMemory struct {
	RealID string
	Data   string
}

func buildUpdateMemoryPrompt(existing []indexedMemory, newFacts []string) string {
	var memoryContext string
	if len(existing) == 0 {
		memoryContext = "Current memory is empty."
	} else {
		lines := make([]string, len(existing))
		for i, m := range existing {
			lines[i] = fmt.Sprintf(`{"id": %q, "text": %q}`, strconv.Itoa(i), m.Data)
		}
		memoryContext = "Current memory:\n[\n" + strings.Join(lines, ",\n") + "\n]"
	}

	factsJSON, _ := json.Marshal(newFacts)
	return fmt.Sprintf("%s\n\n%s\n\nNew retrieved facts:\n```\n%s\n```", updateMemoryPrompt, memoryContext, string(factsJSON))
}

// getMemoryUpdateActions asks the LLM to decide ADD/UPDATE/DELETE/NONE for
// each new fact against existing (opaquely indexed), then maps the
// resulting indices back to real memory IDs. Actions the LLM returns for an
// index outside existing's range are dropped rather than erroring, since a
// hallucinated ID is exactly what the opaque-index scheme guards against.
func getMemoryUpdateActions(ctx context.Context, llm ports.LLM, existing []indexedMemory, newFacts []string) ([]memoryAction, error) {
	prompt := buildUpdateMemoryPrompt(existing, newFacts)
	result, err := llm.Generate(ctx, []ports.GenerateMessage{
		{Role: "user", Content: prompt},
	}, ports.GenerateOptions{ResponseFormat: ports.ResponseFormat{Kind: "json"}})
	if err != nil {
		return nil, fmt.Errorf("facade: memory update actions: %w", err)
	}

	var parsed struct {
		Memory []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			Event     string `json:"event"`
			OldMemory string `json:"old_memory"`
		} `json:"memory"`
	}
	if err := json.Unmarshal([]byte(normalizeJSON(result.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("facade: parse memory update actions: %w", err)
	}

	actions := make([]memoryAction, 0, len(parsed.Memory))
	for _, a := range parsed.Memory {
		action := memoryAction{
			ID:        a.ID,
			Text:      strings.TrimSpace(a.Text),
			Event:     actionEvent(strings.ToUpper(strings.TrimSpace(a.Event))),
			OldMemory: a.OldMemory,
		}
		if action.Event == actionAdd || action.Text == "" {
			actions = append(actions, action)
			continue
		}
		idx, err := strconv.Atoi(action.ID)
		if err != nil || idx < 0 || idx >= len(existing) {
			continue
		}
		action.ID = existing[idx].RealID
		actions = append(actions, action)
	}
	return actions, nil
}
