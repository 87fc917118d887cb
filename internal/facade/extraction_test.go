package facade

import (
	"context"
	"strings"
	"testing"
)

func TestParseFacts_PlainJSON(t *testing.T) {
	facts, err := parseFacts(`{"facts": ["a", "b"]}`)
	if err != nil {
		t.Fatalf("parseFacts: %v", err)
	}
	if len(facts) != 2 || facts[0] != "a" || facts[1] != "b" {
		t.Errorf("facts = %v", facts)
	}
}

func TestParseFacts_FencedWithTrailingComma(t *testing.T) {
	facts, err := parseFacts("```json\n{\"facts\": [\"a\", \"b\",]}\n```")
	if err != nil {
		t.Fatalf("parseFacts: %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("facts = %v, want 2 entries", facts)
	}
}

func TestParseFacts_EmptyList(t *testing.T) {
	facts, err := parseFacts(`{"facts": []}`)
	if err != nil {
		t.Fatalf("parseFacts: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("facts = %v, want empty", facts)
	}
}

func TestBuildUpdateMemoryPrompt_EmptyExisting(t *testing.T) {
	prompt := buildUpdateMemoryPrompt(nil, []string{"new fact"})
	if !strings.Contains(prompt, "Current memory is empty.") {
		t.Errorf("prompt missing empty-memory marker: %s", prompt)
	}
	if !strings.Contains(prompt, "new fact") {
		t.Errorf("prompt missing new fact: %s", prompt)
	}
}

func TestBuildUpdateMemoryPrompt_WithExisting(t *testing.T) {
	existing := []indexedMemory{{RealID: "m1", Data: "likes tea"}}
	prompt := buildUpdateMemoryPrompt(existing, []string{"likes coffee"})
	if !strings.Contains(prompt, `"id": "0"`) {
		t.Errorf("prompt should use opaque index 0, not real ID: %s", prompt)
	}
	if strings.Contains(prompt, "m1") {
		t.Errorf("prompt leaked real memory ID: %s", prompt)
	}
}

func TestGetMemoryUpdateActions_MapsIndexToRealID(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memory": [{"id": "0", "text": "likes coffee", "event": "UPDATE", "old_memory": "likes tea"}]}`,
	}}
	existing := []indexedMemory{{RealID: "real-m1", Data: "likes tea"}}

	actions, err := getMemoryUpdateActions(context.Background(), llm, existing, []string{"likes coffee"})
	if err != nil {
		t.Fatalf("getMemoryUpdateActions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %v", actions)
	}
	if actions[0].ID != "real-m1" {
		t.Errorf("ID = %q, want mapped to real-m1", actions[0].ID)
	}
	if actions[0].Event != actionUpdate {
		t.Errorf("event = %q", actions[0].Event)
	}
}

func TestGetMemoryUpdateActions_DropsOutOfRangeIndex(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memory": [{"id": "5", "text": "hallucinated", "event": "UPDATE", "old_memory": ""}]}`,
	}}
	existing := []indexedMemory{{RealID: "real-m1", Data: "likes tea"}}

	actions, err := getMemoryUpdateActions(context.Background(), llm, existing, []string{"something"})
	if err != nil {
		t.Fatalf("getMemoryUpdateActions: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("actions = %v, want dropped out-of-range action", actions)
	}
}

func TestGetMemoryUpdateActions_AddNeedsNoIndex(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memory": [{"id": "", "text": "brand new fact", "event": "ADD", "old_memory": ""}]}`,
	}}

	actions, err := getMemoryUpdateActions(context.Background(), llm, nil, []string{"brand new fact"})
	if err != nil {
		t.Fatalf("getMemoryUpdateActions: %v", err)
	}
	if len(actions) != 1 || actions[0].Event != actionAdd {
		t.Fatalf("actions = %v", actions)
	}
}
