package prompts

import (
	"testing"
)

const rulesDoc = `
prompts:
  prompt-1-name:
    triggers:
      - prompt 1 trigger phrase 1
      - prompt 1 trigger phrase 2
    response: prompt 1 response
  prompt-2-name:
    triggers:
      - prompt 2 trigger phrase 1
      - prompt 2 trigger phrase 2
    response: prompt 2 response
`

func mustParse(t *testing.T, doc string) *Set {
	t.Helper()
	set, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return set
}

func TestParsePreservesDeclarationOrder(t *testing.T) {
	set := mustParse(t, rulesDoc)
	got := set.Prompts()
	if len(got) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(got))
	}
	if got[0].Name != "prompt-1-name" || got[1].Name != "prompt-2-name" {
		t.Errorf("prompt order = [%s, %s]", got[0].Name, got[1].Name)
	}
	if got[0].Response != "prompt 1 response" {
		t.Errorf("response = %q", got[0].Response)
	}
	if len(got[0].Triggers) != 2 {
		t.Errorf("triggers = %v", got[0].Triggers)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "empty document",
			doc:  "",
		},
		{
			name: "missing prompts mapping",
			doc:  "other: thing\n",
		},
		{
			name: "empty prompts mapping",
			doc:  "prompts: {}\n",
		},
		{
			name: "no triggers",
			doc: `
prompts:
  nameless:
    triggers: []
    response: something
`,
		},
		{
			name: "empty trigger phrase",
			doc: `
prompts:
  nameless:
    triggers:
      - ""
    response: something
`,
		},
		{
			name: "missing response",
			doc: `
prompts:
  nameless:
    triggers:
      - a phrase
`,
		},
		{
			name: "blank response",
			doc: `
prompts:
  nameless:
    triggers:
      - a phrase
    response: "   "
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestMatchSubstring(t *testing.T) {
	set := mustParse(t, rulesDoc)

	tests := []struct {
		name        string
		text        string
		wantPrompts []string
		wantTrigger string
	}{
		{
			name: "no trigger",
			text: "unremarkable message",
		},
		{
			name:        "trigger embedded in message",
			text:        "message containing prompt 1 trigger phrase 1",
			wantPrompts: []string{"prompt-1-name"},
			wantTrigger: "prompt 1 trigger phrase 1",
		},
		{
			name:        "second trigger of a prompt",
			text:        "see prompt 1 trigger phrase 2 here",
			wantPrompts: []string{"prompt-1-name"},
			wantTrigger: "prompt 1 trigger phrase 2",
		},
		{
			name:        "case sensitive",
			text:        "PROMPT 1 TRIGGER PHRASE 1",
			wantPrompts: nil,
		},
		{
			name:        "two prompts in one message",
			text:        "prompt 2 trigger phrase 1 and prompt 1 trigger phrase 1",
			wantPrompts: []string{"prompt-1-name", "prompt-2-name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := set.Match(tt.text)
			if len(matches) != len(tt.wantPrompts) {
				t.Fatalf("got %d matches, want %d", len(matches), len(tt.wantPrompts))
			}
			for i, want := range tt.wantPrompts {
				if matches[i].Prompt.Name != want {
					t.Errorf("match[%d] = %s, want %s", i, matches[i].Prompt.Name, want)
				}
			}
			if tt.wantTrigger != "" && matches[0].Trigger != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", matches[0].Trigger, tt.wantTrigger)
			}
		})
	}
}

func TestMatchFirstTriggerWinsPerPrompt(t *testing.T) {
	set := mustParse(t, rulesDoc)

	// Both triggers of prompt 1 occur; declaration order decides the winner.
	matches := set.Match("prompt 1 trigger phrase 2 then prompt 1 trigger phrase 1")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Trigger != "prompt 1 trigger phrase 1" {
		t.Errorf("trigger = %q, want first declared trigger", matches[0].Trigger)
	}
}

func TestMatchOrderFollowsDeclarationNotMessage(t *testing.T) {
	set := mustParse(t, rulesDoc)

	matches := set.Match("prompt 2 trigger phrase 2 before prompt 1 trigger phrase 1")
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Prompt.Name != "prompt-1-name" || matches[1].Prompt.Name != "prompt-2-name" {
		t.Errorf("match order = [%s, %s], want declaration order",
			matches[0].Prompt.Name, matches[1].Prompt.Name)
	}
}

func TestParseDuplicateName(t *testing.T) {
	doc := `
prompts:
  same-name:
    triggers: [x]
    response: one
  same-name:
    triggers: [y]
    response: two
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("expected duplicate name error")
	}
}
