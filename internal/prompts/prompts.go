// Package prompts loads the prompt rule set and matches trigger phrases
// against message text.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompt is a named rule: any of its trigger phrases occurring in a message
// activates the prompt's canned response.
type Prompt struct {
	Name     string
	Triggers []string
	Response string
}

// Set is the immutable, ordered collection of prompts loaded at startup.
// Prompts keep the order they were declared in the rules file.
type Set struct {
	prompts []Prompt
}

type promptDoc struct {
	Triggers []string `yaml:"triggers"`
	Response string   `yaml:"response"`
}

// Load reads and parses the YAML rules file at path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a rules document of the form:
//
//	prompts:
//	  <name>:
//	    triggers: [<phrase>, ...]
//	    response: <text>
//
// Prompt order follows document order. Parse fails on a missing or empty
// prompts mapping, a duplicate prompt name, an empty trigger list, a blank
// trigger phrase, or a blank response.
func Parse(data []byte) (*Set, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("prompts document is empty")
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("prompts document must be a mapping")
	}

	var promptsNode *yaml.Node
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "prompts" {
			promptsNode = mapping.Content[i+1]
			break
		}
	}
	if promptsNode == nil || promptsNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("prompts mapping is missing")
	}

	set := &Set{}
	seen := map[string]bool{}
	for i := 0; i+1 < len(promptsNode.Content); i += 2 {
		name := promptsNode.Content[i].Value
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("prompt name must not be empty")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate prompt name: %s", name)
		}
		seen[name] = true

		var doc promptDoc
		if err := promptsNode.Content[i+1].Decode(&doc); err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		if len(doc.Triggers) == 0 {
			return nil, fmt.Errorf("prompt %s has no triggers", name)
		}
		for _, trigger := range doc.Triggers {
			if trigger == "" {
				return nil, fmt.Errorf("prompt %s has an empty trigger phrase", name)
			}
		}
		if strings.TrimSpace(doc.Response) == "" {
			return nil, fmt.Errorf("prompt %s has no response", name)
		}

		set.prompts = append(set.prompts, Prompt{
			Name:     name,
			Triggers: doc.Triggers,
			Response: doc.Response,
		})
	}
	if len(set.prompts) == 0 {
		return nil, fmt.Errorf("prompts mapping is empty")
	}
	return set, nil
}

// Prompts returns the prompts in declaration order.
func (s *Set) Prompts() []Prompt {
	return s.prompts
}

// Len returns the number of prompts in the set.
func (s *Set) Len() int {
	return len(s.prompts)
}
