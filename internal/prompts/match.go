package prompts

import "strings"

// Match pairs a prompt with the trigger phrase that activated it.
type Match struct {
	Prompt  Prompt
	Trigger string
}

// Match reports the prompts whose trigger phrases occur in text.
// Matching is case-sensitive substring containment with no normalization and
// no word-boundary requirement. At most one Match is reported per prompt: the
// first matching trigger in the prompt's declared trigger order. Results
// follow prompt declaration order.
func (s *Set) Match(text string) []Match {
	var matches []Match
	for _, prompt := range s.prompts {
		for _, trigger := range prompt.Triggers {
			if strings.Contains(text, trigger) {
				matches = append(matches, Match{Prompt: prompt, Trigger: trigger})
				break
			}
		}
	}
	return matches
}
