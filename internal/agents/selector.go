package agents

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

type rule struct {
	keywords []string
	response string
}

type ruleSet struct {
	rules    []rule
	fallback string
}

// Selector picks a canned reply for a message by ordered keyword matching.
// It holds no mutable state and is safe for concurrent use.
type Selector struct {
	sets       map[Type]ruleSet
	defaultMsg string
}

//go:embed templates.yaml
var templatesYAML []byte

var defaultSelector = mustLoadSelector(templatesYAML)

func mustLoadSelector(data []byte) *Selector {
	s, err := LoadSelector(data)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded agent templates: %v", err))
	}
	return s
}

func LoadSelector(data []byte) (*Selector, error) {
	raw := struct {
		Default string `yaml:"default"`
		Agents  []struct {
			Type  string `yaml:"type"`
			Rules []struct {
				Keywords []string `yaml:"keywords"`
				Response string   `yaml:"response"`
			} `yaml:"rules"`
			Fallback string `yaml:"fallback"`
		} `yaml:"agents"`
	}{}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing agent templates: %w", err)
	}

	if raw.Default == "" {
		return nil, fmt.Errorf("agent templates must define a default response")
	}

	s := &Selector{sets: make(map[Type]ruleSet, len(raw.Agents)), defaultMsg: raw.Default}
	for _, agent := range raw.Agents {
		if agent.Fallback == "" {
			return nil, fmt.Errorf("agent '%s' has no fallback response", agent.Type)
		}
		set := ruleSet{fallback: agent.Fallback}
		for i, r := range agent.Rules {
			if len(r.Keywords) == 0 || r.Response == "" {
				return nil, fmt.Errorf("agent '%s' rule %d needs keywords and a response", agent.Type, i)
			}
			keywords := make([]string, 0, len(r.Keywords))
			for _, k := range r.Keywords {
				keywords = append(keywords, strings.ToLower(k))
			}
			set.rules = append(set.rules, rule{keywords: keywords, response: r.Response})
		}
		s.sets[Type(agent.Type)] = set
	}

	return s, nil
}

// Select returns the reply for text under the given agent type. It never
// fails: unknown agent types get the global default.
func (s *Selector) Select(text string, agentType Type) string {
	set, ok := s.sets[agentType]
	if !ok {
		return s.defaultMsg
	}

	lower := strings.ToLower(text)
	for _, r := range set.rules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.response
			}
		}
	}

	return set.fallback
}

// Select uses the built-in template table.
func Select(text string, agentType Type) string {
	return defaultSelector.Select(text, agentType)
}
