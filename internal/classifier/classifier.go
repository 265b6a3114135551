// Package classifier infers topic and capacity labels from message text
// using ordered keyword rule tables. Iteration order is a declared
// contract: the first rule with any substring match wins, and each table
// ends with an unconditional default.
package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule pairs a label with the keywords that select it. A rule with no
// keywords matches unconditionally and terminates the scan.
type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// DefaultTopicRules returns the built-in topic table.
func DefaultTopicRules() []Rule {
	return []Rule{
		{Label: "hiring", Keywords: []string{"hiring", "interview", "candidate", "recruit"}},
		{Label: "release", Keywords: []string{"release", "launch", "deploy"}},
		{Label: "bugfix", Keywords: []string{"bug", "issue", "fix", "regression"}},
		{Label: "pricing", Keywords: []string{"pricing", "price", "quote"}},
		{Label: "roadmap", Keywords: []string{"roadmap", "plan", "milestone"}},
		{Label: "onboarding", Keywords: []string{"onboarding", "onboard", "orientation"}},
		{Label: "security", Keywords: []string{"security", "vuln", "incident"}},
		{Label: "performance", Keywords: []string{"latency", "performance", "slow"}},
		{Label: "marketing_launch", Keywords: []string{"campaign", "launch", "press", "webinar"}},
		{Label: "enterprise_request", Keywords: []string{"enterprise", "contract", "legal"}},
		{Label: "general"},
	}
}

// DefaultCapacityRules returns the built-in capacity table.
func DefaultCapacityRules() []Rule {
	return []Rule{
		{Label: "decision", Keywords: []string{"approve", "decision", "deadline", "signoff"}},
		{Label: "coordination", Keywords: []string{"sync", "meeting", "align", "schedule"}},
		{Label: "support", Keywords: []string{"help", "issue", "blocking", "blocked"}},
		{Label: "FYI"},
	}
}

// Classifier is a pure function over subject+body; no external state,
// deterministic and idempotent.
type Classifier struct {
	topics     []Rule
	capacities []Rule
}

// New builds a classifier from the given tables. Tables missing a
// terminal unconditional rule are rejected.
func New(topics, capacities []Rule) (*Classifier, error) {
	if err := validate("topic", topics); err != nil {
		return nil, err
	}
	if err := validate("capacity", capacities); err != nil {
		return nil, err
	}
	return &Classifier{topics: topics, capacities: capacities}, nil
}

// Default returns a classifier with the built-in rule tables.
func Default() *Classifier {
	c, err := New(DefaultTopicRules(), DefaultCapacityRules())
	if err != nil {
		panic(err) // built-in tables are always valid
	}
	return c
}

func validate(name string, rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%s rule table is empty", name)
	}
	last := rules[len(rules)-1]
	if len(last.Keywords) != 0 {
		return fmt.Errorf("%s rule table must end with an unconditional default", name)
	}
	return nil
}

// Classify scans the lower-cased subject+body against both tables and
// returns the winning (topic, capacity) labels.
func (c *Classifier) Classify(subject, body string) (topic, capacity string) {
	text := strings.ToLower(subject + " " + body)
	return scan(c.topics, text), scan(c.capacities, text)
}

func scan(rules []Rule, text string) string {
	for _, r := range rules {
		if len(r.Keywords) == 0 {
			return r.Label
		}
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r.Label
			}
		}
	}
	// unreachable with a validated table
	return rules[len(rules)-1].Label
}

// ruleFile is the YAML shape of a rule table override.
type ruleFile struct {
	Topics     []Rule `yaml:"topics"`
	Capacities []Rule `yaml:"capacities"`
}

// LoadRules reads rule table overrides from a YAML file. An omitted table
// keeps its built-in default.
func LoadRules(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	topics := rf.Topics
	if len(topics) == 0 {
		topics = DefaultTopicRules()
	}
	capacities := rf.Capacities
	if len(capacities) == 0 {
		capacities = DefaultCapacityRules()
	}
	return New(topics, capacities)
}
