package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDefaults(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		subject  string
		body     string
		topic    string
		capacity string
	}{
		{"hiring decision", "Interview loop", "please approve the offer", "hiring", "decision"},
		{"release coordination", "Deploy window", "sync on the rollout", "release", "coordination"},
		{"plain note", "lunch", "see you at noon", "general", "FYI"},
		{"case insensitive", "INTERVIEW Schedule", "", "hiring", "coordination"},
		{"body drives match", "(no subject)", "the fix for the regression", "bugfix", "FYI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, capacity := c.Classify(tt.subject, tt.body)
			assert.Equal(t, tt.topic, topic)
			assert.Equal(t, tt.capacity, capacity)
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := Default()

	// "launch" appears in both release and marketing_launch; the earlier
	// rule in the table wins.
	topic, _ := c.Classify("launch checklist", "")
	assert.Equal(t, "release", topic)

	// "issue" appears in both bugfix (topic) and support (capacity);
	// tables are scanned independently.
	topic, capacity := c.Classify("issue with the invoice", "")
	assert.Equal(t, "bugfix", topic)
	assert.Equal(t, "support", capacity)
}

func TestClassifyDeterministic(t *testing.T) {
	c := Default()
	t1, c1 := c.Classify("pricing deadline", "enterprise contract")
	t2, c2 := c.Classify("pricing deadline", "enterprise contract")
	assert.Equal(t, t1, t2)
	assert.Equal(t, c1, c2)
}

func TestNewRejectsTableWithoutDefault(t *testing.T) {
	_, err := New(
		[]Rule{{Label: "hiring", Keywords: []string{"interview"}}},
		DefaultCapacityRules(),
	)
	assert.Error(t, err)

	_, err = New(DefaultTopicRules(), nil)
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	content := `topics:
  - label: incident
    keywords: [outage, pager]
  - label: general
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadRules(path)
	require.NoError(t, err)

	topic, capacity := c.Classify("pager storm", "")
	assert.Equal(t, "incident", topic)
	// capacity table was omitted and keeps its built-in default
	assert.Equal(t, "FYI", capacity)
}

func TestLoadRulesRejectsInvalidTable(t *testing.T) {
	content := `topics:
  - label: incident
    keywords: [outage]
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadRules(path)
	assert.Error(t, err)
}
