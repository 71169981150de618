package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestParseOperator tests canonical names and authored aliases
func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"equals", OpEquals},
		{"notEquals", OpNotEquals},
		{"not_equals", OpNotEquals},
		{"regex", OpRegex},
		{"regex_match", OpRegex},
		{"in_set", OpIn},
		{"not_in_set", OpNotIn},
		{"startsWith", OpStartsWith},
	}
	for _, tt := range tests {
		op, err := ParseOperator(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, op)
	}

	_, err := ParseOperator("approximately")
	assert.Error(t, err)
}

// TestOperator_UnmarshalYAML tests alias normalization during YAML decode
func TestOperator_UnmarshalYAML(t *testing.T) {
	var cond Condition
	require.NoError(t, yaml.Unmarshal([]byte("field: category\noperator: regex_match\nvalue: '^task'\n"), &cond))
	assert.Equal(t, OpRegex, cond.Operator)

	err := yaml.Unmarshal([]byte("field: category\noperator: nope\nvalue: x\n"), &cond)
	assert.Error(t, err)
}

// TestActionType_UnmarshalYAML tests action alias normalization
func TestActionType_UnmarshalYAML(t *testing.T) {
	var action Action
	require.NoError(t, yaml.Unmarshal([]byte("type: skip_distribution\n"), &action))
	assert.Equal(t, ActionSkipRemaining, action.Type)

	require.NoError(t, yaml.Unmarshal([]byte("type: invokeConnector\nconnector: todoist\n"), &action))
	assert.Equal(t, ActionInvokeConnector, action.Type)
	assert.Equal(t, "todoist", action.Connector)

	err := yaml.Unmarshal([]byte("type: explode\n"), &action)
	assert.Error(t, err)
}

// TestSortRules tests priority-descending order with creation time as the
// tie-break
func TestSortRules(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rules := []Rule{
		{ID: "low", Priority: 1, CreatedAt: base},
		{ID: "older-ten", Priority: 10, CreatedAt: base.Add(-time.Hour)},
		{ID: "newer-ten", Priority: 10, CreatedAt: base},
		{ID: "high", Priority: 20, CreatedAt: base},
	}

	SortRules(rules)

	ids := make([]string, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
	}
	assert.Equal(t, []string{"high", "older-ten", "newer-ten", "low"}, ids)
}

// TestSortTargets tests stable priority-descending target order
func TestSortTargets(t *testing.T) {
	targets := []Target{
		{ID: "a", Priority: 5},
		{ID: "b", Priority: 10},
		{ID: "c", Priority: 5},
	}

	SortTargets(targets)

	assert.Equal(t, "b", targets[0].ID)
	// Equal priorities keep their authored order.
	assert.Equal(t, "a", targets[1].ID)
	assert.Equal(t, "c", targets[2].ID)
}

// TestItem_FieldMap tests flattening and that metadata cannot shadow the
// named fields
func TestItem_FieldMap(t *testing.T) {
	item := &Item{
		ID:       "item-1",
		Owner:    "dana",
		Content:  "buy milk",
		Category: "task",
		Entities: map[string]any{"store": "corner"},
		Metadata: map[string]any{
			"source":   "inbox",
			"category": "shadowed",
		},
	}

	fields := item.FieldMap()
	assert.Equal(t, "task", fields["category"])
	assert.Equal(t, "inbox", fields["source"])
	assert.Equal(t, "buy milk", fields["content"])

	value, ok := LookupPath(fields, "entities.store")
	require.True(t, ok)
	assert.Equal(t, "corner", value)
}
