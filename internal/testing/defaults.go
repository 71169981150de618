// Package testing provides shared fixtures for relay tests.
package testing

import (
	"os"
	"path/filepath"

	"github.com/dorcha-inc/relay/internal/routing"
)

// DefaultDefinitionsYAML is a minimal definitions document wiring one
// remote connector, one rule, and one static target.
const DefaultDefinitionsYAML = `connectors:
  - id: todoist
    name: Todoist
    family: todoist
    transport: remote
    base_url: http://localhost:9090
    auth: none
rules:
  - id: rule-todo
    owner: tester
    priority: 10
    active: true
    conditions:
      - field: category
        operator: equals
        value: todo
    actions:
      - type: invoke_connector
        connector: todoist
targets:
  - id: target-todoist
    owner: tester
    connector_id: todoist
    enabled: true
    priority: 5
`

// WriteTempDefinitions writes the default definitions document into dir
// and returns its path.
func WriteTempDefinitions(dir string) (string, error) {
	path := filepath.Join(dir, "definitions.yaml")
	if err := os.WriteFile(path, []byte(DefaultDefinitionsYAML), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// SampleItem returns a classified capture item for tests.
func SampleItem() *routing.Item {
	return &routing.Item{
		ID:       "item-1",
		Owner:    "tester",
		Content:  "buy milk",
		Category: "todo",
		Summary:  "buy milk",
		Entities: map[string]any{"due": "tomorrow"},
	}
}

// SampleItemJSON is SampleItem in the shape the route command reads.
const SampleItemJSON = `{
  "id": "item-1",
  "owner": "tester",
  "content": "buy milk",
  "category": "todo",
  "summary": "buy milk",
  "entities": {"due": "tomorrow"}
}`
