// Package routing implements the per-item decision procedure: ordered
// rule evaluation, static distribution targets, and the append-only
// outcome record of every attempt.
package routing

import "maps"

// Item is one captured item as the engine sees it: content plus the
// classification fields produced upstream. The engine never persists
// items; mutations go through the external ItemStore.
type Item struct {
	ID       string         `json:"id" yaml:"id"`
	Owner    string         `json:"owner" yaml:"owner"`
	Content  string         `json:"content" yaml:"content"`
	Category string         `json:"category,omitempty" yaml:"category,omitempty"`
	Summary  string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Entities map[string]any `json:"entities,omitempty" yaml:"entities,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// FieldMap flattens the item into the nested structure rule conditions
// traverse with dot paths. Metadata keys sit at the top level, under the
// named fields so they cannot shadow them.
func (i *Item) FieldMap() map[string]any {
	fields := make(map[string]any, len(i.Metadata)+6)
	maps.Copy(fields, i.Metadata)
	fields["id"] = i.ID
	fields["owner"] = i.Owner
	fields["content"] = i.Content
	fields["category"] = i.Category
	fields["summary"] = i.Summary
	if i.Entities != nil {
		fields["entities"] = i.Entities
	}
	return fields
}
