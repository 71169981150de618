package routing

import "time"

// Status is the distribution outcome state.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome records one distribution attempt. Outcomes are append-only:
// every attempt produces exactly one, and none is ever overwritten, so
// the per-item history stays auditable.
type Outcome struct {
	ID          string    `json:"id" yaml:"id"`
	ItemID      string    `json:"item_id" yaml:"item_id"`
	TargetID    string    `json:"target_id" yaml:"target_id"`
	Connector   string    `json:"connector,omitempty" yaml:"connector,omitempty"`
	Kind        string    `json:"kind" yaml:"kind"`
	Status      Status    `json:"status" yaml:"status"`
	ExternalID  string    `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	ExternalURL string    `json:"external_url,omitempty" yaml:"external_url,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}
