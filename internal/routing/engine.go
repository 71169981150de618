package routing

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dorcha-inc/relay/internal/connector"
	"github.com/dorcha-inc/relay/internal/core"
	"github.com/dorcha-inc/relay/internal/ratelimit"
)

// Outcome kinds recorded per attempt.
const (
	kindConnector  = "connector"
	kindAdapter    = "adapter"
	kindItemUpdate = "item_update"
	kindSkip       = "skip"
)

// Engine is the per-item decision procedure: which destinations an item
// goes to, in what order, with failures isolated per attempt. Items route
// independently; many DistributeItem calls may run concurrently against
// one engine.
type Engine struct {
	rules      RuleStore
	targets    TargetStore
	items      ItemStore
	connectors *Registry
	adapters   *AdapterRegistry
	limiter    *ratelimit.Limiter
	clock      clockwork.Clock
}

// NewEngine creates a routing engine with a real clock
func NewEngine(rules RuleStore, targets TargetStore, items ItemStore, connectors *Registry, adapters *AdapterRegistry, limiter *ratelimit.Limiter) *Engine {
	return NewEngineWithClock(rules, targets, items, connectors, adapters, limiter, clockwork.NewRealClock())
}

// NewEngineWithClock creates a routing engine with a custom clock. This is
// useful for testing with a fake clock
func NewEngineWithClock(rules RuleStore, targets TargetStore, items ItemStore, connectors *Registry, adapters *AdapterRegistry, limiter *ratelimit.Limiter, clock clockwork.Clock) *Engine {
	return &Engine{
		rules:      rules,
		targets:    targets,
		items:      items,
		connectors: connectors,
		adapters:   adapters,
		limiter:    limiter,
		clock:      clock,
	}
}

// DistributeItem routes one item: matched rules execute their actions in
// priority order, then static targets run in priority order unless a rule
// requested a skip. Every attempt appends exactly one outcome; no single
// failure aborts the rest.
func (e *Engine) DistributeItem(ctx context.Context, item *Item) ([]Outcome, error) {
	rules, err := e.rules.ActiveRules(ctx, item.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing rules: %w", err)
	}
	SortRules(rules)

	fields := item.FieldMap()
	outcomes := []Outcome{}
	skipRemaining := false

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if !MatchAny(rule.Conditions, fields) {
			continue
		}
		zap.L().Debug("Rule matched",
			zap.String("item", item.ID), zap.String("rule", rule.ID), zap.Int("priority", rule.Priority))

		for _, action := range rule.Actions {
			outcome := e.executeAction(ctx, item, fields, rule, action)
			outcomes = append(outcomes, outcome)
			if action.Type == ActionSkipRemaining {
				skipRemaining = true
			}
		}
	}

	// One slot per item, not per target, bounds burstiness at the item
	// level.
	if err := e.limiter.Wait(ctx); err != nil {
		return outcomes, err
	}

	if skipRemaining {
		zap.L().Debug("Static distribution skipped by rule action", zap.String("item", item.ID))
	} else {
		targetOutcomes, err := e.distributeToTargets(ctx, item, fields)
		outcomes = append(outcomes, targetOutcomes...)
		if err != nil {
			return outcomes, err
		}
	}

	core.LogDistribution(item.ID, len(outcomes), countFailed(outcomes))
	return outcomes, nil
}

// distributeToTargets runs the static-target pass: enabled targets whose
// conditions all match, in priority order, one outcome each.
func (e *Engine) distributeToTargets(ctx context.Context, item *Item, fields map[string]any) ([]Outcome, error) {
	targets, err := e.targets.Targets(ctx, item.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load distribution targets: %w", err)
	}

	applicable := make([]Target, 0, len(targets))
	for _, target := range targets {
		if target.Enabled && MatchAll(target.Conditions, fields) {
			applicable = append(applicable, target)
		}
	}
	SortTargets(applicable)

	outcomes := make([]Outcome, 0, len(applicable))
	for _, target := range applicable {
		outcomes = append(outcomes, e.executeTarget(ctx, item, fields, target))
	}
	return outcomes, nil
}

// executeAction runs one rule action and converts its result into an
// outcome. Errors are caught here; they never abort sibling actions.
func (e *Engine) executeAction(ctx context.Context, item *Item, fields map[string]any, rule Rule, action Action) Outcome {
	outcome := e.newOutcome(item.ID, rule.ID)

	switch action.Type {
	case ActionInvokeConnector:
		outcome.Kind = kindConnector
		outcome.Connector = action.Connector

		conn, err := e.connectors.Resolve(ctx, item.Owner, action.Connector)
		if err != nil {
			return failOutcome(outcome, err)
		}
		outcome.Connector = conn.ID()

		delivery, err := conn.Distribute(ctx, connector.DistributeInput{
			ItemID: item.ID,
			Fields: fields,
			Tool:   action.Tool,
		})
		if err != nil {
			return failOutcome(outcome, err)
		}
		return succeedOutcome(outcome, delivery)

	case ActionUpdateFields:
		outcome.Kind = kindItemUpdate
		if err := e.items.UpdateFields(ctx, item.ID, action.Fields); err != nil {
			return failOutcome(outcome, err)
		}
		// Later rules and targets evaluate against the mutated fields.
		maps.Copy(fields, action.Fields)
		outcome.Status = StatusSuccess
		return outcome

	case ActionSkipRemaining:
		outcome.Kind = kindSkip
		outcome.Status = StatusSuccess
		return outcome

	default:
		outcome.Kind = kindConnector
		return failOutcome(outcome, fmt.Errorf("unknown action type %q", action.Type))
	}
}

// executeTarget delivers to one static target, through the connector
// facade for protocol targets or the adapter registry for plain ones.
func (e *Engine) executeTarget(ctx context.Context, item *Item, fields map[string]any, target Target) Outcome {
	outcome := e.newOutcome(item.ID, target.ID)
	outcome.Connector = target.ConnectorID

	if target.Kind == "" || target.Kind == TargetKindMCP {
		outcome.Kind = kindConnector

		conn, err := e.connectors.Get(ctx, target.ConnectorID)
		if err != nil {
			return failOutcome(outcome, err)
		}

		delivery, err := conn.Distribute(ctx, connector.DistributeInput{
			ItemID: item.ID,
			Fields: fields,
			Tool:   target.Tool,
		})
		if err != nil {
			return failOutcome(outcome, err)
		}
		return succeedOutcome(outcome, delivery)
	}

	outcome.Kind = kindAdapter
	adapter, ok := e.adapters.Lookup(target.Kind)
	if !ok {
		return failOutcome(outcome, fmt.Errorf("no adapter registered for target kind %q", target.Kind))
	}

	delivery, err := adapter.Deliver(ctx, item, target)
	if err != nil {
		return failOutcome(outcome, err)
	}
	return succeedOutcome(outcome, delivery)
}

// newOutcome starts a pending outcome for one attempt.
func (e *Engine) newOutcome(itemID, targetID string) Outcome {
	return Outcome{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		TargetID:  targetID,
		Status:    StatusPending,
		CreatedAt: e.clock.Now(),
	}
}

func failOutcome(outcome Outcome, err error) Outcome {
	outcome.Status = StatusFailed
	outcome.Error = err.Error()
	zap.L().Warn("Distribution attempt failed",
		zap.String("item", outcome.ItemID),
		zap.String("target", outcome.TargetID),
		zap.String("connector", outcome.Connector),
		zap.Error(err))
	return outcome
}

func succeedOutcome(outcome Outcome, delivery *connector.Delivery) Outcome {
	outcome.Status = StatusSuccess
	if delivery != nil {
		outcome.ExternalID = delivery.ExternalID
		outcome.ExternalURL = delivery.ExternalURL
	}
	return outcome
}

func countFailed(outcomes []Outcome) int {
	failed := 0
	for _, outcome := range outcomes {
		if outcome.Status == StatusFailed {
			failed++
		}
	}
	return failed
}
