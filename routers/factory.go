package routers

import (
	"fmt"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

// Strategy identifiers accepted in configuration.
const (
	StrategyPriority      = "priority"
	StrategyLeastUsed     = "least-used"
	StrategyLowestLatency = "lowest-latency"
)

// New creates a strategy by its configuration name. The empty name maps
// to the priority strategy.
func New(name string) (router.Strategy, error) {
	switch name {
	case "", StrategyPriority:
		return NewPriorityStrategy(), nil
	case StrategyLeastUsed:
		return NewLeastUsedStrategy(), nil
	case StrategyLowestLatency:
		return NewLowestLatencyStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown routing strategy %q", name)
	}
}
