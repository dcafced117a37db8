package checkout

import (
	"context"

	"stagepass/pkg/logger"
)

// compensationStep undoes one completed forward step of a checkout
type compensationStep struct {
	name string
	fn   func(context.Context) error
}

// compensations collects undo steps as forward steps succeed. On failure the
// stack runs in reverse, best effort: a failed undo is logged and the rest
// still run, so a broken seat release never strands the order delete.
type compensations struct {
	steps []compensationStep
}

func newCompensations() *compensations {
	return &compensations{}
}

func (c *compensations) push(name string, fn func(context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, fn: fn})
}

func (c *compensations) run(ctx context.Context, orderID string, log *logger.Logger) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		err := step.fn(ctx)
		log.LogCompensation(ctx, orderID, step.name, err)
	}
}
