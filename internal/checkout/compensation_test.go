package checkout

import (
	"context"
	"errors"
	"testing"

	"stagepass/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestCompensationsRunInReverse(t *testing.T) {
	comps := newCompensations()

	var order []string
	comps.push("release_seats", func(ctx context.Context) error {
		order = append(order, "release_seats")
		return nil
	})
	comps.push("delete_order", func(ctx context.Context) error {
		order = append(order, "delete_order")
		return nil
	})
	comps.push("cancel_payment", func(ctx context.Context) error {
		order = append(order, "cancel_payment")
		return nil
	})

	comps.run(context.Background(), "order-1", logger.GetDefault())

	assert.Equal(t, []string{"cancel_payment", "delete_order", "release_seats"}, order)
}

func TestCompensationsContinueAfterFailure(t *testing.T) {
	comps := newCompensations()

	var ran []string
	comps.push("release_seats", func(ctx context.Context) error {
		ran = append(ran, "release_seats")
		return nil
	})
	comps.push("delete_order", func(ctx context.Context) error {
		ran = append(ran, "delete_order")
		return errors.New("db unavailable")
	})

	// A failed undo must not stop the steps beneath it
	comps.run(context.Background(), "order-1", logger.GetDefault())

	assert.Equal(t, []string{"delete_order", "release_seats"}, ran)
}

func TestCompensationsEmpty(t *testing.T) {
	assert.NotPanics(t, func() {
		newCompensations().run(context.Background(), "order-1", logger.GetDefault())
	})
}
