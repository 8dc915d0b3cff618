package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/agentloop/pkg/domain"
)

var errConsumerGone = domain.ErrAbandoned

// classify maps a step failure onto the error taxonomy.
//
// parent is the run context, step the per-call context derived from it.
// known lists the taxonomy errors the step may legitimately report as-is;
// anything else is wrapped with fallback.
func classify(parent, step context.Context, err error, what string, timeout time.Duration, fallback error, known ...error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("%s canceled: %w", what, context.Canceled)
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s exceeded the run deadline", domain.ErrTimeout, what)
	case errors.Is(step.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s exceeded %s", domain.ErrTimeout, what, timeout)
	case errors.Is(err, domain.ErrTimeout):
		return err
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", fallback, what, err)
}
