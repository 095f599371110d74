package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const compensationTimeout = 10 * time.Second

type sagaStep struct {
	name       string
	execute    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

type saga struct {
	name  string
	steps []sagaStep
}

func newSaga(name string, steps ...sagaStep) *saga {
	return &saga{name: name, steps: steps}
}

// run executes the steps in order. When one fails, the compensations of the
// steps that already completed run in reverse order on a context that outlives
// request cancellation.
func (s *saga) run(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.execute(ctx)
		if err == nil {
			continue
		}

		slog.WarnContext(ctx, "saga step failed",
			"saga", s.name,
			"step", step.name,
			"error", err,
		)

		if cerr := s.compensate(ctx, i); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	return nil
}

func (s *saga) compensate(ctx context.Context, failed int) error {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var errs []error
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(compCtx); err != nil {
			slog.ErrorContext(ctx, "saga compensation failed",
				"saga", s.name,
				"step", step.name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}
