package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRetriesExhausted = errors.New("task retries exhausted")
	ErrTaskPanic        = errors.New("task panicked")
)

// TaskError reports a partition task that kept failing.
type TaskError struct {
	Stage     string
	Partition int
	Attempts  int
	Err       error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("stage %s partition %d failed after %d attempts: %v", e.Stage, e.Partition, e.Attempts, e.Err)
}

func (e *TaskError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal marks an error as permanent: the task fails at once instead of being
// retried. errors.Is and errors.As still see the wrapped error.
func Fatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

// run executes task once per partition and waits for all of them.
func (e *Env) run(ctx context.Context, stage string, partitions int, task func(ctx context.Context, partition int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		stageDuration.WithLabelValues(operation(stage)).Observe(time.Since(start).Seconds())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < partitions; i++ {
		g.Go(func() error {
			return e.attempt(gctx, stage, i, task)
		})
	}
	return g.Wait()
}

func (e *Env) attempt(ctx context.Context, stage string, partition int, task func(ctx context.Context, partition int) error) error {
	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = e.try(ctx, stage, partition, attempt, task)
		if err == nil {
			tasksTotal.WithLabelValues(operation(stage), "success").Inc()
			return nil
		}
		if IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			tasksTotal.WithLabelValues(operation(stage), "fatal").Inc()
			return err
		}
		tasksTotal.WithLabelValues(operation(stage), "retry").Inc()
		log.Warn().Err(err).Str("stage", stage).Int("partition", partition).Int("attempt", attempt).Msg("task failed")
	}
	tasksTotal.WithLabelValues(operation(stage), "exhausted").Inc()
	return &TaskError{Stage: stage, Partition: partition, Attempts: e.attempts, Err: err}
}

func (e *Env) try(ctx context.Context, stage string, partition, attempt int, task func(ctx context.Context, partition int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	if e.faults != nil {
		if err := e.faults(stage, partition, attempt); err != nil {
			return err
		}
	}
	return task(ctx, partition)
}
