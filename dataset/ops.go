package dataset

import "context"

func Map[T, U any](ctx context.Context, d *Dataset[T], stage string, f func(T) (U, error)) (*Dataset[U], error) {
	return FlatMap(ctx, d, stage, func(item T) ([]U, error) {
		u, err := f(item)
		if err != nil {
			return nil, err
		}
		return []U{u}, nil
	})
}

func FlatMap[T, U any](ctx context.Context, d *Dataset[T], stage string, f func(T) ([]U, error)) (*Dataset[U], error) {
	parts := make([][]U, len(d.parts))
	err := d.env.run(ctx, stage, len(d.parts), func(ctx context.Context, i int) error {
		out := make([]U, 0, len(d.parts[i]))
		for _, item := range d.parts[i] {
			us, err := f(item)
			if err != nil {
				return err
			}
			out = append(out, us...)
		}
		parts[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dataset[U]{env: d.env, parts: parts}, nil
}

func Filter[T any](ctx context.Context, d *Dataset[T], stage string, keep func(T) bool) (*Dataset[T], error) {
	return FlatMap(ctx, d, stage, func(item T) ([]T, error) {
		if keep(item) {
			return []T{item}, nil
		}
		return nil, nil
	})
}

// ForeachPartition hands every partition to f, which may write it somewhere.
// f can be retried for the same partition and must tolerate that.
func ForeachPartition[T any](ctx context.Context, d *Dataset[T], stage string, f func(ctx context.Context, partition int, items []T) error) error {
	return d.env.run(ctx, stage, len(d.parts), func(ctx context.Context, i int) error {
		return f(ctx, i, d.parts[i])
	})
}
