package dataset

import (
	"context"
	"slices"

	"retro/utils"
)

// shuffle moves every item to the partition its key hashes to. With a merge
// function, items sharing a key are combined on both sides of the shuffle so
// each key leaves exactly once; without one, items are only routed.
func shuffle[K Key, T any](ctx context.Context, d *Dataset[T], stage string, n int, key func(T) K, merge func(a, b T) (T, error)) (*Dataset[T], error) {
	buckets := make([][][]T, len(d.parts))
	err := d.env.run(ctx, stage+"/map", len(d.parts), func(ctx context.Context, i int) error {
		out := make([][]T, n)
		index := make([]map[K]int, n)
		for _, item := range d.parts[i] {
			k := key(item)
			j := utils.Partition(string(k), n)
			if merge == nil {
				out[j] = append(out[j], item)
				continue
			}
			if index[j] == nil {
				index[j] = map[K]int{}
			}
			if at, ok := index[j][k]; ok {
				merged, err := merge(out[j][at], item)
				if err != nil {
					return err
				}
				out[j][at] = merged
				continue
			}
			index[j][k] = len(out[j])
			out[j] = append(out[j], item)
		}
		buckets[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	parts := make([][]T, n)
	err = d.env.run(ctx, stage+"/reduce", n, func(ctx context.Context, j int) error {
		var out []T
		index := map[K]int{}
		moved := 0
		for i := range buckets {
			for _, item := range buckets[i][j] {
				moved++
				if merge == nil {
					out = append(out, item)
					continue
				}
				k := key(item)
				if at, ok := index[k]; ok {
					merged, err := merge(out[at], item)
					if err != nil {
						return err
					}
					out[at] = merged
					continue
				}
				index[k] = len(out)
				out = append(out, item)
			}
		}
		parts[j] = out
		shuffledRecords.WithLabelValues(operation(stage)).Add(float64(moved))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dataset[T]{env: d.env, parts: parts}, nil
}

// PartitionBy redistributes items into n partitions by key.
func PartitionBy[K Key, T any](ctx context.Context, d *Dataset[T], stage string, n int, key func(T) K) (*Dataset[T], error) {
	if n <= 0 {
		n = d.env.partitions
	}
	return shuffle(ctx, d, stage, n, key, nil)
}

// DistinctByKey keeps one item per key. conflict is called for every pair of
// items sharing a key and may reject them; the first item seen is kept.
func DistinctByKey[K Key, T any](ctx context.Context, d *Dataset[T], stage string, key func(T) K, conflict func(a, b T) error) (*Dataset[T], error) {
	return shuffle(ctx, d, stage, d.env.partitions, key, func(a, b T) (T, error) {
		if conflict != nil {
			if err := conflict(a, b); err != nil {
				return a, err
			}
		}
		return a, nil
	})
}

// ReduceByKey folds all values of a key with merge, which must be commutative
// and associative. Each value takes part exactly once.
func ReduceByKey[K Key, V any](ctx context.Context, d *Dataset[Pair[K, V]], stage string, merge func(a, b V) (V, error)) (*Dataset[Pair[K, V]], error) {
	return shuffle(ctx, d, stage, d.env.partitions,
		func(p Pair[K, V]) K { return p.Key },
		func(a, b Pair[K, V]) (Pair[K, V], error) {
			v, err := merge(a.Value, b.Value)
			return Pair[K, V]{Key: a.Key, Value: v}, err
		})
}

// GroupByKey collects all values of a key into one slice. Prefer ReduceByKey
// when the values can be folded.
func GroupByKey[K Key, V any](ctx context.Context, d *Dataset[Pair[K, V]], stage string) (*Dataset[Pair[K, []V]], error) {
	singles, err := Map(ctx, d, stage+"/wrap", func(p Pair[K, V]) (Pair[K, []V], error) {
		return Pair[K, []V]{Key: p.Key, Value: []V{p.Value}}, nil
	})
	if err != nil {
		return nil, err
	}
	return shuffle(ctx, singles, stage, d.env.partitions,
		func(p Pair[K, []V]) K { return p.Key },
		func(a, b Pair[K, []V]) (Pair[K, []V], error) {
			return Pair[K, []V]{Key: a.Key, Value: slices.Concat(a.Value, b.Value)}, nil
		})
}

// Restrict keeps the pairs whose key appears in keys (a semi-join).
func Restrict[K Key, V any](ctx context.Context, d *Dataset[Pair[K, V]], keys *Dataset[K], stage string) (*Dataset[Pair[K, V]], error) {
	n := d.env.partitions
	left, err := PartitionBy(ctx, d, stage+"/left", n, func(p Pair[K, V]) K { return p.Key })
	if err != nil {
		return nil, err
	}
	right, err := PartitionBy(ctx, keys, stage+"/right", n, func(k K) K { return k })
	if err != nil {
		return nil, err
	}

	parts := make([][]Pair[K, V], n)
	err = d.env.run(ctx, stage, n, func(ctx context.Context, j int) error {
		allowed := make(map[K]struct{}, len(right.parts[j]))
		for _, k := range right.parts[j] {
			allowed[k] = struct{}{}
		}
		var out []Pair[K, V]
		for _, p := range left.parts[j] {
			if _, ok := allowed[p.Key]; ok {
				out = append(out, p)
			}
		}
		parts[j] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Dataset[Pair[K, V]]{env: d.env, parts: parts}, nil
}
