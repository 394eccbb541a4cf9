// Package dataset is a small in-process stand-in for a cluster batch runtime.
//
// A Dataset is a list of partitions. Every operation runs one task per
// partition on a bounded pool of goroutines and returns a new Dataset once
// every task has finished, so stages behave like barriers. Operations that
// group by key shuffle records between partitions by hashing the key.
// Failed tasks are retried against the same partition; tasks must therefore
// be pure and deterministic.
package dataset

import (
	"runtime"

	"retro/meta"
)

// Key is the constraint on shuffle keys. Keys are hashed by their bytes.
type Key interface {
	~string
}

type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// FaultFunc is consulted before every task attempt; a non-nil error fails the attempt.
type FaultFunc func(stage string, partition, attempt int) error

type Option func(env *Env)

// Env holds the execution settings shared by all datasets built from it.
type Env struct {
	partitions int
	workers    int
	attempts   int
	faults     FaultFunc
}

func WithPartitions(n int) Option {
	return func(e *Env) {
		if n > 0 {
			e.partitions = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(e *Env) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithAttempts(n int) Option {
	return func(e *Env) {
		if n > 0 {
			e.attempts = n
		}
	}
}

func WithFaults(f FaultFunc) Option {
	return func(e *Env) {
		e.faults = f
	}
}

func NewEnv(options ...Option) *Env {
	e := &Env{ // Default values
		partitions: meta.PARTITIONS,
		workers:    runtime.GOMAXPROCS(0),
		attempts:   meta.ATTEMPTS,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *Env) Partitions() int { return e.partitions }
func (e *Env) Workers() int    { return e.workers }
func (e *Env) Attempts() int   { return e.attempts }

type Dataset[T any] struct {
	env   *Env
	parts [][]T
}

func Empty[T any](env *Env) *Dataset[T] {
	return &Dataset[T]{env: env}
}

// Parallelize splits items into the environment's number of partitions.
func Parallelize[T any](env *Env, items []T) *Dataset[T] {
	n := env.partitions
	size := (len(items) + n - 1) / n
	parts := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		part := make([]T, end-start)
		copy(part, items[start:end])
		parts = append(parts, part)
	}
	return &Dataset[T]{env: env, parts: parts}
}

func (d *Dataset[T]) Env() *Env {
	return d.env
}

func (d *Dataset[T]) Partitions() int {
	return len(d.parts)
}

// Partition returns the items of partition i. Callers must not modify it.
func (d *Dataset[T]) Partition(i int) []T {
	return d.parts[i]
}

func (d *Dataset[T]) Len() int {
	n := 0
	for _, part := range d.parts {
		n += len(part)
	}
	return n
}

func (d *Dataset[T]) IsEmpty() bool {
	for _, part := range d.parts {
		if len(part) > 0 {
			return false
		}
	}
	return true
}

// Collect gathers every item into one slice, partition by partition.
func (d *Dataset[T]) Collect() []T {
	out := make([]T, 0, d.Len())
	for _, part := range d.parts {
		out = append(out, part...)
	}
	return out
}

// Union concatenates the partitions of both datasets without deduplicating.
func Union[T any](a, b *Dataset[T]) *Dataset[T] {
	parts := make([][]T, 0, len(a.parts)+len(b.parts))
	parts = append(parts, a.parts...)
	parts = append(parts, b.parts...)
	return &Dataset[T]{env: a.env, parts: parts}
}
