package datastructure

import "fmt"

// HugeArray is a growable array of fixed-size elements. the graph store keeps every per-vertex
// and per-arc field in one, so the same graph code runs in memory or out of core.
type HugeArray[T any] interface {
	Len() int64
	Resize(n int64) error
	Get(i int64) (T, error)
	Set(i int64, v T) error
	Close() error
}

type MemoryArray[T any] struct {
	data []T
}

func NewMemoryArray[T any](capacity int64) *MemoryArray[T] {
	return &MemoryArray[T]{data: make([]T, 0, capacity)}
}

func (a *MemoryArray[T]) Len() int64 {
	return int64(len(a.data))
}

// Resize. newly exposed elements are zero.
func (a *MemoryArray[T]) Resize(n int64) error {
	if n < 0 {
		return fmt.Errorf("negative array length %d", n)
	}
	old := int64(len(a.data))
	if n <= int64(cap(a.data)) {
		a.data = a.data[:n]
		var zero T
		for i := old; i < n; i++ {
			a.data[i] = zero
		}
		return nil
	}
	grown := make([]T, n, max(n, 2*int64(cap(a.data))))
	copy(grown, a.data)
	a.data = grown
	return nil
}

func (a *MemoryArray[T]) Get(i int64) (T, error) {
	if i < 0 || i >= int64(len(a.data)) {
		var zero T
		return zero, fmt.Errorf("index %d out of range [0, %d)", i, len(a.data))
	}
	return a.data[i], nil
}

func (a *MemoryArray[T]) Set(i int64, v T) error {
	if i < 0 || i >= int64(len(a.data)) {
		return fmt.Errorf("index %d out of range [0, %d)", i, len(a.data))
	}
	a.data[i] = v
	return nil
}

func (a *MemoryArray[T]) Close() error {
	a.data = nil
	return nil
}
