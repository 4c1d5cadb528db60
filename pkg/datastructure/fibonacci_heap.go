package datastructure

import (
	"math"

	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

// FibEntry. handle returned by Insert, needed for DecreaseKey.
type FibEntry[T any] struct {
	degree int
	marked bool

	next, prev    *FibEntry[T]
	child, parent *FibEntry[T]

	elem     T
	priority float64
}

func newFibEntry[T any](elem T, priority float64) *FibEntry[T] {
	e := &FibEntry[T]{elem: elem, priority: priority}
	e.next, e.prev = e, e
	return e
}

func (e *FibEntry[T]) GetPriority() float64 {
	return e.priority
}

func (e *FibEntry[T]) GetElem() T {
	return e.elem
}

/*
FibonacciHeap. amortized O(1) Insert and DecreaseKey, O(log n) ExtractMin.
ref: CLRS chapter 19, potential pot(H) = t(H) + 2m(H) with t the number of roots and m the
number of marked nodes.

the witness search does one DecreaseKey per relaxed arc and far fewer ExtractMin calls, which is
where the fibonacci heap beats a binary heap.
*/
type FibonacciHeap[T any] struct {
	min  *FibEntry[T]
	size int
}

func NewFibonacciHeap[T any]() *FibonacciHeap[T] {
	return &FibonacciHeap[T]{}
}

func (f *FibonacciHeap[T]) GetMin() *FibEntry[T] {
	return f.min
}

// GetMinRank. +inf on an empty heap.
func (f *FibonacciHeap[T]) GetMinRank() float64 {
	if f.min == nil {
		return math.MaxFloat64
	}
	return f.min.priority
}

func (f *FibonacciHeap[T]) Size() int {
	return f.size
}

func (f *FibonacciHeap[T]) IsEmpty() bool {
	return f.size == 0
}

func (f *FibonacciHeap[T]) Insert(value T, priority float64) *FibEntry[T] {
	e := newFibEntry(value, priority)
	f.min = spliceLists(f.min, e)
	f.size++
	return e
}

// spliceLists joins two circular lists and returns the one with the smaller root.
func spliceLists[T any](a, b *FibEntry[T]) *FibEntry[T] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	aNext := a.next
	a.next = b.next
	a.next.prev = a
	b.next = aNext
	b.next.prev = b

	if a.priority < b.priority {
		return a
	}
	return b
}

func (f *FibonacciHeap[T]) DecreaseKey(entry *FibEntry[T], newPriority float64) {
	util.AssertPanic(newPriority <= entry.priority, "new priority must be less or equal than old priority")

	entry.priority = newPriority
	if entry.parent != nil && entry.priority <= entry.parent.priority {
		f.cut(entry)
	}
	if entry.priority < f.min.priority {
		f.min = entry
	}
}

// cut moves entry to the root list, then cascades up through marked parents.
func (f *FibonacciHeap[T]) cut(entry *FibEntry[T]) {
	entry.marked = false
	parent := entry.parent
	if parent == nil {
		return
	}

	entry.next.prev = entry.prev
	entry.prev.next = entry.next
	if parent.child == entry {
		if entry.next != entry {
			parent.child = entry.next
		} else {
			parent.child = nil
		}
	}
	parent.degree--

	entry.next, entry.prev = entry, entry
	entry.parent = nil
	f.min = spliceLists(f.min, entry)

	if parent.marked {
		f.cut(parent)
	} else {
		parent.marked = true
	}
}

func (f *FibonacciHeap[T]) ExtractMin() *FibEntry[T] {
	util.AssertPanic(f.min != nil, "heap is empty")

	f.size--
	minElem := f.min

	if minElem.next == minElem {
		f.min = nil
	} else {
		minElem.prev.next = minElem.next
		minElem.next.prev = minElem.prev
		f.min = minElem.next
	}

	if child := minElem.child; child != nil {
		curr := child
		for {
			curr.parent = nil
			curr = curr.next
			if curr == child {
				break
			}
		}
	}
	f.min = spliceLists(f.min, minElem.child)

	if f.min != nil {
		f.consolidate()
	}
	return minElem
}

// consolidate links roots of equal degree until every root has a distinct degree.
func (f *FibonacciHeap[T]) consolidate() {
	roots := make([]*FibEntry[T], 0)
	for curr := f.min; len(roots) == 0 || roots[0] != curr; curr = curr.next {
		roots = append(roots, curr)
	}

	byDegree := make([]*FibEntry[T], 0)
	for _, curr := range roots {
		for {
			for curr.degree >= len(byDegree) {
				byDegree = append(byDegree, nil)
			}
			other := byDegree[curr.degree]
			if other == nil {
				byDegree[curr.degree] = curr
				break
			}
			byDegree[curr.degree] = nil

			small, large := curr, other
			if other.priority < curr.priority {
				small, large = other, curr
			}

			large.next.prev = large.prev
			large.prev.next = large.next
			large.next, large.prev = large, large
			small.child = spliceLists(small.child, large)
			large.parent = small
			large.marked = false
			small.degree++

			curr = small
		}

		if curr.priority <= f.min.priority {
			f.min = curr
		}
	}
}
