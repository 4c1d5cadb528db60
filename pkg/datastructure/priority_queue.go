package datastructure

import (
	"errors"

	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"golang.org/x/exp/constraints"
)

var (
	ErrEmptyQueue   = errors.New("priority queue is empty")
	ErrItemNotFound = errors.New("item not in priority queue")
)

type PriorityQueueNode[T constraints.Integer] struct {
	Rank float64
	Item T
}

func NewPriorityQueueNode[T constraints.Integer](rank float64, item T) PriorityQueueNode[T] {
	return PriorityQueueNode[T]{Rank: rank, Item: item}
}

// Less. ordered by rank, ties broken by the smaller item.
func (n PriorityQueueNode[T]) Less(other PriorityQueueNode[T]) bool {
	if n.Rank != other.Rank {
		return n.Rank < other.Rank
	}
	return n.Item < other.Item
}

// MinHeap. binary heap of distinct items with a position index for DecreaseKey.
type MinHeap[T constraints.Integer] struct {
	heap []PriorityQueueNode[T]
	pos  map[T]int
}

func NewMinHeap[T constraints.Integer]() *MinHeap[T] {
	return &MinHeap[T]{
		heap: make([]PriorityQueueNode[T], 0),
		pos:  make(map[T]int),
	}
}

func NewMinHeapWithCapacity[T constraints.Integer](capacity int) *MinHeap[T] {
	return &MinHeap[T]{
		heap: make([]PriorityQueueNode[T], 0, capacity),
		pos:  make(map[T]int, capacity),
	}
}

func (h *MinHeap[T]) parent(i int) int { return (i - 1) / 2 }
func (h *MinHeap[T]) left(i int) int   { return 2*i + 1 }
func (h *MinHeap[T]) right(i int) int  { return 2*i + 2 }

func (h *MinHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.pos[h.heap[i].Item] = i
	h.pos[h.heap[j].Item] = j
}

func (h *MinHeap[T]) heapifyUp(i int) {
	for i > 0 && h.heap[i].Less(h.heap[h.parent(i)]) {
		h.swap(i, h.parent(i))
		i = h.parent(i)
	}
}

func (h *MinHeap[T]) heapifyDown(i int) {
	for {
		smallest := i
		l, r := h.left(i), h.right(i)
		if l < len(h.heap) && h.heap[l].Less(h.heap[smallest]) {
			smallest = l
		}
		if r < len(h.heap) && h.heap[r].Less(h.heap[smallest]) {
			smallest = r
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *MinHeap[T]) Size() int {
	return len(h.heap)
}

func (h *MinHeap[T]) Contains(item T) bool {
	_, ok := h.pos[item]
	return ok
}

// Insert. item must not already be in the heap.
func (h *MinHeap[T]) Insert(node PriorityQueueNode[T]) {
	_, ok := h.pos[node.Item]
	util.AssertPanic(!ok, "item already in priority queue")
	h.heap = append(h.heap, node)
	h.pos[node.Item] = len(h.heap) - 1
	h.heapifyUp(len(h.heap) - 1)
}

func (h *MinHeap[T]) GetMin() (PriorityQueueNode[T], error) {
	if len(h.heap) == 0 {
		return PriorityQueueNode[T]{}, ErrEmptyQueue
	}
	return h.heap[0], nil
}

func (h *MinHeap[T]) ExtractMin() (PriorityQueueNode[T], error) {
	if len(h.heap) == 0 {
		return PriorityQueueNode[T]{}, ErrEmptyQueue
	}
	root := h.heap[0]
	last := len(h.heap) - 1
	h.swap(0, last)
	h.heap = h.heap[:last]
	delete(h.pos, root.Item)
	if len(h.heap) > 0 {
		h.heapifyDown(0)
	}
	return root, nil
}

func (h *MinHeap[T]) DecreaseKey(item T, rank float64) error {
	i, ok := h.pos[item]
	if !ok {
		return ErrItemNotFound
	}
	util.AssertPanic(rank <= h.heap[i].Rank, "new rank must be less or equal than old rank")
	h.heap[i].Rank = rank
	h.heapifyUp(i)
	return nil
}
