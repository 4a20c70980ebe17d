package executor

import "container/heap"

// Priority orders queued jobs. Higher runs first; equal priorities run in
// submission order.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

func (p Priority) String() string {
	switch {
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

type item struct {
	job *Job
	seq uint64
}

// jobHeap implements heap.Interface. Max-heap on priority with FIFO
// tie-breaking via the monotonic sequence number.
type jobHeap []*item

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

var _ heap.Interface = (*jobHeap)(nil)
