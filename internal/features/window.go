package features

import "gonum.org/v1/gonum/stat"

// WindowSize is the number of trailing months in a moving-average window.
const WindowSize = 3

// Window is a bounded FIFO of trailing monthly totals. Pushing past capacity
// evicts the oldest value; the window never grows beyond its capacity.
type Window struct {
	values   []float64
	capacity int
}

// NewWindow returns an empty window holding at most capacity values.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{values: make([]float64, 0, capacity), capacity: capacity}
}

// Push appends v, evicting the oldest value once the window is full.
func (w *Window) Push(v float64) {
	if len(w.values) == w.capacity {
		copy(w.values, w.values[1:])
		w.values = w.values[:len(w.values)-1]
	}
	w.values = append(w.values, v)
}

// Mean returns the average of the held values, or 0 when empty.
func (w *Window) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return stat.Mean(w.values, nil)
}

// Len returns the number of held values.
func (w *Window) Len() int {
	return len(w.values)
}

// Values returns a copy of the held values, oldest first.
func (w *Window) Values() []float64 {
	return append([]float64(nil), w.values...)
}
