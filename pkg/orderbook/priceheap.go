package orderbook

// PriceHeap implements heap.Interface over integer price ticks.
type PriceHeap struct {
	ticks []int64
	less  func(i, j int64) bool
	index map[int64]bool
}

func NewPriceHeap(less func(i, j int64) bool) *PriceHeap {
	return &PriceHeap{
		ticks: []int64{},
		less:  less,
		index: make(map[int64]bool),
	}
}

func (h PriceHeap) Len() int {
	return len(h.ticks)
}

func (h PriceHeap) Less(i, j int) bool {
	return h.less(h.ticks[i], h.ticks[j])
}

func (h PriceHeap) Swap(i, j int) {
	h.ticks[i], h.ticks[j] = h.ticks[j], h.ticks[i]
}

func (h *PriceHeap) Push(x any) {
	tick := x.(int64)
	if !h.index[tick] {
		h.index[tick] = true
		h.ticks = append(h.ticks, tick)
	}
}

func (h *PriceHeap) Pop() any {
	n := len(h.ticks)
	tick := h.ticks[n-1]
	h.ticks = h.ticks[:n-1]
	delete(h.index, tick)
	return tick
}

func (h *PriceHeap) Peek() (int64, bool) {
	if len(h.ticks) == 0 {
		return 0, false
	}
	return h.ticks[0], true
}
