package alarm

import (
	"time"

	"github.com/conorfennell/wristreminder/internal/domain"
)

type wakeup struct {
	key     string
	at      time.Time
	payload domain.Payload
	index   int
}

// wakeupHeap implements heap.Interface. Ties on the instant are broken by key
// so dispatch order is deterministic.
type wakeupHeap []*wakeup

func (h wakeupHeap) Len() int {
	return len(h)
}

func (h wakeupHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].key < h[j].key
	}
	return h[i].at.Before(h[j].at)
}

func (h wakeupHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *wakeupHeap) Push(x any) {
	w := x.(*wakeup)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *wakeupHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[:n-1]
	return w
}
