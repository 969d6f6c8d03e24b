// SPDX-License-Identifier: MIT

package main

import "container/heap"

// Visvalingam-Whyatt simplification. Points are dropped in order of the
// doubled area of the triangle they form with their neighbors, until the
// smallest remaining triangle exceeds the threshold. Unlike RDP this
// keeps overall shape area stable, so rings go through here.

type visItem struct {
	area      float64
	index     int // position in the input slice
	heapIndex int
	prev      *visItem
	next      *visItem
}

type visHeap []*visItem

func (h visHeap) Len() int            { return len(h) }
func (h visHeap) Less(i, j int) bool  { return h[i].area < h[j].area }
func (h visHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].heapIndex = i; h[j].heapIndex = j }
func (h *visHeap) Push(x interface{}) { it := x.(*visItem); it.heapIndex = len(*h); *h = append(*h, it) }
func (h *visHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// doubleTriangleArea returns twice the area of the triangle a-b-c.
func doubleTriangleArea(a, b, c Point) float64 {
	return absf(float64(a.X)*(float64(b.Y)-float64(c.Y)) +
		float64(b.X)*(float64(c.Y)-float64(a.Y)) +
		float64(c.X)*(float64(a.Y)-float64(b.Y)))
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// visvalingamKeepMask marks which points survive simplification with a
// doubled-triangle-area threshold of 2*thresh². End points always
// survive. A nil result means all points are kept.
func visvalingamKeepMask(pts []Point, thresh float64) []bool {
	if thresh <= 0 || len(pts) < 3 {
		return nil
	}
	maxArea := 2 * thresh * thresh

	items := make([]visItem, len(pts))
	h := make(visHeap, 0, len(pts)-2)
	for i := 1; i < len(pts)-1; i++ {
		it := &items[i]
		it.index = i
		it.prev = &items[i-1]
		it.next = &items[i+1]
		it.area = doubleTriangleArea(pts[i-1], pts[i], pts[i+1])
		h = append(h, it)
	}
	items[0].index = 0
	items[0].next = &items[1]
	items[len(pts)-1].index = len(pts) - 1
	items[len(pts)-1].prev = &items[len(pts)-2]
	for i := range h {
		h[i].heapIndex = i
	}
	heap.Init(&h)

	keep := make([]bool, len(pts))
	for i := range keep {
		keep[i] = true
	}

	// The area floor stops a later removal from looking cheaper than an
	// earlier one after its neighborhood collapsed.
	floor := 0.0
	for h.Len() > 0 {
		it := heap.Pop(&h).(*visItem)
		if it.area > maxArea {
			break
		}
		if it.area < floor {
			it.area = floor
		} else {
			floor = it.area
		}
		keep[it.index] = false
		it.prev.next = it.next
		it.next.prev = it.prev
		for _, nb := range [2]*visItem{it.prev, it.next} {
			if nb.prev == nil || nb.next == nil {
				continue
			}
			nb.area = doubleTriangleArea(pts[nb.prev.index], pts[nb.index], pts[nb.next.index])
			heap.Fix(&h, nb.heapIndex)
		}
	}
	return keep
}
