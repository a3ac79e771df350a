// Package window implements a bounded-duration running average where every
// value is weighted by the interval it covers.
package window

import (
	"fmt"
	"time"
)

type sample struct {
	interval float64 // seconds
	value    float64
}

// TimeWeighted keeps the samples covering roughly the last span of time and
// reports their interval-weighted average.
//
// Eviction happens before an insertion: while the retained intervals add up to
// more than span the oldest sample is dropped, then the new sample is appended.
// The newest sample is therefore always retained, and the retained total
// excluding it never exceeds span.
type TimeWeighted struct {
	span  float64
	queue []sample
	head  int

	total float64
	sum   float64
	avg   float64
}

func New(span time.Duration) (*TimeWeighted, error) {
	if span <= 0 {
		return nil, fmt.Errorf("window: span must be > 0, got %s", span)
	}
	return &TimeWeighted{span: span.Seconds()}, nil
}

// Add inserts a value covering interval. Non-positive intervals carry no
// weight and are ignored; Add reports whether the sample was kept.
func (w *TimeWeighted) Add(interval time.Duration, value float64) bool {
	if interval <= 0 {
		return false
	}
	for w.total > w.span && w.head < len(w.queue) {
		old := w.queue[w.head]
		w.head++
		w.total -= old.interval
		w.sum -= old.value * old.interval
	}
	w.compact()

	dt := interval.Seconds()
	w.queue = append(w.queue, sample{interval: dt, value: value})
	w.total += dt
	w.sum += value * dt
	w.avg = w.sum / w.total
	return true
}

// compact reclaims the evicted prefix once it dominates the backing array.
func (w *TimeWeighted) compact() {
	if w.head == 0 || w.head < len(w.queue)/2 {
		return
	}
	n := copy(w.queue, w.queue[w.head:])
	w.queue = w.queue[:n]
	w.head = 0
}

// Average is the weighted mean of the retained samples, 0 before any sample.
func (w *TimeWeighted) Average() float64 {
	return w.avg
}

// Duration is the sum of retained intervals.
func (w *TimeWeighted) Duration() time.Duration {
	return time.Duration(w.total * float64(time.Second))
}

func (w *TimeWeighted) Len() int {
	return len(w.queue) - w.head
}

// Reset drops every sample.
func (w *TimeWeighted) Reset() {
	w.queue = w.queue[:0]
	w.head = 0
	w.total = 0
	w.sum = 0
	w.avg = 0
}
