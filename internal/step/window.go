package step

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// emptyAverage is reported by Average before any sample, roughly 1 g.
const emptyAverage = 9.8

// Window accumulates one candidate step: everything between two rising
// crossovers of the detector's moving averages.
type Window struct {
	energy   float64
	duration float64 // seconds
	valueSum float64
	peak     float64
	valley   float64

	values  []float64
	weights []float64
}

func NewWindow() *Window {
	w := &Window{}
	w.Reset()
	return w
}

// Add records one accelerometer magnitude value and the short−long average
// difference diff, both covering interval. The squared difference, weighted
// by the interval, accumulates as the window's energy.
func (w *Window) Add(interval time.Duration, value, diff float64) {
	dt := interval.Seconds()
	w.values = append(w.values, value)
	w.weights = append(w.weights, dt)

	w.duration += dt
	w.valueSum += value * dt
	w.energy += diff * diff * dt

	if value > w.peak {
		w.peak = value
	}
	if value < w.valley {
		w.valley = value
	}
}

// Reset clears the window to its neutral state: no energy, no duration,
// peak −∞ and valley +∞.
func (w *Window) Reset() {
	w.energy = 0
	w.duration = 0
	w.valueSum = 0
	w.peak = math.Inf(-1)
	w.valley = math.Inf(1)
	w.values = w.values[:0]
	w.weights = w.weights[:0]
}

func (w *Window) Energy() float64 { return w.energy }

// Duration in seconds.
func (w *Window) Duration() float64 { return w.duration }

func (w *Window) Peak() float64   { return w.peak }
func (w *Window) Valley() float64 { return w.valley }

// FallGap is the swing from peak to valley.
func (w *Window) FallGap() float64 { return w.peak - w.valley }

func (w *Window) Len() int { return len(w.values) }

// Average is the interval-weighted mean magnitude.
func (w *Window) Average() float64 {
	if w.duration <= 0 {
		return emptyAverage
	}
	return w.valueSum / w.duration
}

// Variance is the interval-weighted population variance of the magnitude,
// 0 for an empty window.
func (w *Window) Variance() float64 {
	if w.duration <= 0 {
		return 0
	}
	return stat.Moment(2, w.values, w.weights)
}
