package replay

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ubipos/internal/sensor"
)

// KindSummary describes the samples of one sensor kind.
type KindSummary struct {
	Samples int
	// RateHz is the inverse of the mean positive interval between samples.
	RateHz float64
	// MinInterval and MaxInterval bound the positive intervals; Jitter is
	// their standard deviation.
	MinInterval time.Duration
	MaxInterval time.Duration
	Jitter      time.Duration
	// Stalled counts intervals of zero or less.
	Stalled int
}

type Summary struct {
	Segments int
	Samples  int
	// Span is the longest time covered by one segment.
	Span  time.Duration
	Kinds map[sensor.Kind]KindSummary
}

// Summarize reports per-kind counts, rates and timing jitter. Intervals are
// measured within a segment only.
func Summarize(records []Record) Summary {
	s := Summary{Kinds: map[sensor.Kind]KindSummary{}}
	if len(records) == 0 {
		return s
	}

	type acc struct {
		count     int
		stalled   int
		haveLast  bool
		last      int64
		intervals []float64 // seconds
	}
	kinds := map[sensor.Kind]*acc{}

	// Samples before the first START form an implicit segment.
	segments := 0
	inSegment := false
	var first int64
	haveFirst := false

	for _, r := range records {
		if r.Start {
			segments++
			inSegment = true
			haveFirst = false
			for _, a := range kinds {
				a.haveLast = false
			}
			continue
		}
		if !inSegment {
			segments++
			inSegment = true
		}
		s.Samples++

		ts := r.Sample.Timestamp
		if !haveFirst {
			first = ts
			haveFirst = true
		}
		if span := time.Duration(ts - first); span > s.Span {
			s.Span = span
		}

		a := kinds[r.Sample.Kind]
		if a == nil {
			a = &acc{}
			kinds[r.Sample.Kind] = a
		}
		a.count++
		if a.haveLast {
			if dt := ts - a.last; dt > 0 {
				a.intervals = append(a.intervals, time.Duration(dt).Seconds())
			} else {
				a.stalled++
			}
		}
		a.last = ts
		a.haveLast = true
	}
	s.Segments = segments

	for k, a := range kinds {
		ks := KindSummary{Samples: a.count, Stalled: a.stalled}
		if len(a.intervals) > 0 {
			mean := stat.Mean(a.intervals, nil)
			ks.RateHz = 1 / mean
			ks.MinInterval = seconds(floats.Min(a.intervals))
			ks.MaxInterval = seconds(floats.Max(a.intervals))
			if len(a.intervals) > 1 {
				ks.Jitter = seconds(stat.StdDev(a.intervals, nil))
			}
		}
		s.Kinds[k] = ks
	}
	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}
