package replay

import (
	"testing"
	"time"

	"ubipos/internal/sensor"
	"ubipos/internal/sim"
)

func recordsOf(samples []sensor.Sample) []Record {
	recs := []Record{{Start: true}}
	for _, s := range samples {
		recs = append(recs, Record{At: time.Duration(s.Timestamp), Sample: s})
	}
	return recs
}

func TestSummarize_SimulatedWalk(t *testing.T) {
	recs := recordsOf(sim.Walk{SampleRate: 50}.Samples(0, 4*time.Second))
	s := Summarize(recs)

	if s.Segments != 1 {
		t.Fatalf("segments: got %d want 1", s.Segments)
	}
	if s.Samples != 600 {
		t.Fatalf("samples: got %d want 600", s.Samples)
	}
	if want := 3980 * time.Millisecond; s.Span != want {
		t.Fatalf("span: got %s want %s", s.Span, want)
	}
	for _, k := range []sensor.Kind{sensor.Accelerometer, sensor.Gyroscope, sensor.Magnetometer} {
		ks, ok := s.Kinds[k]
		if !ok {
			t.Fatalf("missing kind %s", k)
		}
		if ks.Samples != 200 {
			t.Fatalf("%s samples: got %d want 200", k, ks.Samples)
		}
		if ks.RateHz < 49.99 || ks.RateHz > 50.01 {
			t.Fatalf("%s rate: got %v want 50", k, ks.RateHz)
		}
		if ks.MinInterval != 20*time.Millisecond || ks.MaxInterval != 20*time.Millisecond {
			t.Fatalf("%s intervals: got [%s, %s]", k, ks.MinInterval, ks.MaxInterval)
		}
		if ks.Jitter != 0 || ks.Stalled != 0 {
			t.Fatalf("%s jitter=%s stalled=%d, want 0", k, ks.Jitter, ks.Stalled)
		}
	}
}

func TestSummarize_SegmentsAndStalls(t *testing.T) {
	acc := func(ts int64) Record {
		return Record{At: time.Duration(ts), Sample: sensor.Sample{Kind: sensor.Accelerometer, Timestamp: ts}}
	}
	recs := []Record{
		acc(0), acc(10e6), acc(10e6), acc(30e6),
		{Start: true},
		acc(500e6), acc(510e6),
	}
	s := Summarize(recs)
	if s.Segments != 2 {
		t.Fatalf("segments: got %d want 2", s.Segments)
	}
	if s.Span != 30*time.Millisecond {
		t.Fatalf("span: got %s want 30ms", s.Span)
	}
	ks := s.Kinds[sensor.Accelerometer]
	if ks.Samples != 6 || ks.Stalled != 1 {
		t.Fatalf("samples=%d stalled=%d", ks.Samples, ks.Stalled)
	}
	if ks.MinInterval != 10*time.Millisecond || ks.MaxInterval != 20*time.Millisecond {
		t.Fatalf("intervals: got [%s, %s]", ks.MinInterval, ks.MaxInterval)
	}
	// Intervals 10, 20, 10 ms.
	if want := 1 / (40.0 / 3 / 1000); ks.RateHz < want-1e-6 || ks.RateHz > want+1e-6 {
		t.Fatalf("rate: got %v want %v", ks.RateHz, want)
	}
	if ks.Jitter <= 0 {
		t.Fatalf("jitter should be positive, got %s", ks.Jitter)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Segments != 0 || s.Samples != 0 || len(s.Kinds) != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
