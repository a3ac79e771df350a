package main

import (
	"fmt"
	"sort"
	"strings"

	"ubipos/internal/replay"
	"ubipos/internal/sensor"
)

func printLogSummary(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, session, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := replay.Summarize(recs)

	fmt.Printf("path: %s\n", path)
	if session != "" {
		fmt.Printf("session: %s\n", session)
	}
	fmt.Printf("segments: %d\n", s.Segments)
	fmt.Printf("samples: %d\n", s.Samples)
	fmt.Printf("span: %s\n", s.Span)

	kinds := make([]sensor.Kind, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	fmt.Printf("kinds:\n")
	for _, k := range kinds {
		ks := s.Kinds[k]
		fmt.Printf("  %s: samples=%d rate=%.2fHz interval=[%s, %s] jitter=%s stalled=%d\n",
			k, ks.Samples, ks.RateHz, ks.MinInterval, ks.MaxInterval, ks.Jitter, ks.Stalled)
	}
	return nil
}
