package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ubipos/internal/replay"
	"ubipos/internal/sim"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, wpipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error: %v", err)
	}
	os.Stdout = wpipe

	fnErr := fn()

	_ = wpipe.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()
	return buf.String(), fnErr
}

func TestPrintLogSummary_PrintsExpectedFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "walk.log")

	w, err := replay.CreateWriter(logPath, "summary-test")
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	for _, s := range (sim.Walk{}).Samples(0, time.Second) {
		if err := w.WriteSample(s); err != nil {
			_ = w.Close()
			t.Fatalf("WriteSample() error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	out, err := captureStdout(t, func() error { return printLogSummary(logPath) })
	if err != nil {
		t.Fatalf("printLogSummary() error: %v", err)
	}

	for _, want := range []string{
		"path: ",
		"session: summary-test",
		"segments: 1",
		"samples: 300",
		"span: 990ms",
		"acc: samples=100 rate=100.00Hz",
		"gyro: samples=100",
		"mag: samples=100",
	} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("missing %q in output: %q", want, out)
		}
	}
	if bytes.Index([]byte(out), []byte("acc:")) > bytes.Index([]byte(out), []byte("mag:")) {
		t.Fatalf("kinds should be listed in a stable order: %q", out)
	}
}

func TestPrintLogSummary_EmptyPath(t *testing.T) {
	if err := printLogSummary("  "); err == nil {
		t.Fatalf("expected error")
	}
}
