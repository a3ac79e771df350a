package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ubipos/internal/config"
	"ubipos/internal/udp"
)

func mustParse(t *testing.T, body string) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(body))
	if err != nil {
		t.Fatalf("config.Parse() error: %v", err)
	}
	return cfg
}

func TestRuntime_RecordThenReplayMatches(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "walk.log")

	simCfg := mustParse(t, fmt.Sprintf(`
input:
  mode: sim
  sim:
    duration: 6s
    turn_rate_deg_s: 8
    accel_noise: 0.1
    seed: 5
output:
  record:
    enable: true
    path: %q
`, logPath))

	rt, err := newRuntime(simCfg)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	if err := rt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	rt.Close()
	simStats := rt.engine.Stats()
	if simStats.Steps == 0 || simStats.Headings != simStats.Samples() {
		t.Fatalf("unexpected sim stats: %+v", simStats)
	}

	replayCfg := mustParse(t, fmt.Sprintf("input:\n  mode: replay\n  replay:\n    path: %q\n", logPath))
	rt2, err := newRuntime(replayCfg)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt2.Close()
	if err := rt2.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := rt2.engine.Stats(); got != simStats {
		t.Fatalf("replay stats=%+v want %+v", got, simStats)
	}
}

func TestRuntime_PlotWritten(t *testing.T) {
	plotPath := filepath.Join(t.TempDir(), "trace.svg")
	cfg := mustParse(t, fmt.Sprintf("input:\n  sim:\n    duration: 3s\noutput:\n  plot:\n    enable: true\n    path: %q\n", plotPath))

	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt.Close()
	if err := rt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if err := rt.Finish(); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	b, err := os.ReadFile(plotPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(b), "<svg") {
		t.Fatalf("expected SVG output, got %d bytes", len(b))
	}
}

func TestRuntime_RouteScript(t *testing.T) {
	dir := t.TempDir()
	route := filepath.Join(dir, "route.yaml")
	body := "keyframes:\n  - t: 0s\n    heading_deg: 0\n    cadence_hz: 2\n  - t: 8s\n    heading_deg: 90\n    cadence_hz: 2\n"
	if err := os.WriteFile(route, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg := mustParse(t, fmt.Sprintf("input:\n  sim:\n    route: %q\n", route))
	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt.Close()
	if err := rt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if st := rt.engine.Stats(); st.Accelerometer != 800 || st.Steps == 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	bad := mustParse(t, fmt.Sprintf("input:\n  sim:\n    route: %q\n", filepath.Join(dir, "missing.yaml")))
	rt2, err := newRuntime(bad)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt2.Close()
	if err := rt2.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing route")
	}
}

func TestRuntime_CanceledSimStops(t *testing.T) {
	rt, err := newRuntime(mustParse(t, ""))
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rt.Run(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if n := rt.engine.Stats().Samples(); n != 0 {
		t.Fatalf("processed %d samples after cancel", n)
	}
}

func TestRuntime_UDPEvents(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}
	defer ln.Close()

	cfg := mustParse(t, fmt.Sprintf(`
input:
  sim:
    duration: 500ms
output:
  log_events: true
  udp:
    enable: true
    dest: %q
`, ln.LocalAddr().String()))

	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt.Close()
	if err := rt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	_ = ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error: %v", err)
	}
	var m udp.Message
	if err := json.Unmarshal(buf[:n], &m); err != nil {
		t.Fatalf("Unmarshal() error: %v (%q)", err, buf[:n])
	}
	if m.Type != "heading" || m.Session != rt.session || m.Radians == nil {
		t.Fatalf("unexpected first message: %+v", m)
	}

	sent, failed := rt.sink.Stats()
	if sent == 0 || failed != 0 {
		t.Fatalf("sink stats: sent=%d failed=%d", sent, failed)
	}
}

func TestNewRuntime_RecordPathInvalid(t *testing.T) {
	cfg := mustParse(t, fmt.Sprintf("output:\n  record:\n    enable: true\n    path: %q\n",
		filepath.Join(t.TempDir(), "missing-dir", "x.log")))
	if _, err := newRuntime(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
