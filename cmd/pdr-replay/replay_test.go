package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ubipos/internal/config"
	"ubipos/internal/replay"
	"ubipos/internal/sensor"
)

func writeLog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.log")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func replayConfig(path string) config.Config {
	return config.Config{
		Input: config.InputConfig{
			Mode:   "replay",
			Replay: config.ReplayConfig{Path: path, Speed: 1.0},
		},
	}
}

func TestRunReplay_DeliversSamplesInOrder(t *testing.T) {
	// Samples at the same timestamp avoid sleeps.
	path := writeLog(t, "START\n0,acc,0,0,9.81\n0,gyro,0,0,0.1\n0,mag,0,20,-40\n")

	var got []sensor.Kind
	err := runReplay(context.Background(), replayConfig(path), nil, func(s sensor.Sample) error {
		got = append(got, s.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}

	want := []sensor.Kind{sensor.Accelerometer, sensor.Gyroscope, sensor.Magnetometer}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v want=%v", got, want)
	}
}

func TestRunReplay_ContextCanceled_NoSamples(t *testing.T) {
	path := writeLog(t, "0,acc,0,0,9.81\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var n int
	err := runReplay(ctx, replayConfig(path), replay.NoSleep{}, func(sensor.Sample) error {
		n++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 samples, got %d", n)
	}
}

func TestRunReplay_BadLog(t *testing.T) {
	path := writeLog(t, "0,acc,0,0\n")
	err := runReplay(context.Background(), replayConfig(path), replay.NoSleep{}, func(sensor.Sample) error { return nil })
	if err == nil {
		t.Fatalf("expected error")
	}
}
