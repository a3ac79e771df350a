package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ubipos/internal/step"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Input.Mode != "sim" {
		t.Fatalf("mode=%q want sim", cfg.Input.Mode)
	}
	if cfg.Input.Sim.Duration != 60*time.Second || cfg.Input.Sim.SampleRateHz != 100 || cfg.Input.Sim.CadenceHz != 2 {
		t.Fatalf("expected sim defaults applied, got %+v", cfg.Input.Sim)
	}
	if cfg.Input.Replay.Speed != 1 {
		t.Fatalf("replay speed=%v want 1", cfg.Input.Replay.Speed)
	}

	hc := cfg.ToHeadingConfig()
	if hc.AccWindow != 500*time.Millisecond || hc.AccFactor != 0.1 || hc.MagFactor != 0.1 || hc.FastMagAlignments != 10 {
		t.Fatalf("heading defaults: %+v", hc)
	}

	sc, err := cfg.ToStepConfig()
	if err != nil {
		t.Fatalf("ToStepConfig() error: %v", err)
	}
	want := step.DefaultConfig()
	if sc != want {
		t.Fatalf("step config=%+v want %+v", sc, want)
	}
	if cfg.Output.UDP.Enable || cfg.Output.Record.Enable || cfg.Output.LogEvents {
		t.Fatalf("outputs should default off: %+v", cfg.Output)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	path := writeTempConfig(t, `
input:
  mode: replay
  replay:
    path: ./walk.log
    speed: 4
    loop: true
    realtime: true
heading:
  acc_window: 250ms
  mag_factor: 0.05
  fast_mag_alignments: 0
step:
  long_window: 1500ms
  length_model: height_experience
  height_m: 1.82
  height_factor: 0.97
output:
  log_events: true
  udp:
    enable: true
    dest: 127.0.0.1:4100
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	r := cfg.Input.Replay
	if r.Path != "./walk.log" || r.Speed != 4 || !r.Loop || !r.Realtime {
		t.Fatalf("replay=%+v", r)
	}

	hc := cfg.ToHeadingConfig()
	if hc.AccWindow != 250*time.Millisecond || hc.MagFactor != 0.05 || hc.AccFactor != 0.1 {
		t.Fatalf("heading=%+v", hc)
	}
	if hc.FastMagAlignments != 0 {
		t.Fatalf("explicit fast_mag_alignments: 0 should be kept, got %d", hc.FastMagAlignments)
	}

	ec, err := cfg.ToEngineConfig()
	if err != nil {
		t.Fatalf("ToEngineConfig() error: %v", err)
	}
	if ec.Step.LongWindow != 1500*time.Millisecond {
		t.Fatalf("long window=%s", ec.Step.LongWindow)
	}
	if m, ok := ec.Step.Length.(step.HeightExperience); !ok || m.Height != 1.82 || m.Factor != 0.97 {
		t.Fatalf("length model=%#v", ec.Step.Length)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "UnknownMode",
			body: "input:\n  mode: live\n",
			want: `input.mode must be 'sim' or 'replay', got "live"`,
		},
		{
			name: "ReplayRequiresPath",
			body: "input:\n  mode: replay\n",
			want: "input.replay.path is required when input.mode is 'replay'",
		},
		{
			name: "ReplayNegativeSpeed",
			body: "input:\n  mode: replay\n  replay:\n    path: ./x.log\n    speed: -1\n",
			want: "input.replay.speed must be > 0",
		},
		{
			name: "UDPRequiresDest",
			body: "output:\n  udp:\n    enable: true\n",
			want: "output.udp.dest is required when output.udp.enable is true",
		},
		{
			name: "RecordRequiresPath",
			body: "output:\n  record:\n    enable: true\n",
			want: "output.record.path is required when output.record.enable is true",
		},
		{
			name: "RecordDisallowedWithReplay",
			body: "input:\n  mode: replay\n  replay:\n    path: ./x.log\noutput:\n  record:\n    enable: true\n    path: ./y.log\n",
			want: "output.record cannot be used with input.mode=replay",
		},
		{
			name: "PlotRequiresPath",
			body: "output:\n  plot:\n    enable: true\n",
			want: "output.plot.path is required when output.plot.enable is true",
		},
		{
			name: "HeadingFactorRange",
			body: "heading:\n  acc_factor: 1.5\n",
			want: "heading: acc factor must be in (0,1], got 1.5",
		},
		{
			name: "StepWindowsOrdered",
			body: "step:\n  short_window: 2s\n",
			want: "step: short window 2s must be shorter than long window 1s",
		},
		{
			name: "NegativePeakRise",
			body: "step:\n  min_peak_rise: -0.1\n",
			want: "step: amplitude gates must be >= 0, got rise=-0.1 drop=0.7",
		},
		{
			name: "UnknownLengthModel",
			body: "step:\n  length_model: stride\n",
			want: `step: unknown length model "stride"`,
		},
		{
			name: "HeightModelNeedsHeight",
			body: "step:\n  length_model: height_experience\n",
			want: "step: height_experience needs height > 0, got 0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.body)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_ZeroGatesKept(t *testing.T) {
	path := writeTempConfig(t, "step:\n  energy_threshold: 0\n  min_peak_rise: 0\n  min_valley_drop: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	sc, err := cfg.ToStepConfig()
	if err != nil {
		t.Fatalf("ToStepConfig() error: %v", err)
	}
	if sc.EnergyThreshold != 0 || sc.MinPeakRise != 0 || sc.MinValleyDrop != 0 {
		t.Fatalf("explicit zero gates should be kept, got %+v", sc)
	}
	if _, err := step.NewDetector(sc); err != nil {
		t.Fatalf("NewDetector() error: %v", err)
	}

	// Omitted gates still take the defaults.
	cfg, err = Parse([]byte("step:\n  min_peak_rise: 0.5\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	sc, err = cfg.ToStepConfig()
	if err != nil {
		t.Fatalf("ToStepConfig() error: %v", err)
	}
	def := step.DefaultConfig()
	if sc.MinPeakRise != 0.5 || sc.EnergyThreshold != def.EnergyThreshold || sc.MinValleyDrop != def.MinValleyDrop {
		t.Fatalf("step config=%+v", sc)
	}
}

func TestLoad_RecordAllowedWithSim(t *testing.T) {
	path := writeTempConfig(t, "output:\n  record:\n    enable: true\n    path: './x.log'\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "input:\n  replay:\n    speedup: 2\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field speedup not found in type config.ReplayConfig")
}

func TestSimWalk(t *testing.T) {
	cfg, err := Parse([]byte("input:\n  sim:\n    turn_rate_deg_s: 12\n    dip_deg: 55\n    seed: 9\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	w := cfg.SimWalk()
	if w.TurnRateDegPerSec != 12 || w.DipDeg != 55 || w.Seed != 9 || w.SampleRate != 100 || w.FieldMicroTesla != 48 {
		t.Fatalf("walk=%+v", w)
	}
}
